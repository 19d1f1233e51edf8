package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/testutil"
)

func ptr(s string) *string { return &s }

func TestProfileCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(testutil.DB(t))

	_, err := repo.Get(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	created, err := repo.Create(ctx, &db.Profile{UserID: "a", DisplayName: "Ann", Interests: []string{"hiking", "jazz", "hiking"}})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &db.Profile{UserID: "a", DisplayName: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.Update(ctx, "a", map[string]any{"bio": "hello", "age": 31}))
	require.NoError(t, repo.SetPremium(ctx, "a", true))

	p, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.DisplayName)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, 31, p.Age)
	assert.True(t, p.IsPremium)
	assert.Equal(t, []string{"hiking", "jazz", "hiking"}, []string(p.Interests))

	assert.ErrorIs(t, repo.Update(ctx, "missing", map[string]any{"bio": "x"}), repository.ErrNotFound)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := repository.NewProfileRepository(gdb)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	profiles := []db.Profile{
		{UserID: "m1", Gender: ptr("male"), CreatedAt: base},
		{UserID: "f1", Gender: ptr("female"), CreatedAt: base.Add(time.Second)},
		{UserID: "f2", Gender: ptr("female"), CreatedAt: base.Add(2 * time.Second)},
		{UserID: "n1", CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range profiles {
		require.NoError(t, gdb.Create(&profiles[i]).Error)
	}

	got, err := repo.Candidates(ctx, repository.CandidateQuery{Exclude: []string{"m1", "f2"}, Genders: []string{"female"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].UserID)

	got, err = repo.Candidates(ctx, repository.CandidateQuery{Exclude: []string{"m1"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "n1", got[0].UserID)

	got, err = repo.Candidates(ctx, repository.CandidateQuery{OnlyUnsetGender: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].UserID)

	got, err = repo.Candidates(ctx, repository.CandidateQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].UserID)

	got, err = repo.Candidates(ctx, repository.CandidateQuery{NoneMatch: true, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccountUpsert(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAccountRepository(testutil.DB(t))

	require.NoError(t, repo.Upsert(ctx, "a", "h1"))
	require.NoError(t, repo.Upsert(ctx, "a", "h2"))

	acc, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "h2", acc.TokenHash)

	_, err = repo.Get(ctx, "b")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
