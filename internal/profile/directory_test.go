package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/profile"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/testutil"
)

func newDirectory(t *testing.T, policy profile.UnsetPolicy) (*profile.Directory, *gorm.DB) {
	t.Helper()
	gdb := testutil.DB(t)
	dir := profile.NewDirectory(
		repository.NewProfileRepository(gdb),
		repository.NewLikeRepository(gdb),
		policy,
		logger.Discard(),
	)
	return dir, gdb
}

func seedProfiles(t *testing.T, gdb *gorm.DB, genders map[string]profile.Gender) {
	t.Helper()
	for id, g := range genders {
		require.NoError(t, gdb.Create(&db.Profile{UserID: id, Gender: g.Ptr()}).Error)
	}
}

func ids(ps []db.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.UserID
	}
	return out
}

func TestGenderOption(t *testing.T) {
	assert.False(t, profile.Some("  ").IsSet())
	assert.False(t, profile.GenderFrom(nil).IsSet())

	empty := ""
	assert.Equal(t, profile.None, profile.GenderFrom(&empty))

	g, ok := profile.Some(" Female ").Get()
	assert.True(t, ok)
	assert.Equal(t, "female", g)
	assert.Nil(t, profile.None.Ptr())
}

func TestEnsureAndOwnerOnlyUpdate(t *testing.T) {
	ctx := context.Background()
	dir, _ := newDirectory(t, profile.ShowEveryone)

	p, created, err := dir.Ensure(ctx, "a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "a", p.UserID)

	_, created, err = dir.Ensure(ctx, "a")
	require.NoError(t, err)
	assert.False(t, created)

	name := "Ann"
	_, err = dir.Update(ctx, "b", "a", profile.Patch{DisplayName: &name})
	assert.ErrorIs(t, err, profile.ErrNotOwner)

	g := profile.Some("Female")
	p, err = dir.Update(ctx, "a", "a", profile.Patch{DisplayName: &name, Gender: &g, Interests: []string{"art", "art"}})
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.DisplayName)
	require.NotNil(t, p.Gender)
	assert.Equal(t, "female", *p.Gender)
	assert.Equal(t, []string{"art", "art"}, []string(p.Interests))

	unset := profile.None
	p, err = dir.Update(ctx, "a", "a", profile.Patch{Gender: &unset})
	require.NoError(t, err)
	assert.Nil(t, p.Gender)

	bad := -1
	_, err = dir.Update(ctx, "a", "a", profile.Patch{Age: &bad})
	assert.ErrorIs(t, err, profile.ErrInvalid)
}

func TestCandidatesGenderPolicy(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		policy profile.UnsetPolicy
		viewer profile.Gender
		want   []string
	}{
		{"male sees female", profile.ShowEveryone, profile.Some("male"), []string{"f1"}},
		{"female sees male", profile.ShowEveryone, profile.Some("female"), []string{"m1"}},
		{"other sees everyone", profile.ShowEveryone, profile.Some("nonbinary"), []string{"f1", "m1", "n1", "x1"}},
		{"unset everyone", profile.ShowEveryone, profile.None, []string{"f1", "m1", "n1", "x1"}},
		{"unset none", profile.ShowNone, profile.None, nil},
		{"unset only unset", profile.ShowUnset, profile.None, []string{"n1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir, gdb := newDirectory(t, tc.policy)
			seedProfiles(t, gdb, map[string]profile.Gender{
				"viewer": tc.viewer,
				"m1":     profile.Some("male"),
				"f1":     profile.Some("female"),
				"n1":     profile.None,
				"x1":     profile.Some("nonbinary"),
			})

			got, err := dir.Candidates(ctx, "viewer", nil, 0, 10)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, ids(got))
		})
	}
}

func TestCandidatesExcludeLikedAndExtra(t *testing.T) {
	ctx := context.Background()
	dir, gdb := newDirectory(t, profile.ShowEveryone)
	seedProfiles(t, gdb, map[string]profile.Gender{
		"viewer": profile.None, "a": profile.None, "b": profile.None, "c": profile.None,
	})
	_, err := repository.NewLikeRepository(gdb).Insert(ctx, "viewer", "a")
	require.NoError(t, err)

	got, err := dir.Candidates(ctx, "viewer", []string{"b"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))
}

func TestParseUnsetPolicy(t *testing.T) {
	assert.Equal(t, profile.ShowUnset, profile.ParseUnsetPolicy(" UNSET "))
	assert.Equal(t, profile.ShowNone, profile.ParseUnsetPolicy("none"))
	assert.Equal(t, profile.ShowEveryone, profile.ParseUnsetPolicy("whatever"))
}
