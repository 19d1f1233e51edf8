package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/testutil"
)

func dm(from, to, body string, at time.Time) *db.Message {
	return &db.Message{
		ConversationKey: db.DirectKey(from, to),
		SenderID:        from,
		ReceiverID:      to,
		Body:            body,
		CreatedAt:       at,
	}
}

func TestMessageInsertAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMessageRepository(testutil.DB(t), false)

	m := &db.Message{ConversationKey: db.DirectKey("a", "b"), SenderID: "a", ReceiverID: "b", Body: "hi"}
	require.NoError(t, repo.Insert(ctx, m))
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	// same id again
	assert.ErrorIs(t, repo.Insert(ctx, m), repository.ErrDuplicate)
}

func TestListConversationOrdered(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMessageRepository(testutil.DB(t), false)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, dm("a", "b", "third", base.Add(2*time.Second))))
	require.NoError(t, repo.Insert(ctx, dm("b", "a", "first", base)))
	require.NoError(t, repo.Insert(ctx, dm("a", "b", "second", base.Add(time.Second))))
	require.NoError(t, repo.Insert(ctx, dm("a", "c", "elsewhere", base)))

	msgs, err := repo.ListConversation(ctx, db.DirectKey("b", "a"))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "third", msgs[2].Body)
}

func TestMarkReadAndCountUnread(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMessageRepository(testutil.DB(t), false)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, dm("b", "a", "one", base)))
	require.NoError(t, repo.Insert(ctx, dm("b", "a", "two", base.Add(time.Second))))
	require.NoError(t, repo.Insert(ctx, dm("a", "b", "reply", base.Add(2*time.Second))))

	n, err := repo.CountUnread(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	updated, err := repo.MarkRead(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, m := range updated {
		assert.True(t, m.Read)
		assert.Equal(t, "b", m.SenderID)
	}

	n, err = repo.CountUnread(ctx, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, n)

	// b's unread from a is untouched
	n, err = repo.CountUnread(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// nothing left to mark
	updated, err = repo.MarkRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMessageRepository(testutil.DB(t), false)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, dm("b", "a", "from b", base)))
	require.NoError(t, repo.Insert(ctx, dm("a", "c", "to c", base.Add(time.Second))))
	require.NoError(t, repo.Insert(ctx, dm("c", "a", "from c", base.Add(2*time.Second))))
	require.NoError(t, repo.Insert(ctx, &db.Message{
		ConversationKey: db.StreamKey("s1"), SenderID: "a", StreamID: "s1", Body: "stream chat", CreatedAt: base.Add(3 * time.Second),
	}))

	convs, err := repo.Conversations(ctx, "a")
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "c", convs[0].PartnerID)
	assert.Equal(t, "from c", convs[0].Last.Body)
	assert.Equal(t, int64(1), convs[0].Unread)

	assert.Equal(t, "b", convs[1].PartnerID)
	assert.Equal(t, int64(1), convs[1].Unread)
}

func TestLegacyMessagesMerged(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := repository.NewMessageRepository(gdb, true)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, gdb.Create(&db.LegacyMessage{SenderID: "b", ReceiverID: "a", Content: "old hello", CreatedAt: base}).Error)
	require.NoError(t, gdb.Create(&db.LegacyMessage{SenderID: "a", ReceiverID: "b", Content: "old reply", CreatedAt: base.Add(2 * time.Second)}).Error)
	require.NoError(t, repo.Insert(ctx, dm("b", "a", "new", base.Add(time.Second))))

	msgs, err := repo.ListConversation(ctx, db.DirectKey("a", "b"))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "old hello", msgs[0].Body)
	assert.True(t, strings.HasPrefix(msgs[0].ID, repository.LegacyIDPrefix))
	assert.Equal(t, db.DirectKey("a", "b"), msgs[0].ConversationKey)
	assert.Equal(t, "new", msgs[1].Body)
	assert.Equal(t, "old reply", msgs[2].Body)

	n, err := repo.CountUnread(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	updated, err := repo.MarkRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	n, err = repo.CountUnread(ctx, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, n)

	convs, err := repo.Conversations(ctx, "a")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "old reply", convs[0].Last.Body)
	assert.Zero(t, convs[0].Unread)
}

func TestLegacyDisabledIgnoresLegacyRows(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	repo := repository.NewMessageRepository(gdb, false)

	require.NoError(t, gdb.Create(&db.LegacyMessage{SenderID: "b", ReceiverID: "a", Content: "old"}).Error)

	msgs, err := repo.ListConversation(ctx, db.DirectKey("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
