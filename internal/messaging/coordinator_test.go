package messaging_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/testutil"
)

type premiumSet map[string]bool

func (p premiumSet) IsPremium(_ context.Context, userID string) bool { return p[userID] }

func (p premiumSet) CanMessage(_ context.Context, sender, receiver string) bool {
	return p[sender] || p[receiver]
}

type recorder struct {
	mu      sync.Mutex
	changes []messaging.Change
}

func (r *recorder) listen(ch messaging.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recorder) kinds() []messaging.ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messaging.ChangeKind, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Kind
	}
	return out
}

type env struct {
	gdb   *gorm.DB
	feed  *feed.Local
	coord *messaging.Coordinator
}

func setup(t *testing.T, premium premiumSet) env {
	t.Helper()
	gdb := testutil.DB(t)
	f := feed.NewLocal()
	coord := messaging.NewCoordinator(
		repository.NewMessageRepository(gdb, false),
		repository.NewStreamRepository(gdb),
		premium,
		f,
		logger.Discard(),
	)
	return env{gdb: gdb, feed: f, coord: coord}
}

func waitRead(t *testing.T, v *messaging.View) {
	t.Helper()
	select {
	case <-v.ReadDone():
	case <-time.After(5 * time.Second):
		t.Fatal("mark read did not finish")
	}
}

func TestSendPremiumGating(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"p": true})

	res, err := e.coord.SendDirect(ctx, "f1", "f2", "hi")
	require.NoError(t, err)
	assert.False(t, res.Delivered())
	assert.Equal(t, messaging.ReasonPremiumRequired, res.Reason)

	res, err = e.coord.SendDirect(ctx, "f1", "p", "hi")
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, "p", res.Message.ReceiverID)

	res, err = e.coord.SendDirect(ctx, "p", "f1", "   ")
	require.NoError(t, err)
	assert.Equal(t, messaging.ReasonEmptyBody, res.Reason)

	_, err = e.coord.Send(ctx, db.DirectKey("x", "y"), "p", "intruder")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = e.coord.Send(ctx, "room:1", "p", "hi")
	assert.ErrorIs(t, err, messaging.ErrInvalidKey)
}

func TestSendDirectRejectsSeparatorInIDs(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a:b": true, "c": true, "a": true, "b:c": true})

	for _, pair := range [][2]string{{"a:b", "c"}, {"c", "a:b"}, {"a", "b:c"}} {
		_, err := e.coord.SendDirect(ctx, pair[0], pair[1], "hi")
		assert.ErrorIs(t, err, messaging.ErrInvalidKey, pair)
	}

	var n int64
	require.NoError(t, e.gdb.Model(&db.Message{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err := e.coord.Open(ctx, "a", db.DirectKey("a", "b:c"), nil)
	assert.ErrorIs(t, err, messaging.ErrInvalidKey)
}

func TestViewReceivesEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a": true})

	_, err := e.coord.SendDirect(ctx, "a", "b", "before")
	require.NoError(t, err)

	rec := &recorder{}
	v, err := e.coord.Open(ctx, "b", db.DirectKey("a", "b"), rec.listen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	waitRead(t, v)

	assert.Equal(t, messaging.Live, v.State())

	res, err := e.coord.SendDirect(ctx, "a", "b", "after")
	require.NoError(t, err)

	// the same row pushed again
	ev, err := feed.NewEvent(feed.TableMessages, feed.Insert, v.Key(), res.Message)
	require.NoError(t, err)
	require.NoError(t, e.feed.Publish(ctx, ev))

	msgs := v.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "before", msgs[0].Body)
	assert.True(t, msgs[0].Read)
	assert.Equal(t, "after", msgs[1].Body)

	assert.Equal(t, messaging.Snapshot, rec.kinds()[0])
	assert.Contains(t, rec.kinds(), messaging.Added)
}

func TestViewOrdersPushedEvents(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{})

	v, err := e.coord.Open(ctx, "a", db.DirectKey("a", "b"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, m := range []db.Message{
		{ID: "3", Body: "t3", CreatedAt: base.Add(3 * time.Second)},
		{ID: "1", Body: "t1", CreatedAt: base.Add(time.Second)},
		{ID: "2", Body: "t2", CreatedAt: base.Add(2 * time.Second)},
	} {
		m.ConversationKey = v.Key()
		ev, err := feed.NewEvent(feed.TableMessages, feed.Insert, v.Key(), m)
		require.NoError(t, err)
		require.NoError(t, e.feed.Publish(ctx, ev))
	}

	assert.Equal(t, []string{"t1", "t2", "t3"}, bodies(v.Messages()))
}

func TestViewCloseUnsubscribes(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a": true})
	key := db.DirectKey("a", "b")

	rec := &recorder{}
	v, err := e.coord.Open(ctx, "a", key, rec.listen)
	require.NoError(t, err)
	waitRead(t, v)
	assert.Equal(t, 1, e.feed.Subscribers(feed.TableMessages, key))

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.Equal(t, messaging.Closed, v.State())
	assert.Equal(t, 0, e.feed.Subscribers(feed.TableMessages, key))

	_, err = e.coord.SendDirect(ctx, "a", "b", "late")
	require.NoError(t, err)
	assert.Equal(t, []messaging.ChangeKind{messaging.Snapshot}, rec.kinds())

	select {
	case <-v.Done():
	default:
		t.Fatal("done channel not closed")
	}

	_, err = v.Submit(ctx)
	assert.ErrorIs(t, err, messaging.ErrViewClosed)
}

func TestDraftClearedOnlyOnDelivery(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{})

	v, err := e.coord.Open(ctx, "a", db.DirectKey("a", "b"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	v.SetDraft("hello")
	res, err := v.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, messaging.ReasonPremiumRequired, res.Reason)
	assert.Equal(t, "hello", v.Draft())
	assert.Empty(t, v.Messages())
}

func TestDraftSubmitDelivers(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a": true})

	v, err := e.coord.Open(ctx, "a", db.DirectKey("a", "b"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	v.SetDraft("hello")
	res, err := v.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Empty(t, v.Draft())

	// arrived through the feed
	require.Len(t, v.Messages(), 1)
	assert.Equal(t, res.Message.ID, v.Messages()[0].ID)
}

func TestUnreadRecount(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"b": true})

	inbox, err := e.coord.OpenInbox(ctx, "a", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inbox.Close() })
	assert.Zero(t, inbox.Unread("b"))

	_, err = e.coord.SendDirect(ctx, "b", "a", "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inbox.Unread("b"))

	n, err := e.coord.MarkRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, inbox.Unread("b"))

	_, err = e.coord.SendDirect(ctx, "b", "a", "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inbox.Unread("b"))

	count, err := e.coord.CountUnread(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	summaries := inbox.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "m2", summaries[0].Last.Body)
}

func TestSessionSwitchClosesPrevious(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a": true})
	sessions := messaging.NewSessions(e.coord)

	first, err := sessions.Focus(ctx, "a", "b", nil)
	require.NoError(t, err)
	waitRead(t, first)

	second, err := sessions.Focus(ctx, "a", "c", nil)
	require.NoError(t, err)
	waitRead(t, second)

	assert.Equal(t, messaging.Closed, first.State())
	assert.Equal(t, 0, e.feed.Subscribers(feed.TableMessages, db.DirectKey("a", "b")))
	assert.Equal(t, 1, e.feed.Subscribers(feed.TableMessages, db.DirectKey("a", "c")))

	// no cross-talk into the new view
	_, err = e.coord.SendDirect(ctx, "a", "b", "for b")
	require.NoError(t, err)
	assert.Empty(t, second.Messages())

	// releasing a stale view keeps the session
	require.NoError(t, sessions.Release("a", first))
	assert.Equal(t, 1, sessions.Len())

	require.NoError(t, sessions.Release("a", second))
	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, e.feed.Subscribers(feed.TableMessages, db.DirectKey("a", "c")))
}

func TestSessionForgottenWhenFocusFails(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"a": true})
	sessions := messaging.NewSessions(e.coord)

	_, err := sessions.Focus(ctx, "a", "b:c", nil)
	require.ErrorIs(t, err, messaging.ErrInvalidKey)
	assert.Equal(t, 0, sessions.Len())

	// a failed switch drops the previous focus along with the session
	first, err := sessions.Focus(ctx, "a", "b", nil)
	require.NoError(t, err)
	waitRead(t, first)
	assert.Equal(t, 1, sessions.Len())

	_, err = sessions.Focus(ctx, "a", "b:c", nil)
	require.ErrorIs(t, err, messaging.ErrInvalidKey)
	assert.Equal(t, messaging.Closed, first.State())
	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, e.feed.Subscribers(feed.TableMessages, db.DirectKey("a", "b")))
}

func TestStreamChat(t *testing.T) {
	ctx := context.Background()
	e := setup(t, premiumSet{"host": true, "p": true})
	streams := repository.NewStreamRepository(e.gdb)

	open := &db.Stream{StreamerID: "host", Title: "open"}
	require.NoError(t, streams.Create(ctx, open))
	vip := &db.Stream{StreamerID: "host", Title: "vip", PremiumOnly: true}
	require.NoError(t, streams.Create(ctx, vip))

	res, err := e.coord.SendStream(ctx, open.ID, "free", "hello all")
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, open.ID, res.Message.StreamID)
	assert.Empty(t, res.Message.ReceiverID)

	res, err = e.coord.SendStream(ctx, vip.ID, "free", "let me in")
	require.NoError(t, err)
	assert.Equal(t, messaging.ReasonPremiumRequired, res.Reason)

	_, err = e.coord.Open(ctx, "free", db.StreamKey(vip.ID), nil)
	assert.ErrorIs(t, err, messaging.ErrPremiumRequired)

	_, err = streams.End(ctx, open.ID)
	require.NoError(t, err)
	res, err = e.coord.SendStream(ctx, open.ID, "p", "too late")
	require.NoError(t, err)
	assert.Equal(t, messaging.ReasonStreamEnded, res.Reason)

	_, err = e.coord.SendStream(ctx, "missing", "p", "hi")
	assert.ErrorIs(t, err, messaging.ErrStreamNotFound)
}
