package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/logger"
)

// loaderFunc lets a test act while the initial load is in flight.
type loaderFunc func(ctx context.Context, key string) ([]db.Message, error)

func (f loaderFunc) ListConversation(ctx context.Context, key string) ([]db.Message, error) {
	return f(ctx, key)
}

func noSubmit(context.Context, string) (SendResult, error) { return SendResult{}, nil }

func TestEventsDuringLoadAreReplayed(t *testing.T) {
	ctx := context.Background()
	f := feed.NewLocal()
	key := db.DirectKey("a", "b")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	fetched := db.Message{ID: "1", ConversationKey: key, Body: "fetched", CreatedAt: base}
	pushedTwice := db.Message{ID: "1", ConversationKey: key, Body: "fetched", CreatedAt: base}
	pushedNew := db.Message{ID: "2", ConversationKey: key, Body: "pushed", CreatedAt: base.Add(time.Second)}

	load := loaderFunc(func(ctx context.Context, key string) ([]db.Message, error) {
		for _, m := range []db.Message{pushedNew, pushedTwice} {
			ev, err := feed.NewEvent(feed.TableMessages, feed.Insert, key, m)
			require.NoError(t, err)
			require.NoError(t, f.Publish(ctx, ev))
		}
		return []db.Message{fetched}, nil
	})

	var changes []Change
	v, err := openView(ctx, key, "a", load, f, func(c Change) { changes = append(changes, c) }, noSubmit, logger.Discard())
	require.NoError(t, err)
	defer v.Close()

	require.Len(t, changes, 1)
	assert.Equal(t, Snapshot, changes[0].Kind)
	require.Len(t, changes[0].Messages, 2)
	assert.Equal(t, "fetched", changes[0].Messages[0].Body)
	assert.Equal(t, "pushed", changes[0].Messages[1].Body)
}

func TestFailedLoadTearsDownSubscription(t *testing.T) {
	ctx := context.Background()
	f := feed.NewLocal()
	key := db.DirectKey("a", "b")

	load := loaderFunc(func(context.Context, string) ([]db.Message, error) {
		assert.Equal(t, 1, f.Subscribers(feed.TableMessages, key))
		return nil, errors.New("db down")
	})

	_, err := openView(ctx, key, "a", load, f, nil, noSubmit, logger.Discard())
	require.Error(t, err)
	assert.Equal(t, 0, f.Subscribers(feed.TableMessages, key))
}

func TestViewIgnoresForeignKeysAndMalformedEvents(t *testing.T) {
	ctx := context.Background()
	f := feed.NewLocal()
	key := db.DirectKey("a", "b")

	load := loaderFunc(func(context.Context, string) ([]db.Message, error) { return nil, nil })
	v, err := openView(ctx, key, "a", load, f, nil, noSubmit, logger.Discard())
	require.NoError(t, err)
	defer v.Close()

	foreign, err := feed.NewEvent(feed.TableMessages, feed.Insert, key, db.Message{ID: "x", ConversationKey: db.DirectKey("a", "c")})
	require.NoError(t, err)
	require.NoError(t, f.Publish(ctx, foreign))
	require.NoError(t, f.Publish(ctx, feed.Event{Table: feed.TableMessages, Op: feed.Insert, Key: key}))

	assert.Empty(t, v.Messages())
}
