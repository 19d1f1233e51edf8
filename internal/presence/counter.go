package presence

import (
	"context"
	"log/slog"

	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/metrics"
	"github.com/oggyb/muzz-connect/internal/repository"
)

// JoinResult reports a join. Re-joining is not an error.
type JoinResult struct {
	AlreadyJoined bool
	Count         int64
}

// Counter maintains viewer records and the counts derived from them. Counts
// are always recomputed from the records, never incremented.
type Counter struct {
	repo    *repository.StreamRepository
	streams *Streams
	cache   *cache.RedisCache
	feed    feed.Feed
	log     *slog.Logger
}

func NewCounter(repo *repository.StreamRepository, streams *Streams, c *cache.RedisCache, f feed.Feed, log *slog.Logger) *Counter {
	return &Counter{repo: repo, streams: streams, cache: c, feed: f, log: log}
}

// Join records userID as a viewer of streamID. Joining twice keeps one record.
func (c *Counter) Join(ctx context.Context, streamID, userID string) (JoinResult, error) {
	st, err := c.streams.Get(ctx, streamID)
	if err != nil {
		return JoinResult{}, err
	}

	created, err := c.repo.UpsertViewer(ctx, streamID, userID)
	if err != nil {
		return JoinResult{}, svcErr.Retryable("join stream", err)
	}
	if created {
		c.publish(ctx, feed.Insert, streamID, db.StreamViewer{StreamID: streamID, UserID: userID})
	}

	n, err := c.recount(ctx, st)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{AlreadyJoined: !created, Count: n}, nil
}

// Leave removes the viewer record, if any, and returns the new count.
func (c *Counter) Leave(ctx context.Context, streamID, userID string) (int64, error) {
	st, err := c.streams.Get(ctx, streamID)
	if err != nil {
		return 0, err
	}

	deleted, err := c.repo.DeleteViewer(ctx, streamID, userID)
	if err != nil {
		return 0, svcErr.Retryable("leave stream", err)
	}
	if deleted {
		c.publish(ctx, feed.Delete, streamID, db.StreamViewer{StreamID: streamID, UserID: userID})
	}
	return c.recount(ctx, st)
}

// Count returns the current number of viewers.
func (c *Counter) Count(ctx context.Context, streamID string) (int64, error) {
	return c.Recount(ctx, streamID)
}

// Recount counts the viewer records and writes the result back onto the
// stream row and into Redis for stream list pages. Unknown streams are
// rejected before anything is written.
func (c *Counter) Recount(ctx context.Context, streamID string) (int64, error) {
	st, err := c.streams.Get(ctx, streamID)
	if err != nil {
		return 0, err
	}
	return c.recount(ctx, st)
}

func (c *Counter) recount(ctx context.Context, st *db.Stream) (int64, error) {
	n, err := c.repo.CountViewers(ctx, st.ID)
	if err != nil {
		return 0, svcErr.Retryable("count viewers", err)
	}
	if err := c.repo.SetViewerCount(ctx, st.ID, n); err != nil {
		c.log.Warn("viewer count write-back failed", "stream", st.ID, "err", err)
	}
	if err := c.cache.SetViewerCount(ctx, st.ID, n); err != nil {
		c.log.Warn("viewer count cache write failed", "stream", st.ID, "err", err)
	}
	// ended streams keep their stored count but no gauge
	metrics.ObserveViewers(st.ID, n, st.IsActive)
	return n, nil
}

func (c *Counter) publish(ctx context.Context, op feed.Op, streamID string, v db.StreamViewer) {
	ev, err := feed.NewEvent(feed.TableViewers, op, streamID, v)
	if err == nil {
		err = c.feed.Publish(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		c.log.Warn("feed publish failed", "stream", streamID, "op", op, "err", err)
	}
}
