// Package presence tracks live streams and who is watching them.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/metrics"
	"github.com/oggyb/muzz-connect/internal/repository"
)

var (
	ErrStreamNotFound  = fmt.Errorf("%w: stream not found", svcErr.ErrNotFound)
	ErrPremiumRequired = fmt.Errorf("%w: premium required", svcErr.ErrPermission)
	ErrStreamEnded     = fmt.Errorf("%w: stream has ended", svcErr.ErrPrecondition)
	ErrNotOwner        = fmt.Errorf("%w: only the streamer can end a stream", svcErr.ErrPermission)
	ErrInvalidStream   = fmt.Errorf("%w: invalid stream", svcErr.ErrInvalid)
)

// Premium answers entitlement questions; see entitlement.Gate.
type Premium interface {
	IsPremium(ctx context.Context, userID string) bool
}

// Streams is the directory of live streams.
type Streams struct {
	repo  *repository.StreamRepository
	cache *cache.RedisCache
	gate  Premium
	feed  feed.Feed
	log   *slog.Logger
}

func NewStreams(repo *repository.StreamRepository, c *cache.RedisCache, gate Premium, f feed.Feed, log *slog.Logger) *Streams {
	return &Streams{repo: repo, cache: c, gate: gate, feed: f, log: log}
}

// Create starts a stream. Hosting requires premium.
func (s *Streams) Create(ctx context.Context, streamer, title, description string, premiumOnly bool) (*db.Stream, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidStream)
	}
	if !s.gate.IsPremium(ctx, streamer) {
		return nil, ErrPremiumRequired
	}

	st := &db.Stream{
		StreamerID:  streamer,
		Title:       title,
		Description: strings.TrimSpace(description),
		PremiumOnly: premiumOnly,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, svcErr.Retryable("create stream", err)
	}
	s.log.Info("stream started", "stream", st.ID, "streamer", streamer)
	return st, nil
}

func (s *Streams) Get(ctx context.Context, id string) (*db.Stream, error) {
	st, err := s.repo.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrStreamNotFound
	case err != nil:
		return nil, svcErr.Retryable("load stream", err)
	}
	return st, nil
}

// ListActive lists live streams, newest first. Viewer counts come from the
// Redis copy when present, else from the stored column.
func (s *Streams) ListActive(ctx context.Context, offset, limit int) ([]db.Stream, error) {
	streams, err := s.repo.ListActive(ctx, offset, limit)
	if err != nil {
		return nil, svcErr.Retryable("list streams", err)
	}
	for i := range streams {
		n, found, err := s.cache.GetViewerCount(ctx, streams[i].ID)
		if err != nil {
			s.log.Warn("viewer count cache read failed", "stream", streams[i].ID, "err", err)
			continue
		}
		if found {
			streams[i].ViewerCount = n
		}
	}
	return streams, nil
}

// End stops a stream on behalf of its streamer and notifies its viewers.
func (s *Streams) End(ctx context.Context, streamer, id string) (*db.Stream, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.StreamerID != streamer {
		return nil, ErrNotOwner
	}
	if !st.IsActive {
		return st, nil
	}

	st, err = s.repo.End(ctx, id)
	if err != nil {
		return nil, svcErr.Retryable("end stream", err)
	}

	ev, err := feed.NewEvent(feed.TableStreams, feed.Update, id, st)
	if err == nil {
		err = s.feed.Publish(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		s.log.Warn("feed publish failed", "stream", id, "err", err)
	}
	metrics.ObserveViewers(id, 0, false)
	s.log.Info("stream ended", "stream", id)
	return st, nil
}
