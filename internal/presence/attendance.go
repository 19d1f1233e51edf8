package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/feed"
)

const (
	leaveTimeout   = 5 * time.Second
	recountTimeout = 5 * time.Second
)

type UpdateKind int

const (
	ViewerCount UpdateKind = iota + 1
	Ended
)

// Update is pushed to an attendee: a fresh viewer count or the stream ending.
type Update struct {
	Kind   UpdateKind
	Count  int64
	Stream *db.Stream
}

// Attendance is one user watching one stream. It holds the viewer record and
// the feed subscriptions; Close releases all of them and must run on every
// exit path of the watching code.
type Attendance struct {
	stream   string
	user     string
	counter  *Counter
	onUpdate func(Update)
	log      *slog.Logger
	joined   JoinResult

	mu     sync.Mutex
	closed bool
	subs   []feed.Subscription

	once     sync.Once
	closeErr error
	done     chan struct{}
}

// CheckAccess returns the stream when userID may watch it: it must be live,
// and premium-only streams admit premium users and their streamer.
func (c *Counter) CheckAccess(ctx context.Context, streamID, userID string) (*db.Stream, error) {
	st, err := c.streams.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, ErrStreamEnded
	}
	if st.PremiumOnly && st.StreamerID != userID && !c.streams.gate.IsPremium(ctx, userID) {
		return nil, ErrPremiumRequired
	}
	return st, nil
}

// Attend checks access to streamID, subscribes to its viewer and stream
// events and joins it. onUpdate receives recounts and the end notice one at a
// time and must not call Close.
func (c *Counter) Attend(ctx context.Context, streamID, userID string, onUpdate func(Update)) (*Attendance, error) {
	if _, err := c.CheckAccess(ctx, streamID, userID); err != nil {
		return nil, err
	}

	if onUpdate == nil {
		onUpdate = func(Update) {}
	}
	a := &Attendance{
		stream:   streamID,
		user:     userID,
		counter:  c,
		onUpdate: onUpdate,
		log:      c.log.With("stream", streamID, "viewer", userID),
		done:     make(chan struct{}),
	}

	// subscribe before joining so our own join is counted like anyone else's
	for _, s := range []struct {
		table string
		h     feed.Handler
	}{
		{feed.TableViewers, a.onViewers},
		{feed.TableStreams, a.onStream},
	} {
		sub, err := c.feed.Subscribe(ctx, s.table, streamID, s.h)
		if err != nil {
			_ = a.Close()
			return nil, svcErr.Retryable("subscribe to stream", err)
		}
		a.mu.Lock()
		a.subs = append(a.subs, sub)
		a.mu.Unlock()
	}

	res, err := c.Join(ctx, streamID, userID)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.joined = res
	return a, nil
}

// Joined is the result of the join done by Attend.
func (a *Attendance) Joined() JoinResult { return a.joined }

// Done is closed once Close has finished.
func (a *Attendance) Done() <-chan struct{} { return a.done }

func (a *Attendance) onViewers(feed.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recountTimeout)
	defer cancel()
	n, err := a.counter.repo.CountViewers(ctx, a.stream)
	if err != nil {
		a.log.Warn("viewer recount failed", "err", err)
		return
	}
	a.onUpdate(Update{Kind: ViewerCount, Count: n})
}

func (a *Attendance) onStream(ev feed.Event) {
	var st db.Stream
	if err := ev.Decode(&st); err != nil {
		a.log.Warn("dropping malformed stream event", "err", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || st.IsActive {
		return
	}
	a.onUpdate(Update{Kind: Ended, Stream: &st})
}

// Close unsubscribes and leaves the stream. The leave is not tied to any
// request context so it also runs when the caller was cancelled. Calling
// Close again returns the first result.
func (a *Attendance) Close() error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		subs := a.subs
		a.subs = nil
		a.mu.Unlock()

		var errs []error
		for _, s := range subs {
			errs = append(errs, s.Unsubscribe())
		}

		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if _, err := a.counter.Leave(ctx, a.stream, a.user); err != nil {
			a.log.Error("leave on teardown failed", "err", err)
			errs = append(errs, err)
		}

		a.closeErr = errors.Join(errs...)
		close(a.done)
	})
	return a.closeErr
}
