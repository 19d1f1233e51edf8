package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/repository"
)

const inboxRefreshTimeout = 5 * time.Second

// Inbox is a live conversation list for one user. Every inbox event (a new
// message either way, or a mark-read) triggers a recount from the store
// instead of patching counters, so missed events cannot leave stale counts.
type Inbox struct {
	user     string
	coord    *Coordinator
	listener func([]repository.ConversationSummary)
	log      *slog.Logger

	mu        sync.Mutex
	closed    bool
	sub       feed.Subscription
	summaries []repository.ConversationSummary
}

// OpenInbox subscribes to userID's inbox and loads it. listener, when set,
// receives every recomputed list and must not call back into the inbox.
func (c *Coordinator) OpenInbox(ctx context.Context, userID string, listener func([]repository.ConversationSummary)) (*Inbox, error) {
	in := &Inbox{
		user:     userID,
		coord:    c,
		listener: listener,
		log:      c.log.With("inbox", userID),
	}

	sub, err := c.feed.Subscribe(ctx, feed.TableMessages, InboxKey(userID), in.handle)
	if err != nil {
		return nil, err
	}
	in.mu.Lock()
	in.sub = sub
	err = in.refreshLocked(ctx)
	in.mu.Unlock()

	if err != nil {
		_ = in.Close()
		return nil, err
	}
	return in, nil
}

func (in *Inbox) handle(feed.Event) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboxRefreshTimeout)
	defer cancel()
	if err := in.refreshLocked(ctx); err != nil {
		in.log.Warn("inbox refresh failed", "err", err)
	}
}

func (in *Inbox) refreshLocked(ctx context.Context) error {
	summaries, err := in.coord.Conversations(ctx, in.user)
	if err != nil {
		return err
	}
	in.summaries = summaries
	if in.listener != nil {
		in.listener(summaries)
	}
	return nil
}

// Summaries returns the last computed conversation list.
func (in *Inbox) Summaries() []repository.ConversationSummary {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]repository.ConversationSummary, len(in.summaries))
	copy(out, in.summaries)
	return out
}

// Unread returns the unread count from partner.
func (in *Inbox) Unread(partner string) int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, s := range in.summaries {
		if s.PartnerID == partner {
			return s.Unread
		}
	}
	return 0
}

func (in *Inbox) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	sub := in.sub
	in.sub = nil
	in.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
