package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/feed"
)

// State of a conversation view.
type State int

const (
	Closed State = iota
	Loading
	Live
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	default:
		return "closed"
	}
}

type ChangeKind int

const (
	// Snapshot carries the whole transcript once the view goes live.
	Snapshot ChangeKind = iota + 1
	// Added carries one newly merged message.
	Added
	// Updated carries messages whose stored copy changed.
	Updated
)

func (k ChangeKind) String() string {
	switch k {
	case Snapshot:
		return "snapshot"
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

type Change struct {
	Kind     ChangeKind
	Messages []db.Message
}

// Listener receives view changes in order, one at a time. It runs with the
// view locked and must not call back into the view.
type Listener func(Change)

var ErrViewClosed = fmt.Errorf("%w: conversation view is closed", svcErr.ErrPrecondition)

type loader interface {
	ListConversation(ctx context.Context, key string) ([]db.Message, error)
}

type submitFunc func(ctx context.Context, body string) (SendResult, error)

// View is one open conversation. It moves Closed -> Loading -> Live -> Closed.
// All state changes go through the view mutex: feed events, the initial load
// and Close are serialized, so the transcript has a single writer.
type View struct {
	key      string
	viewer   string
	listener Listener
	submit   submitFunc
	log      *slog.Logger

	mu         sync.Mutex
	state      State
	transcript *Transcript
	pending    []feed.Event
	sub        feed.Subscription
	draft      string
	done       chan struct{}
	readDone   <-chan struct{}
}

// openView subscribes to key before loading it so no event is lost between
// the load and the subscription; events that arrive while loading are
// replayed on top of the loaded rows. Any failure tears the subscription down.
func openView(ctx context.Context, key, viewer string, store loader, f feed.Feed, listener Listener, submit submitFunc, log *slog.Logger) (*View, error) {
	if listener == nil {
		listener = func(Change) {}
	}
	v := &View{
		key:      key,
		viewer:   viewer,
		listener: listener,
		submit:   submit,
		log:      log.With("conversation", key, "viewer", viewer),
		state:    Loading,
		done:     make(chan struct{}),
	}

	sub, err := f.Subscribe(ctx, feed.TableMessages, key, v.handle)
	if err != nil {
		v.mu.Lock()
		v.state = Closed
		close(v.done)
		v.mu.Unlock()
		return nil, svcErr.Retryable("subscribe to conversation", err)
	}
	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()

	msgs, err := store.ListConversation(ctx, key)
	if err != nil {
		if cerr := v.Close(); cerr != nil {
			v.log.Warn("unsubscribe after failed load", "err", cerr)
		}
		return nil, svcErr.Retryable("load conversation", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcript = NewTranscript(msgs)
	for _, ev := range v.pending {
		v.apply(ev)
	}
	v.pending = nil
	v.state = Live
	v.listener(Change{Kind: Snapshot, Messages: v.transcript.Messages()})
	return v, nil
}

func (v *View) handle(ev feed.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Loading:
		v.pending = append(v.pending, ev)
	case Live:
		if ch, ok := v.apply(ev); ok {
			v.listener(ch)
		}
	}
}

// apply merges one event into the transcript.
func (v *View) apply(ev feed.Event) (Change, bool) {
	switch ev.Op {
	case feed.Insert:
		var m db.Message
		if err := ev.Decode(&m); err != nil {
			v.log.Warn("dropping malformed message event", "err", err)
			return Change{}, false
		}
		if m.ConversationKey != v.key {
			return Change{}, false
		}
		if !v.transcript.Merge(m) {
			return Change{}, false
		}
		return Change{Kind: Added, Messages: []db.Message{m}}, true

	case feed.Update:
		var ms []db.Message
		if err := ev.Decode(&ms); err != nil {
			v.log.Warn("dropping malformed update event", "err", err)
			return Change{}, false
		}
		changed := ms[:0]
		for _, m := range ms {
			if m.ConversationKey == v.key && v.transcript.Update(m) {
				changed = append(changed, m)
			}
		}
		if len(changed) == 0 {
			return Change{}, false
		}
		return Change{Kind: Updated, Messages: changed}, true
	}
	return Change{}, false
}

// Close tears the subscription down. When it returns no further change
// reaches the listener. It must not be called from the listener.
func (v *View) Close() error {
	v.mu.Lock()
	if v.state == Closed {
		v.mu.Unlock()
		return nil
	}
	v.state = Closed
	sub := v.sub
	v.sub = nil
	v.pending = nil
	close(v.done)
	v.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

func (v *View) Key() string { return v.key }

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Messages returns the current transcript.
func (v *View) Messages() []db.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.transcript == nil {
		return nil
	}
	return v.transcript.Messages()
}

// Done is closed when the view closes.
func (v *View) Done() <-chan struct{} { return v.done }

// ReadDone is closed once the mark-read issued on open has finished. It is
// nil for stream chat.
func (v *View) ReadDone() <-chan struct{} { return v.readDone }

func (v *View) SetDraft(body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = body
}

func (v *View) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// Submit sends the draft. The draft is cleared only once the message is
// stored; on an error or a rejection it stays for a retry. The sent message
// reaches the transcript through the feed, never locally.
func (v *View) Submit(ctx context.Context) (SendResult, error) {
	v.mu.Lock()
	if v.state == Closed {
		v.mu.Unlock()
		return SendResult{}, ErrViewClosed
	}
	body := v.draft
	v.mu.Unlock()

	// the view is unlocked here: a synchronous feed delivers the sent
	// message back into handle on this goroutine
	res, err := v.submit(ctx, body)
	if err != nil || !res.Delivered() {
		return res, err
	}

	v.mu.Lock()
	if v.draft == body {
		v.draft = ""
	}
	v.mu.Unlock()
	return res, nil
}
