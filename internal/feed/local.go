package feed

import (
	"context"
	"slices"
	"sync"
)

// Local is an in-process feed. Publish delivers synchronously on the
// publisher's goroutine, in subscription order.
type Local struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]Handler
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[uint64]Handler)}
}

func (l *Local) Subscribe(_ context.Context, table, key string, h Handler) (Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := topic(table, key)
	if l.subs[t] == nil {
		l.subs[t] = make(map[uint64]Handler)
	}
	l.next++
	l.subs[t][l.next] = h
	return &localSub{feed: l, topic: t, id: l.next}, nil
}

func (l *Local) Publish(_ context.Context, ev Event) error {
	t := topic(ev.Table, ev.Key)

	l.mu.RLock()
	ids := make([]uint64, 0, len(l.subs[t]))
	for id := range l.subs[t] {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		// a handler unsubscribed by an earlier one in this loop is skipped
		if h, ok := l.handler(t, id); ok {
			h(ev)
		}
	}
	return nil
}

func (l *Local) handler(t string, id uint64) (Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.subs[t][id]
	return h, ok
}

// Subscribers returns the number of live subscriptions on a topic.
func (l *Local) Subscribers(table, key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs[topic(table, key)])
}

type localSub struct {
	feed  *Local
	topic string
	id    uint64
}

func (s *localSub) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()

	delete(s.feed.subs[s.topic], s.id)
	if len(s.feed.subs[s.topic]) == 0 {
		delete(s.feed.subs, s.topic)
	}
	return nil
}
