package match

import (
	"context"
	"sync"
	"time"
)

// Decks keeps one Deck per user across requests and drops decks idle for
// longer than ttl.
type Decks struct {
	source   Candidates
	ledger   *Ledger
	pageSize int
	ttl      time.Duration

	mu        sync.Mutex
	decks     map[string]*Deck
	lastSweep time.Time
}

func NewDecks(source Candidates, ledger *Ledger, pageSize int, ttl time.Duration) *Decks {
	return &Decks{
		source:    source,
		ledger:    ledger,
		pageSize:  pageSize,
		ttl:       ttl,
		decks:     make(map[string]*Deck),
		lastSweep: time.Now(),
	}
}

// Get returns viewer's deck, creating it on first use.
func (s *Decks) Get(ctx context.Context, viewer string) (*Deck, error) {
	s.mu.Lock()
	s.sweepLocked(time.Now())
	d, ok := s.decks[viewer]
	s.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := NewDeck(ctx, viewer, s.source, s.ledger, s.pageSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent Get may have won the race; keep a single deck per user
	if existing, ok := s.decks[viewer]; ok {
		return existing, nil
	}
	s.decks[viewer] = d
	return d, nil
}

// Len is the number of live decks.
func (s *Decks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decks)
}

func (s *Decks) sweepLocked(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, d := range s.decks {
		if now.Sub(d.idleSince()) > s.ttl {
			delete(s.decks, id)
		}
	}
}
