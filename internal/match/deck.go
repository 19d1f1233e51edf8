package match

import (
	"context"
	"sync"
	"time"

	"github.com/oggyb/muzz-connect/internal/db"
)

// Candidates supplies discovery candidates; see profile.Directory.
type Candidates interface {
	Candidates(ctx context.Context, viewer string, exclude []string, offset, limit int) ([]db.Profile, error)
}

// Deck is one user's discovery session: a queue of candidates plus the set of
// users already liked. The set is updated before the like reaches the store,
// so a second tap on the same profile resolves locally as AlreadyLiked.
type Deck struct {
	viewer   string
	source   Candidates
	ledger   *Ledger
	pageSize int

	mu     sync.Mutex
	liked  map[string]struct{}
	passed map[string]struct{}
	queue  []db.Profile
	used   time.Time
}

// NewDeck loads viewer's liked set from the store.
func NewDeck(ctx context.Context, viewer string, source Candidates, ledger *Ledger, pageSize int) (*Deck, error) {
	ids, err := ledger.LikedBy(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	d := &Deck{
		viewer:   viewer,
		source:   source,
		ledger:   ledger,
		pageSize: pageSize,
		liked:    make(map[string]struct{}, len(ids)),
		passed:   make(map[string]struct{}),
		used:     time.Now(),
	}
	for _, id := range ids {
		d.liked[id] = struct{}{}
	}
	return d, nil
}

// Peek returns up to n upcoming candidates without consuming them, loading
// a fresh page when the queue runs low.
func (d *Deck) Peek(ctx context.Context, n int) ([]db.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used = time.Now()

	if len(d.queue) < n {
		if err := d.reload(ctx, max(n, d.pageSize)); err != nil {
			return nil, err
		}
	}
	n = min(n, len(d.queue))
	out := make([]db.Profile, n)
	copy(out, d.queue[:n])
	return out, nil
}

// Current is the candidate at the head of the queue, or nil when there is none.
func (d *Deck) Current(ctx context.Context) (*db.Profile, error) {
	next, err := d.Peek(ctx, 1)
	if err != nil || len(next) == 0 {
		return nil, err
	}
	return &next[0], nil
}

// Like likes target and removes it from the queue. A failed write rolls the
// liked set back so the like can be retried.
func (d *Deck) Like(ctx context.Context, target string) (Result, error) {
	d.mu.Lock()
	d.used = time.Now()
	if _, ok := d.liked[target]; ok {
		d.mu.Unlock()
		return AlreadyLiked, nil
	}
	d.liked[target] = struct{}{}
	d.mu.Unlock()

	res, err := d.ledger.Like(ctx, d.viewer, target)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		delete(d.liked, target)
		return 0, err
	}
	d.drop(target)
	return res, nil
}

// Pass skips target for the rest of the session. Nothing is persisted.
func (d *Deck) Pass(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used = time.Now()
	d.passed[target] = struct{}{}
	d.drop(target)
}

// MarkLiked records a like of target made outside the deck.
func (d *Deck) MarkLiked(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liked[target] = struct{}{}
	d.drop(target)
}

func (d *Deck) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

func (d *Deck) drop(target string) {
	for i, p := range d.queue {
		if p.UserID == target {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}

// reload refills the queue from the top, skipping everyone liked or passed.
func (d *Deck) reload(ctx context.Context, limit int) error {
	exclude := make([]string, 0, len(d.liked)+len(d.passed))
	for id := range d.liked {
		exclude = append(exclude, id)
	}
	for id := range d.passed {
		exclude = append(exclude, id)
	}

	page, err := d.source.Candidates(ctx, d.viewer, exclude, 0, limit)
	if err != nil {
		return err
	}
	d.queue = page
	return nil
}
