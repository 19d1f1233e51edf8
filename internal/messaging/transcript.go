// Package messaging persists chat messages and keeps per-conversation views
// in sync with the change feed: every open view holds one ordered,
// de-duplicated transcript fed by the initial load and by pushed events.
package messaging

import (
	"sort"

	"github.com/oggyb/muzz-connect/internal/db"
)

// Transcript is the ordered message list of one conversation, oldest first.
// Messages are unique by id; equal timestamps keep arrival order.
// It is not safe for concurrent use; View serializes access.
type Transcript struct {
	msgs []db.Message
	ids  map[string]int
}

func NewTranscript(seed []db.Message) *Transcript {
	t := &Transcript{ids: make(map[string]int, len(seed))}
	for _, m := range seed {
		t.Merge(m)
	}
	return t
}

// Merge inserts m at its sorted position and reports whether it was new.
func (t *Transcript) Merge(m db.Message) bool {
	if _, ok := t.ids[m.ID]; ok {
		return false
	}

	// first message strictly newer than m; tail append in the common case
	i := len(t.msgs)
	if i > 0 && m.CreatedAt.Before(t.msgs[i-1].CreatedAt) {
		i = sort.Search(len(t.msgs), func(j int) bool {
			return t.msgs[j].CreatedAt.After(m.CreatedAt)
		})
	}

	t.msgs = append(t.msgs, db.Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = m
	t.reindex(i)
	return true
}

// Update replaces the stored copy of m (e.g. its read flag), inserting it
// when unknown. It reports whether anything changed.
func (t *Transcript) Update(m db.Message) bool {
	i, ok := t.ids[m.ID]
	if !ok {
		return t.Merge(m)
	}
	// an update never moves a message
	m.CreatedAt = t.msgs[i].CreatedAt
	if t.msgs[i] == m {
		return false
	}
	t.msgs[i] = m
	return true
}

func (t *Transcript) Len() int { return len(t.msgs) }

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []db.Message {
	out := make([]db.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) reindex(from int) {
	for j := from; j < len(t.msgs); j++ {
		t.ids[t.msgs[j].ID] = j
	}
}
