// Package feed is the change-feed collaborator: row mutation notifications
// partitioned by table and key. Delivery is at-least-once and best-effort
// ordered; subscribers must tolerate duplicates and reordering.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
)

type Op string

const (
	Insert Op = "INSERT"
	Update Op = "UPDATE"
	Delete Op = "DELETE"
)

// Tables published on the feed.
const (
	TableMessages = "messages"
	TableViewers  = "stream_viewers"
	TableStreams  = "streams"
)

// Event is one row mutation. Payload holds the JSON of the affected row(s).
type Event struct {
	Table   string          `json:"table"`
	Op      Op              `json:"op"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event.
func NewEvent(table string, op Op, key string, payload any) (Event, error) {
	ev := Event{Table: table, Op: op, Key: key}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal %s event payload: %w", table, err)
		}
		ev.Payload = b
	}
	return ev, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s %s event without payload", e.Table, e.Op)
	}
	return json.Unmarshal(e.Payload, v)
}

type Handler func(Event)

// Subscription is the handle returned by Subscribe. Unsubscribe is synchronous:
// once it returns no new delivery to the handler starts. It must not be called
// from inside the handler itself.
type Subscription interface {
	Unsubscribe() error
}

type Feed interface {
	Subscribe(ctx context.Context, table, key string, h Handler) (Subscription, error)
	Publish(ctx context.Context, ev Event) error
}

func topic(table, key string) string { return table + ":" + key }
