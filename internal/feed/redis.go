package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis fans events out over Redis pub/sub so every process subscribed to a
// topic sees every publish. Handlers run on one goroutine per subscription.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func channel(table, key string) string { return "feed:" + topic(table, key) }

func (r *Redis) Subscribe(ctx context.Context, table, key string, h Handler) (Subscription, error) {
	ch := channel(table, key)
	ps := r.client.Subscribe(ctx, ch)

	// wait for the server to confirm, so publishes after Subscribe returns are seen
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ch, err)
	}

	sub := &redisSub{ps: ps, done: make(chan struct{})}
	msgs := ps.Channel()
	go func() {
		defer close(sub.done)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("dropping malformed feed event", "channel", ch, "err", err)
				continue
			}
			h(ev)
		}
	}()
	return sub, nil
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}
	if err := r.client.Publish(ctx, channel(ev.Table, ev.Key), b).Err(); err != nil {
		return fmt.Errorf("failed to publish feed event: %w", err)
	}
	return nil
}

type redisSub struct {
	once sync.Once
	ps   *redis.PubSub
	done chan struct{}
	err  error
}

func (s *redisSub) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
