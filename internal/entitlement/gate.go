// Package entitlement answers whether a user is premium. The billing
// collaborator owns the state; the gate keeps a Redis copy with a TTL and
// mirrors it onto the profile's premium flag.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oggyb/muzz-connect/internal/cache"
)

// refreshTimeout bounds a shared refresh, which outlives the caller that
// started it.
const refreshTimeout = 10 * time.Second

// Source reports the authoritative premium state of a user.
type Source interface {
	RefreshEntitlement(ctx context.Context, userID string) (bool, error)
}

// PremiumWriter stores the denormalized premium flag.
type PremiumWriter interface {
	SetPremium(ctx context.Context, userID string, premium bool) error
}

type Gate struct {
	cache    *cache.RedisCache
	source   Source
	profiles PremiumWriter
	ttl      time.Duration
	log      *slog.Logger

	refreshes singleflight.Group
}

func NewGate(c *cache.RedisCache, source Source, profiles PremiumWriter, ttl time.Duration, log *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Gate{cache: c, source: source, profiles: profiles, ttl: ttl, log: log}
}

// IsPremium returns the cached state, refreshing on a miss. Any failure
// answers false.
func (g *Gate) IsPremium(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	premium, found, err := g.cache.GetEntitlement(ctx, userID)
	if err == nil && found {
		return premium
	}
	if err != nil {
		g.log.Warn("entitlement cache read failed", "user", userID, "err", err)
	}

	premium, err = g.Refresh(ctx, userID)
	if err != nil {
		g.log.Warn("entitlement check failed, treating as free", "user", userID, "err", err)
		return false
	}
	return premium
}

// CanMessage reports whether sender may message receiver: either party being
// premium unlocks the pair.
func (g *Gate) CanMessage(ctx context.Context, sender, receiver string) bool {
	return g.IsPremium(ctx, sender) || g.IsPremium(ctx, receiver)
}

// Refresh asks the billing collaborator for the current state and stores it.
// Concurrent refreshes of the same user share one call, which is detached
// from any single caller's cancellation; a cancelled caller stops waiting
// while the others still get the answer.
func (g *Gate) Refresh(ctx context.Context, userID string) (bool, error) {
	ch := g.refreshes.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		premium, err := g.source.RefreshEntitlement(ctx, userID)
		if err != nil {
			return false, err
		}
		if err := g.cache.SetEntitlement(ctx, userID, premium, g.ttl); err != nil {
			g.log.Warn("entitlement cache write failed", "user", userID, "err", err)
		}
		if err := g.profiles.SetPremium(ctx, userID, premium); err != nil {
			g.log.Warn("profile premium flag write failed", "user", userID, "err", err)
		}
		g.log.Debug("entitlement refreshed", "user", userID, "premium", premium)
		return premium, nil
	})

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("refresh entitlement of %s: %w", userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return false, fmt.Errorf("refresh entitlement of %s: %w", userID, res.Err)
		}
		return res.Val.(bool), nil
	}
}

// Forget drops the cached state, e.g. on sign-out.
func (g *Gate) Forget(ctx context.Context, userID string) error {
	return g.cache.Del(ctx, g.cache.KeyForEntitlement(userID))
}
