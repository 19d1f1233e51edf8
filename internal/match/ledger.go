// Package match records likes and derives mutual matches from them.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/metrics"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// Result is the outcome of a like. None of them is an error.
type Result int

const (
	Sent Result = iota + 1
	AlreadyLiked
	MutualMatch
)

func (r Result) String() string {
	switch r {
	case Sent:
		return "sent"
	case AlreadyLiked:
		return "already_liked"
	case MutualMatch:
		return "mutual_match"
	default:
		return "unknown"
	}
}

var (
	ErrSelfLike    = fmt.Errorf("%w: cannot like yourself", svcErr.ErrInvalid)
	ErrMissingUser = fmt.Errorf("%w: user id is required", svcErr.ErrInvalid)
	ErrBadToken    = fmt.Errorf("%w: malformed page token", svcErr.ErrInvalid)
)

type Ledger struct {
	likes *repository.LikeRepository
	cache *cache.RedisCache
	log   *slog.Logger
}

func NewLedger(likes *repository.LikeRepository, c *cache.RedisCache, log *slog.Logger) *Ledger {
	return &Ledger{likes: likes, cache: c, log: log}
}

// Like records actor -> target.
//
// Behavior:
//   - A like that already exists is reported as AlreadyLiked, not as an error.
//   - MutualMatch when target had already liked actor, Sent otherwise.
//   - Storage failures wrap ErrRetryable; nothing is written in that case.
func (l *Ledger) Like(ctx context.Context, actor, target string) (Result, error) {
	if actor == "" || target == "" {
		return 0, ErrMissingUser
	}
	if actor == target {
		return 0, ErrSelfLike
	}

	mutual, err := l.likes.Insert(ctx, actor, target)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		metrics.LikesTotal.WithLabelValues(AlreadyLiked.String()).Inc()
		return AlreadyLiked, nil
	case err != nil:
		l.log.Error("like insert failed", "actor", actor, "target", target, "err", err)
		return 0, svcErr.Retryable("like", err)
	}

	// count changed, next read goes to the DB
	if err := l.cache.InvalidateLikeCount(ctx, target); err != nil {
		l.log.Warn("failed to invalidate like count", "user", target, "err", err)
	}

	res := Sent
	if mutual {
		res = MutualMatch
	}
	metrics.LikesTotal.WithLabelValues(res.String()).Inc()
	l.log.Debug("like recorded", "actor", actor, "target", target, "result", res)
	return res, nil
}

// LikedBy returns everyone actor has liked.
func (l *Ledger) LikedBy(ctx context.Context, actor string) ([]string, error) {
	ids, err := l.likes.LikedBy(ctx, actor)
	if err != nil {
		return nil, svcErr.Retryable("load liked set", err)
	}
	return ids, nil
}

// ListLikedYou pages through everyone who liked recipient, newest first.
func (l *Ledger) ListLikedYou(ctx context.Context, recipient string, token *string, limit int) ([]db.Like, *string, error) {
	likes, next, err := l.likes.GetLikers(ctx, recipient, token, limit)
	return likes, next, pageErr("list likers", err)
}

// ListNewLikedYou is ListLikedYou without the likes recipient already returned.
func (l *Ledger) ListNewLikedYou(ctx context.Context, recipient string, token *string, limit int) ([]db.Like, *string, error) {
	likes, next, err := l.likes.GetNewLikers(ctx, recipient, token, limit)
	return likes, next, pageErr("list new likers", err)
}

func pageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pagination.ErrInvalidToken):
		return ErrBadToken
	default:
		return svcErr.Retryable(op, err)
	}
}

// CountLikedYou returns how many users liked recipient.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID); a hit refreshes the TTL.
//  2. On a miss or cache failure, falls back to DB via repository.CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (l *Ledger) CountLikedYou(ctx context.Context, recipient string) (int64, error) {
	n, found, err := l.cache.GetLikeCount(ctx, recipient)
	if err == nil && found {
		return n, nil
	}
	if err != nil {
		l.log.Warn("like count cache read failed", "user", recipient, "err", err)
	}

	n, err = l.likes.CountLikers(ctx, recipient)
	if err != nil {
		return 0, svcErr.Retryable("count likers", err)
	}
	if err := l.cache.SetLikeCount(ctx, recipient, n); err != nil {
		l.log.Warn("like count cache write failed", "user", recipient, "err", err)
	}
	return n, nil
}

// ListMatches returns userID's mutual matches, most recent first.
func (l *Ledger) ListMatches(ctx context.Context, userID string) ([]db.Like, error) {
	likes, err := l.likes.Matches(ctx, userID)
	if err != nil {
		return nil, svcErr.Retryable("list matches", err)
	}
	return likes, nil
}
