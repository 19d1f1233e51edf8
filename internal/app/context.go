package app

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/auth"
	"github.com/oggyb/muzz-connect/internal/billing"
	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/entitlement"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/match"
	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/presence"
	"github.com/oggyb/muzz-connect/internal/profile"
	"github.com/oggyb/muzz-connect/internal/repository"
)

// deckTTL is how long an unused discovery deck is kept.
const deckTTL = 30 * time.Minute

// AppContext holds shared dependencies (DB, Redis, feed, logger) and the
// domain components built on them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Feed       feed.Feed
	Logger     *slog.Logger

	Auth      *auth.Authenticator
	Billing   billing.Client
	Gate      *entitlement.Gate
	Profiles  *profile.Directory
	Ledger    *match.Ledger
	Decks     *match.Decks
	Connector *match.Connector
	Messaging *messaging.Coordinator
	Sessions  *messaging.Sessions
	Streams   *presence.Streams
	Viewers   *presence.Counter
}

// New wires every component. Billing runs offline, reading the stored
// premium flag, when no billing API key is configured.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, f feed.Feed, logger *slog.Logger) *AppContext {
	profileRepo := repository.NewProfileRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	messageRepo := repository.NewMessageRepository(db, cfg.DB.LegacyMessages)
	streamRepo := repository.NewStreamRepository(db)

	a := &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Feed:       f,
		Logger:     logger,
	}

	if cfg.Billing.APIKey == "" {
		logger.Warn("no billing API key, entitlement comes from stored profile flags")
		a.Billing = billing.NewOffline(profileRepo)
	} else {
		a.Billing = billing.NewHTTPClient(cfg)
	}

	a.Profiles = profile.NewDirectory(
		profileRepo,
		likeRepo,
		profile.ParseUnsetPolicy(cfg.Discovery.UnsetGenderPolicy),
		logger.With("component", "profiles"),
	)
	a.Gate = entitlement.NewGate(
		rdb,
		a.Billing,
		a.Profiles,
		time.Duration(cfg.Entitlement.CacheTTLSeconds)*time.Second,
		logger.With("component", "entitlement"),
	)

	a.Ledger = match.NewLedger(likeRepo, rdb, logger.With("component", "match"))
	a.Decks = match.NewDecks(a.Profiles, a.Ledger, cfg.Discovery.PageSize, deckTTL)

	a.Messaging = messaging.NewCoordinator(messageRepo, streamRepo, a.Gate, f, logger.With("component", "messaging"))
	a.Sessions = messaging.NewSessions(a.Messaging)
	a.Connector = match.NewConnector(a.Ledger, a.Gate, a.Messaging, logger.With("component", "match"))

	a.Streams = presence.NewStreams(streamRepo, rdb, a.Gate, f, logger.With("component", "streams"))
	a.Viewers = presence.NewCounter(streamRepo, a.Streams, rdb, f, logger.With("component", "viewers"))

	a.Auth = auth.New(repository.NewAccountRepository(db), logger.With("component", "auth"))
	a.Auth.OnSessionChange(a.sessionChanged)
	return a
}

// sessionChanged makes sure a signed-in user has a profile and a fresh
// entitlement, and drops the cached entitlement on sign-out.
func (a *AppContext) sessionChanged(ctx context.Context, s auth.Session) {
	if !s.SignedIn {
		if err := a.Gate.Forget(ctx, s.UserID); err != nil {
			a.Logger.Warn("failed to forget entitlement", "user", s.UserID, "err", err)
		}
		return
	}

	if _, _, err := a.Profiles.Ensure(ctx, s.UserID); err != nil {
		a.Logger.Error("failed to ensure profile", "user", s.UserID, "err", err)
	}
	if _, err := a.Gate.Refresh(ctx, s.UserID); err != nil {
		a.Logger.Warn("entitlement refresh on sign-in failed", "user", s.UserID, "err", err)
	}
}
