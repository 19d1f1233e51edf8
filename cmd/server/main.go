package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/server"
	"github.com/oggyb/muzz-connect/internal/service/connect"
)

func main() {
	root := &cobra.Command{
		Use:           "connect",
		Short:         "Dating connections server: discovery, likes, messaging and live streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "issue-token <user-id>",
		Short: "Issue an API token for a user, revoking any earlier one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return issueToken(cmd.Context(), args[0])
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("connect exited", "err", err)
		os.Exit(1)
	}
}

// boot loads config, connects the backends and wires the application.
func boot(ctx context.Context) (*app.AppContext, error) {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var f feed.Feed
	switch cfg.Feed.Driver {
	case "local":
		log.Warn("local feed: live updates stay inside this process")
		f = feed.NewLocal()
	default:
		f = feed.NewRedis(redisCache.Client, log.With("component", "feed"))
	}

	return app.New(cfg, database, redisCache, f, log), nil
}

func serve(ctx context.Context) error {
	appCtx, err := boot(ctx)
	if err != nil {
		return err
	}
	cfg, log := appCtx.Config, appCtx.Logger

	if cfg.IsDevelopment() {
		if err := db.SeedTestData(appCtx.DB, log.With("component", "seed")); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	grpcServer, err := server.NewGRPCServer(cfg, appCtx.Auth, log, connect.NewRegistrar(appCtx))
	if err != nil {
		return err
	}
	ops := server.NewOpsRouter(cfg, checks(appCtx.DB, appCtx.RedisCache), appCtx.Gate, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.ServeGRPC(ctx, cfg, grpcServer)
	})
	g.Go(func() error {
		log.Info("starting ops HTTP server", "addr", cfg.HTTP.Host+":"+cfg.HTTP.Port)
		return server.ServeHTTP(ctx, cfg, ops)
	})

	err = g.Wait()
	log.Info("server stopped", "err", err)
	return err
}

func checks(database *gorm.DB, rdb *cache.RedisCache) map[string]server.Check {
	return map[string]server.Check{
		"db": func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": rdb.Ping,
	}
}

func issueToken(ctx context.Context, userID string) error {
	appCtx, err := boot(ctx)
	if err != nil {
		return err
	}
	token, err := appCtx.Auth.Issue(ctx, userID)
	if err != nil {
		return err
	}
	appCtx.Logger.Info("token issued", slog.String("user", userID))
	fmt.Println(token)
	return nil
}
