package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"donormatch/internal/matching/handler"
	matchingmetrics "donormatch/internal/matching/metrics"
	"donormatch/internal/matching/ports"
	"donormatch/internal/matching/service"
	"donormatch/internal/matching/store/memory"
	"donormatch/internal/matching/store/pgroupcache"
	"donormatch/internal/matching/store/sqlstore"
	"donormatch/internal/platform/config"
	"donormatch/internal/platform/httpserver"
	"donormatch/internal/platform/logger"
	"donormatch/internal/platform/metrics"
	platformredis "donormatch/internal/platform/redis"
)

// main wires dependencies, exposes the HTTP router, and keeps the server
// lifecycle small. Matching logic lives in internal/matching.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// repositories groups the ports a store provides.
type repositories interface {
	ports.PGroupRepository
	ports.LocusMatchRepository
	ports.DonorRepository
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	var (
		repos  repositories
		health []healthCheck
	)
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using empty in-memory donor store")
		repos = memory.New()
	} else {
		store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		repos = store
		health = append(health, healthCheck{name: "database", check: store.DB().PingContext})
	}

	var pgroups ports.PGroupRepository = repos
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		cache, err := pgroupcache.New(rc.Client, repos,
			pgroupcache.WithTTL(cfg.Redis.PGroupTTL),
			pgroupcache.WithLogger(log))
		if err != nil {
			return err
		}
		pgroups = cache
		health = append(health, healthCheck{name: "redis", check: rc.Health})
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(matchingmetrics.New(m.Registry)),
		service.WithBatchSize(cfg.Matching.BatchSize),
		service.WithHydrationBatchSize(cfg.Matching.HydrationBatchSize),
		service.WithMaxConcurrentVariants(cfg.Matching.MaxConcurrentVariants),
	}
	perLocus, err := service.NewPerLocusService(pgroups, repos, opts...)
	if err != nil {
		return err
	}
	donorMatching, err := service.NewDonorMatchingService(perLocus, opts...)
	if err != nil {
		return err
	}
	matching, err := service.NewMatchingService(donorMatching, repos, opts...)
	if err != nil {
		return err
	}

	router := newRouter(log, m, handler.New(matching, log), health)
	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting donormatch", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout)
}
