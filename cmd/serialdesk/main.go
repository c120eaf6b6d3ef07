package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustinTDCT/SerialDesk/internal/api"
	"github.com/JustinTDCT/SerialDesk/internal/cache"
	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/jobs"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/metrics"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/scheduler"
	"github.com/JustinTDCT/SerialDesk/internal/version"
)

func main() {
	cfg := config.Load()
	log := logger.New("serialdesk", cfg.AppEnv)
	defer log.Sync()

	ver := version.Load("version.json", log)
	log.Info("SerialDesk starting", "version", ver.Version, "env", cfg.AppEnv, "driver", cfg.DBDriver)

	provider, err := db.NewProvider(cfg, log.Named("db"))
	if err != nil {
		log.Fatal("database setup failed", "error", err)
	}

	if cfg.EpisodeUniqueIndex {
		ensureEpisodeIndex(provider, log)
	}

	snapshots := cache.New(context.Background(), cfg.RedisURL, cfg.SnapshotCacheTTL, log.Named("cache"))
	m := metrics.New()
	executor := jobs.NewExecutor(provider, snapshots, log.Named("maintenance"), m)

	dispatcher, queue := jobs.NewDispatcher(context.Background(), cfg.RedisURL, executor, log)

	var sched *scheduler.Scheduler
	if cfg.MaintenanceSchedule != "" {
		sched, err = scheduler.New(cfg.MaintenanceSchedule, cfg.MaintenanceTasks, dispatcher, log.Named("scheduler"))
		if err != nil {
			log.Fatal("maintenance schedule invalid", "error", err)
		}
		sched.Start()
	}

	srv := api.NewServer(api.Deps{
		Config:      cfg,
		Provider:    provider,
		Logger:      log,
		Metrics:     m,
		Cache:       snapshots,
		Maintenance: dispatcher,
		Version:     ver,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if sched != nil {
		sched.Stop(ctx)
	}
	if queue != nil {
		queue.Stop()
	}
	if err := provider.Close(ctx); err != nil {
		log.Error("database close failed", "error", err)
	}
	if err := snapshots.Close(); err != nil {
		log.Error("cache close failed", "error", err)
	}
}

// ensureEpisodeIndex installs the (serial_id, episode_number) unique index.
// A failure is logged and startup continues on the application-level check.
func ensureEpisodeIndex(provider db.Provider, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, err := provider.Acquire(ctx)
	if err != nil {
		log.Warn("episode index skipped", "error", err)
		return
	}
	defer provider.Release(ctx, h)

	if err := repository.NewEpisodeRepository(h).EnsureIndexes(ctx); err != nil {
		log.Warn("episode index not created", "error", err)
		return
	}
	log.Info("episode unique index ensured")
}
