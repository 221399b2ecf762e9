package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marketdata-service/internal/bootstrap"
	"marketdata-service/internal/config"
	"marketdata-service/internal/infrastructure/logx"
	"marketdata-service/internal/infrastructure/worker"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := bootstrap.BuildRepos(ctx, cfg)
	if err != nil {
		log.Fatal("bootstrap repos", zap.Error(err))
	}
	defer closeRepos()

	providers, err := bootstrap.BuildProviders(cfg)
	if err != nil {
		log.Fatal("bootstrap providers", zap.Error(err))
	}
	lock, closeLock, err := bootstrap.BuildLock(cfg)
	if err != nil {
		log.Fatal("bootstrap lock", zap.Error(err))
	}
	defer closeLock()

	refresher := bootstrap.BuildRefresher(cfg, repos, providers, lock)

	s := &worker.Scheduler{
		Refresher: refresher,
		FastEvery: cfg.FastRefresh,
		SlowEvery: cfg.SlowRefresh,
		Log:       log,
	}
	s.Start(ctx)
}
