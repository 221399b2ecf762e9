package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marketdata-service/internal/bootstrap"
	"marketdata-service/internal/config"
	infraconfig "marketdata-service/internal/infrastructure/config"
	httpserver "marketdata-service/internal/infrastructure/http"
	"marketdata-service/internal/infrastructure/logx"
)

func init() { _ = godotenv.Load() }

func main() {
	ctx := context.Background()
	logger := logx.L()
	cfg := config.Load()
	addr := ":" + cfg.Port

	repos, closeRepos, err := bootstrap.BuildRepos(ctx, cfg)
	if err != nil {
		logger.Fatal("bootstrap repos", zap.Error(err))
	}
	defer closeRepos()

	providers, err := bootstrap.BuildProviders(cfg)
	if err != nil {
		logger.Fatal("bootstrap providers", zap.Error(err))
	}
	lock, closeLock, err := bootstrap.BuildLock(cfg)
	if err != nil {
		logger.Fatal("bootstrap lock", zap.Error(err))
	}
	defer closeLock()

	refresher := bootstrap.BuildRefresher(cfg, repos, providers, lock)
	svc := bootstrap.BuildService(repos, providers, refresher)

	srv := httpserver.NewServer(svc)
	srv.SetReadyCheck(repos.DB.Ping)
	mux := httpserver.NewRouter(srv)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shCancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer shCancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
