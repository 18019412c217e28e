package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/config"
	"github.com/warsan/imposter-game-backend/internal/httpapi"
	"github.com/warsan/imposter-game-backend/internal/registry"
	"github.com/warsan/imposter-game-backend/internal/stats"
	"github.com/warsan/imposter-game-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var store stats.Store
	if cfg.DatabaseDSN != "" {
		gs, err := stats.OpenGorm(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("open stats store", zap.Error(err))
		}
		store = gs
	} else {
		logger.Warn("no DATABASE_DSN set, stats will not survive restarts")
		store = stats.NewMemoryStore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway := ws.NewGateway(logger)
	reg := registry.New(ctx, registry.Deps{
		Chat:  gateway,
		Stats: stats.NewAccrual(store, logger),
		Log:   logger,
	})
	defer reg.Shutdown()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(reg, gateway, store, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
