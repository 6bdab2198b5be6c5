package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopkeep/internal/api"
	"shopkeep/internal/auth"
	"shopkeep/internal/config"
	"shopkeep/internal/db"
	"shopkeep/internal/game"
	"shopkeep/internal/save"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	store := save.NewPGStore(pool)
	if cfg.SeedDemo {
		if err := store.EnsureSave(ctx, save.DemoUserID, game.DefaultState(time.Now())); err != nil {
			logger.Error("seed demo save failed", "err", err)
			os.Exit(1)
		}
	}

	coord := save.NewCoordinator(store, logger)
	linuxdo := auth.NewLinuxDoClient(cfg.LinuxDoClientID, cfg.LinuxDoClientSecret, cfg.LinuxDoRedirectURI)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	server := api.New(cfg, logger, coord, store, linuxdo, tokens)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("shopkeep api listening", "addr", cfg.Addr, "env", cfg.Env)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
