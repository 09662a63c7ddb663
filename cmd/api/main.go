package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/market/internal/api"
	"github.com/IlyasAtabaev731/market/internal/chat"
	"github.com/IlyasAtabaev731/market/internal/config"
	"github.com/IlyasAtabaev731/market/internal/ledger"
	"github.com/IlyasAtabaev731/market/internal/lib/logger"
	"github.com/IlyasAtabaev731/market/internal/storage/memory"
	"github.com/IlyasAtabaev731/market/internal/storage/postgres"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/lib/pq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type storage interface {
	api.Storage
	ledger.Store
	Stop() error
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env, cfg.LogFile)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage),
	)

	store, err := openStorage(cfg)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Stop(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	engine := ledger.NewEngine(store, log, cfg.Ledger.TxTimeout)
	router := chat.NewRouter(chat.NewRegistry(), log)

	apiServer := api.New(cfg, log, store, engine, router, []byte(cfg.JWTSecret))

	if cfg.Admin.Username != "" {
		if err := apiServer.EnsureAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Error("Failed to create admin account", "error", err)
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}
}

func openStorage(cfg *config.Config) (storage, error) {
	if cfg.Storage == config.StorageMemory {
		return memory.New(), nil
	}
	return postgres.New(cfg.PostgresURL())
}

func setupLogger(env, logFile string) *slog.Logger {
	var out io.Writer = os.Stdout
	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	var handler slog.Handler
	switch env {
	case envDev:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	case envProd:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	return slog.New(logger.NewMaskingHandler(handler))
}
