package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/fortaops/sentinel/internal/control"
	"github.com/fortaops/sentinel/internal/core/config"
	"github.com/fortaops/sentinel/internal/core/registry"
	"github.com/fortaops/sentinel/internal/extension/forta"
	"github.com/fortaops/sentinel/internal/health"
	"github.com/fortaops/sentinel/internal/infra/sla"
	"github.com/fortaops/sentinel/internal/infra/storage"
	filestore "github.com/fortaops/sentinel/internal/infra/storage/file"
	"github.com/fortaops/sentinel/internal/infra/storage/postgres"
	"github.com/fortaops/sentinel/internal/monitor/dispatch"
	"github.com/fortaops/sentinel/internal/notify"

	redisclient "github.com/fortaops/sentinel/internal/infra/redis"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	autostart := flag.Bool("autostart", true, "Start monitoring immediately")
	flag.Parse()

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})))
	slog.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry storage: PostgreSQL when configured, JSON file otherwise.
	var store storage.RegistryStore
	var db *postgres.DB
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to init database", "error", err)
			os.Exit(1)
		}
		if err := db.Migrate("migrations"); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		store = postgres.NewRegistryRepo(db)
		slog.Info("Using PostgreSQL registry storage")
	} else {
		store = filestore.NewStore(cfg.DBPath)
		slog.Info("Using file registry storage", "path", cfg.DBPath)
	}

	// A corrupt registry is fatal: continuing with unknown state risks
	// silent data loss.
	reg, err := registry.Open(ctx, store)
	if err != nil {
		slog.Error("Failed to open registry", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.Console{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Error("Failed to init telegram notifier", "error", err)
			os.Exit(1)
		}
		notifier = tg
		slog.Info("Using telegram notifier", "chat_id", cfg.Telegram.ChatID)
	}

	var seen dispatch.SeenStore
	var redisConn *redisclient.Client
	if cfg.Redis.URL != "" {
		redisConn, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-memory dedup", "error", err)
		} else {
			seen = redisclient.NewSeenStore(redisConn, time.Hour)
			slog.Info("Using Redis alert dedup store")
		}
	}

	dispatcher := dispatch.New(notifier, seen)
	fetcher := sla.NewClient(cfg.URL, 5*time.Second)

	ctrl := control.New(control.Config{
		PollInterval:          cfg.PollInterval(),
		UnreachableAfter:      cfg.UnreachableAfter,
		Chains:                cfg.Chains,
		ReconnectInitialDelay: cfg.Reconnect.InitialReconnectDelay(),
		ReconnectMaxDelay:     cfg.Reconnect.MaxReconnectDelay(),
	}, fetcher, reg, dispatcher)

	ext := forta.New(ctx, reg, ctrl, fetcher, dispatcher, cfg.Chains)

	healthServer := health.NewServer(ctrl, cfg.Server.Port)
	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server failed", "error", err)
		}
	}()

	if *autostart {
		if reply, err := ext.HandleCommand(ctx, []string{"start"}); err != nil {
			slog.Error("Failed to start monitoring", "error", err)
			os.Exit(1)
		} else {
			slog.Info(reply)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := ext.Shutdown(); err != nil {
		slog.Error("Error stopping monitoring", "error", err)
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		slog.Error("Error stopping health server", "error", err)
	}
	if redisConn != nil {
		if err := redisConn.Close(); err != nil {
			slog.Warn("Failed to close Redis", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}

	slog.Info("Sentinel stopped gracefully")
}
