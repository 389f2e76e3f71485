package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/levelwatch/levelwatch/internal/auth"
	"github.com/levelwatch/levelwatch/internal/config"
	"github.com/levelwatch/levelwatch/internal/logger"
	"github.com/levelwatch/levelwatch/internal/notify"
	"github.com/levelwatch/levelwatch/internal/quotes"
	"github.com/levelwatch/levelwatch/internal/render"
	"github.com/levelwatch/levelwatch/internal/server"
	"github.com/levelwatch/levelwatch/internal/storage"
	"github.com/levelwatch/levelwatch/internal/watch"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Optional .env for secrets like the bot token; the config file stays
	// committable.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	users, err := buildUserStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize credential store: %v", err)
	}

	quoteClient := quotes.NewClient(
		cfg.Quotes.BaseURL,
		cfg.Quotes.Range,
		cfg.Quotes.Interval,
		cfg.Quotes.Timeout,
		quotes.ClientConfig{
			MaxRetries:     cfg.Quotes.MaxRetries,
			RetryDelayBase: cfg.Quotes.RetryDelayBase,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier watch.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.ListenForCommands(ctx)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var sound *notify.SoundCue
	if cfg.Sound.Enabled {
		sound, err = notify.NewSoundCue(cfg.Sound.SourceURL, cfg.Sound.FilePath, cfg.Sound.Repeats)
		if err != nil {
			logger.Fatal("Failed to initialize sound cue: %v", err)
		}
	}

	session := watch.NewSession(watch.Options{
		References:      cfg.ReferenceTable(),
		Order:           cfg.Tickers(),
		Threshold:       cfg.Threshold(),
		GraceMinutes:    cfg.Watch.GraceMinutes,
		PollInterval:    cfg.Watch.PollInterval,
		Watchlist:       cfg.Watch.Watchlist,
		SoundEnabled:    cfg.Sound.Enabled,
		TelegramEnabled: cfg.Telegram.Enabled,
	}, quoteClient, notifier, store)

	renderer, err := render.New()
	if err != nil {
		logger.Fatal("Failed to initialize renderer: %v", err)
	}

	srv := server.New(session, users, renderer, sound, cfg.Watch.PollInterval)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		session.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown failed: %v", err)
		}
		cancel()
	}()

	if cfg.Watch.Background {
		logger.Info("Starting background poll loop (interval: %v, threshold: %.1f%%, watchlist: %v)",
			cfg.Watch.PollInterval, cfg.Watch.ThresholdPercent, cfg.Watch.Watchlist)
		session.Start(ctx)
	} else {
		logger.Info("Background polling disabled; polling on dashboard refresh only")
	}

	logger.Info("Dashboard listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("HTTP server failed: %v", err)
	}
	logger.Info("Service stopped")
}

// buildUserStore wires the configured credential backend and guarantees the
// protected admin account exists.
func buildUserStore(cfg *config.Config) (*auth.Store, error) {
	var backend auth.Backend
	switch cfg.Auth.Backend {
	case "remote":
		backend = auth.NewRemoteBackend(cfg.Auth.RemoteURL, cfg.Auth.RemoteToken, 15*time.Second)
	default:
		fileBackend, err := auth.NewFileBackend(cfg.Auth.FilePath)
		if err != nil {
			return nil, err
		}
		backend = fileBackend
	}

	store := auth.NewStore(backend)
	password := cfg.Auth.AdminPassword
	if password == "" {
		password = os.Getenv("LEVELWATCH_ADMIN_PASSWORD")
	}
	if password == "" {
		return nil, fmt.Errorf("auth.admin_password (or LEVELWATCH_ADMIN_PASSWORD) is required to seed the admin account")
	}
	if err := store.EnsureAdmin(password); err != nil {
		return nil, err
	}
	return store, nil
}
