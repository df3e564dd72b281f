package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/macks-labs/coinscreen/internal/config"
	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/logger"
	"github.com/macks-labs/coinscreen/internal/provider"
	"github.com/macks-labs/coinscreen/internal/screener"
	"github.com/macks-labs/coinscreen/internal/storage"
	"github.com/macks-labs/coinscreen/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	defaults, err := criteria.NewStore(cfg.Screener.Defaults)
	if err != nil {
		logger.Fatal("Failed to seed default criteria: %v", err)
	}

	providerClient := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.Timeout,
		provider.ClientConfig{
			APIKey:         cfg.Provider.APIKey,
			Convert:        cfg.Provider.Convert,
			MaxRetries:     cfg.Provider.MaxRetries,
			RetryDelayBase: cfg.Provider.RetryDelayBase,
		},
	)

	var persist screener.OverrideStore
	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		persist = store
		logger.Info("Criteria persistence enabled at %s", cfg.Storage.DBPath)
	} else {
		logger.Debug("Criteria persistence disabled, running in-memory")
	}

	engine := screener.New(
		providerClient,
		screener.NewRegistry(defaults),
		persist,
		screener.Config{
			FetchLimit:    cfg.Provider.Limit,
			SortKey:       cfg.Provider.SortKey,
			SortDir:       cfg.Provider.SortDir,
			AdjustStepPct: cfg.Screener.AdjustStepPct,
		},
	)

	if store != nil {
		overrides, err := store.LoadAllOverrides()
		if err != nil {
			logger.Warn("Failed to load persisted overrides: %v", err)
		} else {
			engine.LoadOverrides(overrides)
		}
	}

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, engine, telegram.Config{
		UpdateTimeout:  cfg.Telegram.UpdateTimeout,
		MaxRows:        cfg.Screener.MaxRows,
		MaxRetries:     cfg.Telegram.MaxRetries,
		RetryDelayBase: cfg.Telegram.RetryDelayBase,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Telegram bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting screener bot (provider limit: %d, sort: %s %s, adjust step: %.0f%%)",
		cfg.Provider.Limit, cfg.Provider.SortKey, cfg.Provider.SortDir, cfg.Screener.AdjustStepPct)

	bot.Run(ctx)
	logger.Info("Service stopped")
}
