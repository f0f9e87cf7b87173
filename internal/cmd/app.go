package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/config"
	"github.com/proberun/probe/internal/logging"
	"github.com/proberun/probe/internal/notify"
	"github.com/proberun/probe/internal/planner/enrichment"
	"github.com/proberun/probe/internal/store"
	"github.com/proberun/probe/internal/store/jsonstore"
	"github.com/proberun/probe/internal/store/pgstore"
	"github.com/proberun/probe/internal/store/sqlitestore"
)

// app bundles the resources every subcommand needs, built once from
// the resolved Config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	runStore  store.Store
	artifacts *artifacts.Manager
	notifier  *notify.Notifier
	enricher  enrichment.Provider
}

// buildApp resolves configuration and wires the ambient stack shared
// by every subcommand: logging, the run store, the artifacts manager,
// the Telegram notifier, and (if credentials are present in the
// environment) an LLM enrichment provider.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile, yamlFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if maxPages > 0 {
		cfg.MaxPages = maxPages
	}
	if maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	runStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	am, err := artifacts.NewManager(cfg.ArtifactsRoot)
	if err != nil {
		return nil, fmt.Errorf("building artifacts manager: %w", err)
	}

	notifier, err := notify.New(notify.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID})
	if err != nil {
		return nil, fmt.Errorf("building notifier: %w", err)
	}

	enricher, err := enrichment.FromEnvironment(ctx)
	if err != nil {
		logger.Warn("LLM enrichment disabled", zap.Error(err))
		enricher = nil
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		runStore:  runStore,
		artifacts: am,
		notifier:  notifier,
		enricher:  enricher,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "json":
		return jsonstore.New(filepath.Dir(cfg.StorePath), nil)
	case "sqlite":
		return sqlitestore.New(cfg.StorePath)
	case "postgres", "pg":
		return pgstore.New(ctx, cfg.StorePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newDriver builds the headless-browser driver subcommands launch a
// fresh Context against, one per run.
func (a *app) newDriver(headless bool) browserdriver.Driver {
	return browserdriver.NewRodDriver("", headless, a.logger)
}

func (a *app) Close() {
	if a.runStore != nil {
		_ = a.runStore.Close()
	}
}
