package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/alert"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/favorites"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/feed"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/fetch"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/infra"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/storage"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/store"

	"github.com/joho/godotenv"
)

// Bootstrap orchestrates the application startup sequence and owns every
// session-scoped component. One Bootstrap per session; no globals.
type Bootstrap struct {
	Config    *infra.Config
	MetaStore *storage.MetaStore
	Store     *store.Store
	Ledger    *favorites.Ledger
	Notifier  event.Notifier

	Weather *fetch.WeatherClient
	Crypto  *fetch.CryptoClient
	News    *fetch.NewsClient

	Feed   *feed.Manager
	Alerts *alert.Engine
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(notifier event.Notifier) *Bootstrap {
	if notifier == nil {
		notifier = event.LogNotifier{}
	}
	return &Bootstrap{Notifier: notifier}
}

// Initialize performs core system initialization (env, config, dirs, DB).
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	slog.Info("🚀 Bootstrapping CryptoWeather Nexus...")

	// .env is optional; real deployments export the vars directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "nexus.db")
	metaStore, err := storage.NewMetaStore(dbPath)
	if err != nil {
		return err
	}
	b.MetaStore = metaStore
	slog.Info("✅ MetaStore initialized (WAL-mode)", "path", dbPath)

	b.Ledger = favorites.Load(ctx, metaStore, b.Notifier)
	slog.Info("✅ Favorites loaded",
		slog.Int("cities", len(b.Ledger.Cities())),
		slog.Int("cryptos", len(b.Ledger.Cryptos())))

	b.Store = store.New()

	b.Weather = fetch.NewWeatherClient(cfg.API.Weather.RestURL, cfg.API.Weather.APIKey)
	b.Crypto = fetch.NewCryptoClient(cfg.API.Crypto.RestURL)
	b.News = fetch.NewNewsClient(cfg.API.News.RestURL, cfg.API.News.APIKey,
		time.Duration(cfg.API.News.CacheTTLMin)*time.Minute)

	b.Feed = feed.NewManager(cfg.API.Crypto.WSURL, cfg.Dashboard.Cryptos, b.Store, b.Notifier, b.RefreshCrypto)
	b.Feed.RetryDelay = time.Duration(cfg.Feed.RetryDelaySec) * time.Second
	b.Feed.MaxRetries = cfg.Feed.MaxRetries
	b.Feed.FallbackPoll = time.Duration(cfg.Feed.FallbackPollSec) * time.Second

	b.Alerts = alert.NewEngine(b.Store, b.Notifier)
	b.Alerts.ScanInterval = time.Duration(cfg.Dashboard.AlertScanIntervalSec) * time.Second

	return nil
}

// Run starts the live feed, the alert engine and the periodic refresh
// loops, then blocks until ctx is cancelled. Every timer and connection is
// torn down together before Run returns.
func (b *Bootstrap) Run(ctx context.Context) {
	b.Alerts.Start(ctx)
	defer b.Alerts.Stop()

	b.Feed.Start(ctx)
	defer b.Feed.Stop()

	// Initial population before the first tick.
	b.RefreshAll(ctx)

	if b.Config.Dashboard.SimulateAlerts {
		go b.Alerts.RunSimulator(ctx, b.Config.Dashboard.Cities,
			time.Duration(b.Config.Dashboard.SimulateIntervalSec)*time.Second)
	}

	ticker := time.NewTicker(time.Duration(b.Config.Dashboard.RefreshIntervalSec) * time.Second)
	defer ticker.Stop()

	slog.Info("✨ Dashboard core fully operational")

	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down refresh loop...")
			return
		case <-ticker.C:
			b.RefreshAll(ctx)
		}
	}
}

// RefreshAll runs one full bulk refresh cycle. Each source fails
// independently; cached state keeps rendering regardless.
func (b *Bootstrap) RefreshAll(ctx context.Context) {
	if err := b.RefreshWeather(ctx); err != nil {
		slog.Warn("weather refresh failed", "err", err)
	}
	if err := b.RefreshCrypto(ctx); err != nil {
		slog.Warn("crypto refresh failed", "err", err)
	}
	if _, err := b.News.FetchTop(ctx); err != nil {
		slog.Warn("news refresh failed", "err", err)
	}
}

// RefreshWeather bulk-fetches all configured cities, merges the result and
// records one history sample per refreshed city.
func (b *Bootstrap) RefreshWeather(ctx context.Context) error {
	results, err := b.Weather.FetchAll(ctx, b.Config.Dashboard.Cities)
	if err != nil {
		return err
	}
	b.Store.MergeWeather(results)
	for city := range results {
		b.Store.RecordWeatherSample(city)
	}
	return nil
}

// RefreshCrypto bulk-fetches all configured assets and merges the result.
// Doubles as the feed manager's fallback poll.
func (b *Bootstrap) RefreshCrypto(ctx context.Context) error {
	results, err := b.Crypto.FetchAssets(ctx, b.Config.Dashboard.Cryptos)
	if err != nil {
		return err
	}
	b.Store.MergeCrypto(results)
	return nil
}

// Close releases persistent resources.
func (b *Bootstrap) Close() {
	if b.MetaStore != nil {
		b.MetaStore.Close()
	}
}
