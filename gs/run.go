package gs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"

	"github.com/roessland/gearsync/pkg/output"
	"github.com/roessland/gearsync/store"
	"github.com/roessland/gearsync/strava"
)

// Cache backends accepted by OpenStore.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// CacheConfig selects and configures the cache store
type CacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
}

// SyncConfig holds all configuration needed for a sync cycle
type SyncConfig struct {
	Credential      Credential
	Cache           CacheConfig
	NoCache         bool
	PageSize        int
	GearConcurrency int
	ShowAll         bool
	SaveJSON        bool
	OutputPath      string
	MetricsTextfile string
	JSONMode        bool
	LogLevel        string
	// BaseURL and TokenURL default to the public Strava endpoints.
	BaseURL  string
	TokenURL string
	// Saver persists a refreshed credential. Nil skips persistence.
	Saver CredentialSaver
}

// CacheStats is what the stats command reports
type CacheStats struct {
	Backend       string
	ActivityCount int
	GearCount     int
	LatestUpdate  time.Time
}

// OpenStore connects to the configured cache backend.
func OpenStore(ctx context.Context, cfg CacheConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", BackendRedis:
		return store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case BackendSQLite:
		path, err := homedir.Expand(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand sqlite path: %w", err)
		}
		return store.OpenSQLite(ctx, path)
	case BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want redis, sqlite or memory)", cfg.Backend)
	}
}

// Sync performs the main sync orchestration: credential check, incremental
// activity pull, gear resolution, summary output and optional exports.
func Sync(ctx context.Context, config SyncConfig) error {
	// 1. Setup dependencies
	ol, logger, presentation, err := setupDependencies(config.JSONMode, config.LogLevel, "sync")
	if err != nil {
		return err
	}
	defer ol.Close()
	logger = logger.With("sync_id", uuid.NewString())

	// 2. Open the cache
	cacheCfg := config.Cache
	if config.NoCache {
		cacheCfg.Backend = BackendMemory
	}
	st, err := openCache(ctx, cacheCfg, presentation)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("starting sync", "cache_backend", backendName(cacheCfg))

	// 3. Wire services
	client := strava.New(config.Credential.AccessToken, strava.Options{
		BaseURL:  config.BaseURL,
		LogLevel: config.LogLevel,
	})
	creds := NewCredentialManager(client, strava.NewTokenRefresher(config.TokenURL, nil), config.Saver, logger)
	activities := NewActivityCache(st)
	gear := NewGearResolver(client, st, logger)
	syncer := NewSyncer(creds, client, activities, gear, logger, SyncOptions{
		PageSize:        config.PageSize,
		GearConcurrency: config.GearConcurrency,
		OnPage:          presentation.ShowPage,
		OnGearStart:     presentation.StartGear,
		OnGear:          presentation.ShowGearResult,
	})

	// 4. Run the cycle
	presentation.ShowProgress("Checking access token...")
	result, err := syncer.Run(ctx, config.Credential)
	if err != nil {
		showSyncError(presentation, err)
		return err
	}

	// 5. Show results
	shown := result.Summaries
	if !config.ShowAll {
		shown = ActiveShoes(shown)
	}
	shown = append([]GearSummary(nil), shown...)
	SortByDistance(shown)

	presentation.ShowFinalResults(result)
	if err := presentation.ShowSummary(shown); err != nil {
		return err
	}
	if err := presentation.ShowJSONResults(result, shown); err != nil {
		return err
	}

	// 6. Optional exports
	if config.SaveJSON {
		if err := SaveJSON(config.OutputPath, shown); err != nil {
			presentation.ShowError(err, "Failed to save %s", config.OutputPath)
			return err
		}
		presentation.ShowStatus("Data saved to %s", config.OutputPath)
	}
	if config.MetricsTextfile != "" {
		if err := WriteMetricsTextfile(config.MetricsTextfile); err != nil {
			presentation.ShowError(err, "Failed to write metrics to %s", config.MetricsTextfile)
			return err
		}
		logger.Debug("metrics written", "path", config.MetricsTextfile)
	}
	return nil
}

// Stats reports what the cache currently holds
func Stats(ctx context.Context, cfg CacheConfig, jsonMode bool, logLevel string) (*CacheStats, error) {
	ol, logger, presentation, err := setupDependencies(jsonMode, logLevel, "stats")
	if err != nil {
		return nil, err
	}
	defer ol.Close()

	st, err := openCache(ctx, cfg, presentation)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	stats, err := collectStats(ctx, st, backendName(cfg))
	if err != nil {
		presentation.ShowError(err, "Failed to read cache statistics")
		return nil, err
	}
	logger.Info("cache statistics",
		"activities", stats.ActivityCount,
		"gear", stats.GearCount,
		"latest_update", stats.LatestUpdate)
	return stats, presentation.ShowStats(stats)
}

// ClearCache empties the cache after confirmation. It returns false when the
// user declined.
func ClearCache(ctx context.Context, cfg CacheConfig, assumeYes, jsonMode bool, logLevel string) (bool, error) {
	ol, logger, presentation, err := setupDependencies(jsonMode, logLevel, "clear-cache")
	if err != nil {
		return false, err
	}
	defer ol.Close()

	if !assumeYes {
		ok, err := ol.Confirm("Are you sure you want to clear all cached data?")
		if err != nil {
			return false, err
		}
		if !ok {
			presentation.ShowWarning("Cache clear cancelled.")
			return false, nil
		}
	}

	st, err := openCache(ctx, cfg, presentation)
	if err != nil {
		return false, err
	}
	defer st.Close()

	if err := st.FlushAll(ctx); err != nil {
		err = cacheErr(err)
		presentation.ShowError(err, "Failed to clear cache")
		return false, err
	}
	logger.Info("cache cleared", "cache_backend", backendName(cfg))
	presentation.ShowStatus("Cache cleared")
	return true, nil
}

func collectStats(ctx context.Context, st store.Store, backend string) (*CacheStats, error) {
	activities := NewActivityCache(st)
	count, err := activities.Count(ctx)
	if err != nil {
		return nil, err
	}
	gearCount, err := NewGearResolver(nil, st, nil).Count(ctx)
	if err != nil {
		return nil, err
	}
	stats := &CacheStats{Backend: backend, ActivityCount: count, GearCount: gearCount}
	if latest, ok, err := activities.LatestUpdateTime(ctx); err != nil {
		return nil, err
	} else if ok {
		stats.LatestUpdate = latest
	}
	return stats, nil
}

// setupDependencies creates the output logger and presentation service
func setupDependencies(jsonMode bool, logLevel, component string) (*output.OutputLogger, output.Logger, *PresentationService, error) {
	ol, err := output.New(output.Config{JSONMode: jsonMode, LogLevel: logLevel})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create output system: %w", err)
	}
	return ol, ol.Component(component), NewPresentationService(ol), nil
}

func openCache(ctx context.Context, cfg CacheConfig, presentation *PresentationService) (store.Store, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		err = cacheErr(err)
		presentation.ShowError(err, "Could not open %s cache (use --no-cache to run without one)", backendName(cfg))
		return nil, err
	}
	return st, nil
}

func backendName(cfg CacheConfig) string {
	if cfg.Backend == "" {
		return BackendRedis
	}
	return cfg.Backend
}

func showSyncError(presentation *PresentationService, err error) {
	switch {
	case errors.Is(err, ErrCredentialInvalid):
		presentation.ShowError(err, "Strava credential is invalid; re-authorize and update access_token/refresh_token")
	case errors.Is(err, ErrUnauthorized):
		presentation.ShowError(err, "Strava rejected the access token during sync")
	case errors.Is(err, ErrCacheUnavailable):
		presentation.ShowError(err, "Cache store failed during sync")
	case errors.Is(err, ErrRemoteUnavailable):
		presentation.ShowError(err, "Strava API is unavailable")
	default:
		presentation.ShowError(err, "Sync failed")
	}
}
