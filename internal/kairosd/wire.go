package kairosd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kairos/cache"
	"kairos/config"
	"kairos/fetcher"
	"kairos/store"
)

const storeTimeout = 5 * time.Second

// App the wired dependencies of the daemon
type App struct {
	Config     *config.Config
	Cache      cache.Cache
	Sources    fetcher.Registry
	Strategies store.StrategyRepository
	Results    store.ResultRepository

	closers []func() error
}

// Build opens the cache, the data sources and the stores described by cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	a.Cache = a.buildCache(ctx, log)

	var err error
	if a.Sources, err = NewSources(cfg, a.Cache, log); err != nil {
		a.Close()
		return nil, err
	}
	if _, err := a.Sources.Select(cfg.DataSource); err != nil {
		a.Close()
		return nil, fmt.Errorf("default data source: %w", err)
	}
	if err := a.openStores(ctx, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// buildCache prefers Redis, then a cache directory, then process memory. A Redis that
// does not answer at startup is skipped.
func (a *App) buildCache(ctx context.Context, log zerolog.Logger) cache.Cache {
	cfg := a.Config
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr, 0)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := r.Ping(pctx)
		cancel()
		if err == nil {
			a.closers = append(a.closers, r.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("bar cache: redis")
			return r
		}
		_ = r.Close()
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, using local cache")
	}
	if cfg.CacheDir != "" {
		f, err := cache.NewFile(cfg.CacheDir)
		if err == nil {
			log.Info().Str("dir", cfg.CacheDir).Msg("bar cache: file")
			return f
		}
		log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache dir unusable, using memory")
	}
	log.Info().Msg("bar cache: memory")
	return cache.NewMemory()
}

// NewSources registers synthetic and csv always, and real when KIS credentials are set.
func NewSources(cfg *config.Config, c cache.Cache, log zerolog.Logger) (fetcher.Registry, error) {
	reg := fetcher.Registry{
		fetcher.SourceSynthetic: fetcher.NewSyntheticSource(nil),
		fetcher.SourceCSV:       fetcher.NewCSVSource(cfg.CSVDir),
	}
	if cfg.KISConfigured() {
		kis := fetcher.NewKISSource(fetcher.KISConfig{
			BaseURL:           cfg.KISBaseURL,
			AppKey:            cfg.KISAppKey,
			AppSecret:         cfg.KISAppSecret,
			AccessToken:       cfg.KISAccessToken,
			RequestsPerSecond: cfg.KISRequestsPerSecond,
		}, log)
		reg[fetcher.SourceReal] = fetcher.NewCachedSource(kis, c, cfg.CacheTTL, log)
	} else if strings.EqualFold(cfg.DataSource, fetcher.SourceReal) {
		return nil, errors.New("data.source real requires kis.app_key, kis.app_secret and kis.access_token")
	}
	return reg, nil
}

func (a *App) openStores(ctx context.Context, log zerolog.Logger) error {
	cfg := a.Config
	switch cfg.StoreDriver {
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
		a.Strategies = store.NewPostgresStrategies(db, storeTimeout)
		a.Results = store.NewPostgresResults(db, storeTimeout)
		log.Info().Msg("store: postgres")
	case "memory":
		// nothing survives a restart
		a.Strategies, a.Results = store.NewMemoryStrategies(), store.NewMemoryResults()
		log.Warn().Msg("store: memory")
	default:
		s, err := store.OpenFileStrategies(cfg.StoreDir)
		if err != nil {
			return err
		}
		r, err := store.OpenFileResults(cfg.StoreDir)
		if err != nil {
			return err
		}
		a.Strategies, a.Results = s, r
		log.Info().Str("dir", cfg.StoreDir).Msg("store: file")
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
