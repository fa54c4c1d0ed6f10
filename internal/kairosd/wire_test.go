package kairosd

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/cache"
	"kairos/config"
	"kairos/fetcher"
	"kairos/model"
	"kairos/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig
	cfg.StoreDir = t.TempDir()
	cfg.CSVDir = t.TempDir()
	cfg.CacheDir = ""
	cfg.RedisAddr = ""
	cfg.KISAppKey, cfg.KISAppSecret, cfg.KISAccessToken = "", "", ""
	return &cfg
}

func TestBuildFileStore(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"csv", "synthetic"}, app.Sources.Names())
	assert.IsType(t, &cache.Memory{}, app.Cache)
	assert.IsType(t, &store.FileStrategies{}, app.Strategies)

	ctx := context.Background()
	require.NoError(t, app.Strategies.Save(ctx, &model.StrategyRecord{ID: "s1", Name: "x"}))
	reopened, err := Build(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Strategies.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)
}

func TestBuildRegistersRealWithCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheDir = t.TempDir()
	cfg.KISAppKey, cfg.KISAppSecret, cfg.KISAccessToken = "k", "s", "t"
	cfg.DataSource = fetcher.SourceReal

	app, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"csv", "real", "synthetic"}, app.Sources.Names())
	assert.IsType(t, &fetcher.CachedSource{}, app.Sources[fetcher.SourceReal])
	assert.IsType(t, &cache.File{}, app.Cache)
}

func TestBuildRealWithoutCredentialsFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataSource = "real"
	_, err := Build(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "requires kis")
}

func TestBuildUnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"
	app, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()
	assert.IsType(t, &cache.Memory{}, app.Cache)
}

func TestBuildPostgresNeedsDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "postgres"
	cfg.StoreDSN = ""
	_, err := Build(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "DSN")
}

func TestBuildMemoryStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "memory"
	cfg.StoreDir = ""
	app, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &store.MemoryStrategies{}, app.Strategies)
	assert.IsType(t, &store.MemoryResults{}, app.Results)
}
