package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig service config file layout
type YAMLConfig struct {
	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: release, debug, test
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console, json, auto
	} `yaml:"log"`

	Data struct {
		Source        string `yaml:"source"` // real, synthetic, csv
		CSVDir        string `yaml:"csv_dir"`
		CacheDir      string `yaml:"cache_dir"`
		CacheTTLHours int    `yaml:"cache_ttl_hours"`
		RedisAddr     string `yaml:"redis_addr"`
		WarmupMinutes *int   `yaml:"warmup_minutes"` // 0 disables the cache warmer
	} `yaml:"data"`

	KIS struct {
		BaseURL           string  `yaml:"base_url"`
		AppKey            string  `yaml:"app_key"`
		AppSecret         string  `yaml:"app_secret"`
		AccessToken       string  `yaml:"access_token"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"kis"`

	Store struct {
		Driver string `yaml:"driver"` // file, postgres, memory
		Dir    string `yaml:"dir"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Backtest struct {
		Days           int      `yaml:"days"`
		InitialCapital float64  `yaml:"initial_capital"`
		FeeRate        *float64 `yaml:"fee_rate"`
	} `yaml:"backtest"`
}

// Config resolved service configuration
type Config struct {
	Port    int
	GinMode string

	LogLevel  string
	LogFormat string

	// DataSource is the default source; requests may name another registered one.
	DataSource string
	CSVDir     string
	CacheDir   string
	CacheTTL   time.Duration
	RedisAddr  string

	// WarmupInterval refetches bars for active strategies after the close; 0 disables it.
	WarmupInterval time.Duration

	KISBaseURL           string
	KISAppKey            string
	KISAppSecret         string
	KISAccessToken       string
	KISRequestsPerSecond float64

	StoreDriver string
	StoreDir    string
	StoreDSN    string

	// run defaults applied when a request leaves them out
	DefaultDays           int
	DefaultInitialCapital float64
	DefaultFeeRate        float64
}

// DefaultConfig defaults
var DefaultConfig = Config{
	Port:                  8090,
	GinMode:               "release",
	LogLevel:              "info",
	LogFormat:             "auto",
	DataSource:            "synthetic",
	CSVDir:                "data/csv",
	CacheTTL:              6 * time.Hour,
	WarmupInterval:        30 * time.Minute,
	KISBaseURL:            "https://openapi.koreainvestment.com:9443",
	KISRequestsPerSecond:  5,
	StoreDriver:           "file",
	StoreDir:              "data/store",
	DefaultDays:           90,
	DefaultInitialCapital: 10_000_000,
	DefaultFeeRate:        0.00015,
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var y YAMLConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig

	if y.Server.Port > 0 {
		cfg.Port = y.Server.Port
	}
	setString(&cfg.GinMode, y.Server.Mode)

	setString(&cfg.LogLevel, y.Log.Level)
	setString(&cfg.LogFormat, y.Log.Format)

	setString(&cfg.DataSource, y.Data.Source)
	setString(&cfg.CSVDir, y.Data.CSVDir)
	setString(&cfg.CacheDir, y.Data.CacheDir)
	if y.Data.CacheTTLHours > 0 {
		cfg.CacheTTL = time.Duration(y.Data.CacheTTLHours) * time.Hour
	}
	setString(&cfg.RedisAddr, y.Data.RedisAddr)
	if y.Data.WarmupMinutes != nil {
		cfg.WarmupInterval = time.Duration(*y.Data.WarmupMinutes) * time.Minute
	}

	setString(&cfg.KISBaseURL, y.KIS.BaseURL)
	setString(&cfg.KISAppKey, y.KIS.AppKey)
	setString(&cfg.KISAppSecret, y.KIS.AppSecret)
	setString(&cfg.KISAccessToken, y.KIS.AccessToken)
	if y.KIS.RequestsPerSecond > 0 {
		cfg.KISRequestsPerSecond = y.KIS.RequestsPerSecond
	}

	setString(&cfg.StoreDriver, y.Store.Driver)
	setString(&cfg.StoreDir, y.Store.Dir)
	setString(&cfg.StoreDSN, y.Store.DSN)

	if y.Backtest.Days > 0 {
		cfg.DefaultDays = y.Backtest.Days
	}
	if y.Backtest.InitialCapital > 0 {
		cfg.DefaultInitialCapital = y.Backtest.InitialCapital
	}
	if y.Backtest.FeeRate != nil {
		cfg.DefaultFeeRate = *y.Backtest.FeeRate
	}

	return &cfg, cfg.Validate()
}

// GetConfig resolves configuration (file over defaults, environment over file).
func GetConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig

	if configPath != "" {
		loaded, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("KAIROS_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	setString(&cfg.DataSource, getenv("KAIROS_DATA_SOURCE"))
	setString(&cfg.LogLevel, getenv("KAIROS_LOG_LEVEL"))
	setString(&cfg.KISBaseURL, getenv("KIS_BASE_URL"))
	setString(&cfg.KISAppKey, getenv("KIS_APP_KEY"))
	setString(&cfg.KISAppSecret, getenv("KIS_APP_SECRET"))
	setString(&cfg.KISAccessToken, getenv("KIS_ACCESS_TOKEN"))
	setString(&cfg.RedisAddr, getenv("REDIS_ADDR"))
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		cfg.StoreDSN = v
		cfg.StoreDriver = "postgres"
	}
}

// Validate rejects values the daemon cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DataSource) {
	case "real", "synthetic", "csv":
	default:
		return fmt.Errorf("data.source must be real, synthetic or csv, got %q", c.DataSource)
	}
	switch c.StoreDriver {
	case "file":
		if strings.TrimSpace(c.StoreDir) == "" {
			return fmt.Errorf("store.dir is required for the file driver")
		}
	case "postgres":
		if strings.TrimSpace(c.StoreDSN) == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be file, postgres or memory, got %q", c.StoreDriver)
	}
	if c.WarmupInterval < 0 {
		return fmt.Errorf("data.warmup_minutes must not be negative")
	}
	if c.DefaultFeeRate < 0 || c.DefaultFeeRate >= 1 {
		return fmt.Errorf("backtest.fee_rate must be in [0, 1), got %v", c.DefaultFeeRate)
	}
	return nil
}

// KISConfigured reports whether real market data can be fetched.
func (c *Config) KISConfigured() bool {
	return c.KISAppKey != "" && c.KISAppSecret != "" && c.KISAccessToken != ""
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
