package backtest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type YAMLConfig struct {
	Backtest struct {
		StockCode      string   `yaml:"stock_code"`
		StockName      string   `yaml:"stock_name"`
		Days           int      `yaml:"days"`
		InitialCapital float64  `yaml:"initial_capital"`
		FeeRate        *float64 `yaml:"fee_rate"`
		DataSource     string   `yaml:"data_source"`
		CSV            string   `yaml:"csv"`
	} `yaml:"backtest"`

	Strategy Strategy `yaml:"strategy"`
}

// RunConfig is a fully resolved one-shot backtest job.
type RunConfig struct {
	StockCode  string
	StockName  string
	DataSource string
	CSVPath    string
	Params     RunParams
	Strategy   Strategy
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		DataSource: "synthetic",
		Params: RunParams{
			InitialCapital: 10_000_000,
			FeeRate:        0.00015,
			Days:           90,
		},
		Strategy: Strategy{
			Type:             StrategyMACross,
			TakeProfitPct:    5,
			StopLossPct:      5,
			InvestmentAmount: 1_000_000,
		},
	}
}

func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseRunConfig(raw)
}

func ParseRunConfig(raw []byte) (RunConfig, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	cfg.StockCode = strings.TrimSpace(yc.Backtest.StockCode)
	cfg.StockName = strings.TrimSpace(yc.Backtest.StockName)
	if cfg.StockCode == "" {
		return RunConfig{}, fmt.Errorf("%w: backtest.stock_code is required", ErrConfiguration)
	}
	if yc.Backtest.Days > 0 {
		cfg.Params.Days = yc.Backtest.Days
	}
	if yc.Backtest.InitialCapital != 0 {
		cfg.Params.InitialCapital = yc.Backtest.InitialCapital
	}
	if yc.Backtest.FeeRate != nil {
		cfg.Params.FeeRate = *yc.Backtest.FeeRate
	}
	if ds := strings.TrimSpace(yc.Backtest.DataSource); ds != "" {
		cfg.DataSource = ds
	}
	cfg.CSVPath = strings.TrimSpace(yc.Backtest.CSV)
	if cfg.CSVPath != "" && yc.Backtest.DataSource == "" {
		cfg.DataSource = "csv"
	}

	s := yc.Strategy
	if s.Type == "" {
		s.Type = cfg.Strategy.Type
	}
	if s.TakeProfitPct == 0 {
		s.TakeProfitPct = cfg.Strategy.TakeProfitPct
	}
	if s.StopLossPct == 0 {
		s.StopLossPct = cfg.Strategy.StopLossPct
	}
	if s.InvestmentAmount == 0 {
		s.InvestmentAmount = cfg.Params.InitialCapital
	}
	cfg.Strategy = s

	if err := cfg.Params.Validate(); err != nil {
		return RunConfig{}, err
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("strategy: %w", err)
	}
	return cfg, nil
}
