package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunConfig(t *testing.T) {
	raw := []byte(`
backtest:
  stock_code: "005930"
  stock_name: 삼성전자
  days: 180
  initial_capital: 5000000
  fee_rate: 0
  data_source: real
strategy:
  type: rsi
  params:
    period: 10
    oversold: 25
    overbought: 75
  take_profit: 8
  stop_loss: 4
`)
	cfg, err := ParseRunConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, "005930", cfg.StockCode)
	assert.Equal(t, "삼성전자", cfg.StockName)
	assert.Equal(t, "real", cfg.DataSource)
	assert.Equal(t, 180, cfg.Params.Days)
	assert.InDelta(t, 5_000_000.0, cfg.Params.InitialCapital, 0)
	assert.Zero(t, cfg.Params.FeeRate)

	assert.Equal(t, StrategyRSI, cfg.Strategy.Type)
	assert.InDelta(t, 8.0, cfg.Strategy.TakeProfitPct, 0)
	assert.InDelta(t, 4.0, cfg.Strategy.StopLossPct, 0)
	assert.InDelta(t, 5_000_000.0, cfg.Strategy.InvestmentAmount, 0)
	n, err := Lookback(cfg.Strategy)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}

func TestParseRunConfigDefaults(t *testing.T) {
	cfg, err := ParseRunConfig([]byte("backtest:\n  stock_code: \"000660\"\n  csv: ./bars.csv\n"))
	require.NoError(t, err)

	def := DefaultRunConfig()
	assert.Equal(t, "csv", cfg.DataSource)
	assert.Equal(t, "./bars.csv", cfg.CSVPath)
	assert.Equal(t, def.Params.Days, cfg.Params.Days)
	assert.InDelta(t, def.Params.FeeRate, cfg.Params.FeeRate, 0)
	assert.Equal(t, StrategyMACross, cfg.Strategy.Type)
}

func TestParseRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing stock code", "backtest:\n  days: 30\n"},
		{"negative capital", "backtest:\n  stock_code: A\n  initial_capital: -1\n"},
		{"fee rate out of range", "backtest:\n  stock_code: A\n  fee_rate: 1.5\n"},
		{"bad ma periods", "backtest:\n  stock_code: A\nstrategy:\n  type: ma_cross\n  params:\n    fast_period: 30\n    slow_period: 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunConfig([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := ParseRunConfig([]byte("strategy:\n  type: macd\nbacktest:\n  stock_code: A\n"))
	assert.ErrorIs(t, err, ErrUnsupportedStrategy)
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backtest:\n  stock_code: \"035420\"\n"), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "035420", cfg.StockCode)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
