package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/backtest"
)

func TestAppendHistoryTrims(t *testing.T) {
	var r StrategyRecord
	for i := 0; i < MaxHistory+5; i++ {
		r.AppendHistory(BacktestSummary{ResultID: string(rune('a' + i%26)), TotalTrades: i})
	}
	require.Len(t, r.BacktestHistory, MaxHistory)
	assert.Equal(t, 5, r.BacktestHistory[0].TotalTrades)
	assert.Equal(t, MaxHistory+4, r.BacktestHistory[MaxHistory-1].TotalTrades)
}

func TestResultSummaryAndJSON(t *testing.T) {
	at := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)
	r := BacktestResult{
		ID:         "r1",
		StrategyID: "s1",
		DataSource: "synthetic",
		Params:     backtest.RunParams{InitialCapital: 1e7, FeeRate: 0.00015, Days: 90},
		Trades:     []backtest.Trade{},
		Metrics:    backtest.Metrics{TotalReturnPct: 3.5, MaxDrawdownPct: 1.2, WinRatePct: 50, TotalTrades: 2},
		CreatedAt:  at,
	}
	s := r.Summary()
	assert.Equal(t, "r1", s.ResultID)
	assert.Equal(t, at, s.Date)
	assert.InDelta(t, 3.5, s.TotalReturn, 0)
	assert.Equal(t, 2, s.TotalTrades)
	assert.InDelta(t, 1e7, s.InitialCapital, 0)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "portfolio_values")
	assert.Contains(t, m, "date")
	assert.NotContains(t, m, "signals")
}
