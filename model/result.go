package model

import (
	"time"

	"kairos/backtest"
)

// BacktestResult a persisted run
type BacktestResult struct {
	ID              string                 `json:"id"`
	StrategyID      string                 `json:"strategy_id"`
	Strategy        backtest.Strategy      `json:"strategy"` // snapshot at run time
	StockCode       string                 `json:"stock_code"`
	StockName       string                 `json:"stock_name,omitempty"`
	DataSource      string                 `json:"data_source"`
	Params          backtest.RunParams     `json:"params"`
	Trades          []backtest.Trade       `json:"trades"`
	PortfolioValues []backtest.EquityPoint `json:"portfolio_values"`
	Metrics         backtest.Metrics       `json:"metrics"`
	Signals         []backtest.SignalBar   `json:"signals,omitempty"`
	CreatedAt       time.Time              `json:"date"` // run timestamp
}

// Summary condenses the result for the strategy history.
func (r *BacktestResult) Summary() BacktestSummary {
	return BacktestSummary{
		ResultID:       r.ID,
		Date:           r.CreatedAt,
		TotalReturn:    r.Metrics.TotalReturnPct,
		MaxDrawdown:    r.Metrics.MaxDrawdownPct,
		WinRate:        r.Metrics.WinRatePct,
		TotalTrades:    r.Metrics.TotalTrades,
		DataSource:     r.DataSource,
		InitialCapital: r.Params.InitialCapital,
	}
}
