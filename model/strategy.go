package model

import (
	"time"

	"kairos/backtest"
)

// StrategyRecord a saved strategy together with its run history
type StrategyRecord struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	StockCode       string            `json:"stock_code"`             // KRX short code (005930)
	StockName       string            `json:"stock_name,omitempty"`   // display name
	Strategy        backtest.Strategy `json:"strategy"`               // type, params and exit thresholds
	IsActive        bool              `json:"is_active"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	BacktestHistory []BacktestSummary `json:"backtest_history,omitempty"` // newest last
}

// BacktestSummary the slice of a result kept on the strategy record
type BacktestSummary struct {
	ResultID       string    `json:"result_id"`
	Date           time.Time `json:"date"`
	TotalReturn    float64   `json:"total_return"` // percent
	MaxDrawdown    float64   `json:"max_drawdown"` // percent
	WinRate        float64   `json:"win_rate"`     // percent
	TotalTrades    int       `json:"total_trades"`
	DataSource     string    `json:"data_source"`
	InitialCapital float64   `json:"initial_capital"`
}

// MaxHistory caps BacktestHistory; older entries are dropped first.
const MaxHistory = 50

// AppendHistory adds s and trims the history to MaxHistory.
func (r *StrategyRecord) AppendHistory(s BacktestSummary) {
	r.BacktestHistory = append(r.BacktestHistory, s)
	if n := len(r.BacktestHistory); n > MaxHistory {
		r.BacktestHistory = append([]BacktestSummary(nil), r.BacktestHistory[n-MaxHistory:]...)
	}
}
