package backtest

import (
	"fmt"
	"math"
	"time"
)

type Bar struct {
	Time   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// ValidateBars checks the ordering and price invariants every input series must satisfy.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
				return fmt.Errorf("%w: bar %d (%s) has invalid price %v", ErrInvalidBars, i, b.Time.Format("2006-01-02"), p)
			}
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d has negative volume", ErrInvalidBars, i)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: bar %d (%s) is not after %s", ErrInvalidBars, i,
				b.Time.Format("2006-01-02"), bars[i-1].Time.Format("2006-01-02"))
		}
	}
	return nil
}

// Position is the per-bar signal: 0 hold, 1 enter long, -1 exit.
type Position int

const (
	Hold  Position = 0
	Enter Position = 1
	Exit  Position = -1
)

func (p Position) String() string {
	switch p {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

type SignalBar struct {
	Bar
	Position   Position           `json:"position"`
	Reason     string             `json:"reason,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

type TradeSide string

const (
	SideBuy               TradeSide = "buy"
	SideSell              TradeSide = "sell"
	SideForcedLiquidation TradeSide = "forced_liquidation"
)

// Closing reports whether the trade closes a position.
func (s TradeSide) Closing() bool {
	return s == SideSell || s == SideForcedLiquidation
}

type Trade struct {
	Date      time.Time `json:"date"`
	Side      TradeSide `json:"type"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Amount    float64   `json:"amount"`
	Fee       float64   `json:"fee"`
	ProfitPct *float64  `json:"profit_pct,omitempty"`
	Reason    string    `json:"reason"`
}

type EquityPoint struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"holdings"`
	TotalValue    float64   `json:"total_value"`
}

type Metrics struct {
	TotalReturnPct      float64 `json:"total_return"`
	AnnualizedReturnPct float64 `json:"annualized_return"`
	VolatilityPct       float64 `json:"volatility"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdownPct      float64 `json:"max_drawdown"`
	WinRatePct          float64 `json:"win_rate"`
	WinCount            int     `json:"win_count"`
	LossCount           int     `json:"loss_count"`
	TotalTrades         int     `json:"total_trades"`
}

// RunParams are the per-run knobs that sit outside the strategy descriptor.
type RunParams struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	FeeRate        float64 `json:"fee_rate" yaml:"fee_rate"`
	Days           int     `json:"days" yaml:"days"`
}

func (p RunParams) Validate() error {
	if math.IsNaN(p.InitialCapital) || math.IsInf(p.InitialCapital, 0) || p.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidParameters, p.InitialCapital)
	}
	if math.IsNaN(p.FeeRate) || p.FeeRate < 0 || p.FeeRate >= 1 {
		return fmt.Errorf("%w: fee rate must be in [0, 1), got %v", ErrInvalidParameters, p.FeeRate)
	}
	return nil
}

type Result struct {
	Signals     []SignalBar   `json:"signals"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"portfolio_values"`
	Metrics     Metrics       `json:"metrics"`
}
