package backtest

import (
	"encoding/json"
	"fmt"
	"io"
)

// Run executes one backtest: signal generation, the exit overlay, trade simulation and
// metrics. It is a pure function of its inputs and safe for concurrent use.
func Run(bars []Bar, s Strategy, params RunParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	raw, err := Generate(bars, s)
	if err != nil {
		return nil, err
	}
	signals := ApplyExits(raw, s.TakeProfitPct, s.StopLossPct)

	trades, curve, err := Simulate(signals, params.InitialCapital, params.FeeRate, s.InvestmentAmount)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	return &Result{
		Signals:     signals,
		Trades:      trades,
		EquityCurve: curve,
		Metrics:     ComputeMetrics(curve, trades),
	}, nil
}

// SignalCounts returns the number of Enter and Exit bars in a series.
func SignalCounts(signals []SignalBar) (enter, exit int) {
	for _, sb := range signals {
		switch sb.Position {
		case Enter:
			enter++
		case Exit:
			exit++
		}
	}
	return enter, exit
}

func WriteResultJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
