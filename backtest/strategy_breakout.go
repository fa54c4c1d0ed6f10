package backtest

import (
	"fmt"
	"strings"
)

type BreakoutDirection string

const (
	BreakoutNewHigh BreakoutDirection = "new_high"
	BreakoutNewLow  BreakoutDirection = "new_low"
)

var breakoutAliases = map[string]BreakoutDirection{
	"":         BreakoutNewHigh,
	"new_high": BreakoutNewHigh,
	"high":     BreakoutNewHigh,
	"신고가":      BreakoutNewHigh,
	"new_low":  BreakoutNewLow,
	"low":      BreakoutNewLow,
	"신저가":      BreakoutNewLow,
}

type BreakoutParams struct {
	LookbackPeriod int    `yaml:"lookback_period" json:"lookback_period"`
	BreakoutType   string `yaml:"breakout_type" json:"breakout_type"`
}

func (p BreakoutParams) withDefaults() BreakoutParams {
	if p.LookbackPeriod == 0 {
		p.LookbackPeriod = 20
	}
	return p
}

type priceBreakout struct {
	p   BreakoutParams
	dir BreakoutDirection
}

func newPriceBreakout(params map[string]any) (signalGenerator, error) {
	var p BreakoutParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	if p.LookbackPeriod <= 0 {
		return nil, fmt.Errorf("%w: lookback_period must be positive, got %d", ErrConfiguration, p.LookbackPeriod)
	}
	dir, ok := breakoutAliases[strings.ToLower(strings.TrimSpace(p.BreakoutType))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown breakout_type %q", ErrConfiguration, p.BreakoutType)
	}
	return &priceBreakout{p: p, dir: dir}, nil
}

func (s *priceBreakout) lookback() int { return s.p.LookbackPeriod + 1 }

func (s *priceBreakout) generate(bars []Bar) []SignalBar {
	n := s.p.LookbackPeriod
	maxPrior := PriorMax(highs(bars), n)
	minPrior := PriorMin(lows(bars), n)

	out := make([]SignalBar, 0, len(bars)-n)
	for i := n; i < len(bars); i++ {
		b := bars[i]
		sb := SignalBar{
			Bar:      b,
			Position: Hold,
			Indicators: map[string]float64{
				"max_lookback": maxPrior[i],
				"min_lookback": minPrior[i],
			},
		}
		upside := b.High > maxPrior[i]
		downside := b.Low < minPrior[i]

		switch {
		case upside && downside:
			// Outside bar through both extremes: no directional read.
		case upside && s.dir == BreakoutNewHigh:
			sb.Position, sb.Reason = Enter, "new_high_breakout"
		case downside && s.dir == BreakoutNewHigh:
			sb.Position, sb.Reason = Exit, "new_low_breakdown"
		case downside && s.dir == BreakoutNewLow:
			sb.Position, sb.Reason = Enter, "new_low_reversal"
		case upside && s.dir == BreakoutNewLow:
			sb.Position, sb.Reason = Exit, "new_high_reversal"
		}
		out = append(out, sb)
	}
	return out
}
