package backtest

import (
	"fmt"
	"math"
)

type MACrossParams struct {
	FastPeriod   int `yaml:"fast_period" json:"fast_period"`
	SlowPeriod   int `yaml:"slow_period" json:"slow_period"`
	SignalPeriod int `yaml:"signal_period" json:"signal_period"`
}

func (p MACrossParams) withDefaults() MACrossParams {
	if p.FastPeriod == 0 {
		p.FastPeriod = 5
	}
	if p.SlowPeriod == 0 {
		p.SlowPeriod = 20
	}
	if p.SignalPeriod < 0 {
		p.SignalPeriod = 0
	}
	return p
}

type maCross struct {
	p MACrossParams
}

func newMACross(params map[string]any) (signalGenerator, error) {
	p := MACrossParams{SignalPeriod: 9}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	if p.FastPeriod <= 0 || p.SlowPeriod <= 0 {
		return nil, fmt.Errorf("%w: ma_cross periods must be positive (fast=%d slow=%d)", ErrConfiguration, p.FastPeriod, p.SlowPeriod)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return nil, fmt.Errorf("%w: ma_cross fast_period %d must be below slow_period %d", ErrConfiguration, p.FastPeriod, p.SlowPeriod)
	}
	return &maCross{p: p}, nil
}

func (s *maCross) lookback() int { return s.p.SlowPeriod }

func (s *maCross) generate(bars []Bar) []SignalBar {
	c := closes(bars)
	fast := SMA(c, s.p.FastPeriod)
	slow := SMA(c, s.p.SlowPeriod)

	var macd, macdSignal []float64
	if s.p.SignalPeriod > 0 {
		macd = make([]float64, len(c))
		for i := range c {
			macd[i] = fast[i] - slow[i]
		}
		macdSignal = SMASkipNaN(macd, s.p.SignalPeriod)
	}

	start := s.p.SlowPeriod - 1
	out := make([]SignalBar, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		sb := SignalBar{
			Bar:      bars[i],
			Position: Hold,
			Indicators: map[string]float64{
				"fast_ma": fast[i],
				"slow_ma": slow[i],
			},
		}
		if macd != nil {
			sb.Indicators["macd"] = macd[i]
			if !math.IsNaN(macdSignal[i]) {
				sb.Indicators["macd_signal"] = macdSignal[i]
				sb.Indicators["macd_hist"] = macd[i] - macdSignal[i]
			}
		}

		if i > start {
			above := fast[i] > slow[i]
			wasAbove := fast[i-1] > slow[i-1]
			switch {
			case above && !wasAbove:
				sb.Position = Enter
				sb.Reason = "golden_cross"
			case !above && wasAbove:
				sb.Position = Exit
				sb.Reason = "dead_cross"
			}
		}
		out = append(out, sb)
	}
	return out
}
