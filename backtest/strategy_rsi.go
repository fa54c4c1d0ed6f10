package backtest

import (
	"fmt"
	"strings"
)

type RSIMode string

const (
	RSIEnterOnly RSIMode = "enter_only"
	RSIExitOnly  RSIMode = "exit_only"
	RSIBoth      RSIMode = "both"
)

var rsiModeAliases = map[string]RSIMode{
	"":           RSIBoth,
	"both":       RSIBoth,
	"양방향":        RSIBoth,
	"enter_only": RSIEnterOnly,
	"buy_only":   RSIEnterOnly,
	"과매도 매수만":    RSIEnterOnly,
	"exit_only":  RSIExitOnly,
	"sell_only":  RSIExitOnly,
	"과매입 매도만":    RSIExitOnly,
}

type RSIParams struct {
	Period     int     `yaml:"period" json:"period"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
	SignalType string  `yaml:"signal_type" json:"signal_type"`
}

func (p RSIParams) withDefaults() RSIParams {
	if p.Period == 0 {
		p.Period = 14
	}
	if p.Oversold == 0 {
		p.Oversold = 30
	}
	if p.Overbought == 0 {
		p.Overbought = 70
	}
	return p
}

type rsiThreshold struct {
	p    RSIParams
	mode RSIMode
}

func newRSIThreshold(params map[string]any) (signalGenerator, error) {
	var p RSIParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	if p.Period <= 0 {
		return nil, fmt.Errorf("%w: rsi period must be positive, got %d", ErrConfiguration, p.Period)
	}
	if !(p.Oversold > 0 && p.Oversold < p.Overbought && p.Overbought < 100) {
		return nil, fmt.Errorf("%w: rsi thresholds need 0 < oversold < overbought < 100 (oversold=%v overbought=%v)",
			ErrConfiguration, p.Oversold, p.Overbought)
	}
	mode, ok := rsiModeAliases[strings.ToLower(strings.TrimSpace(p.SignalType))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rsi signal_type %q", ErrConfiguration, p.SignalType)
	}
	return &rsiThreshold{p: p, mode: mode}, nil
}

func (s *rsiThreshold) lookback() int { return s.p.Period + 1 }

func (s *rsiThreshold) generate(bars []Bar) []SignalBar {
	rsi := RSI(closes(bars), s.p.Period)
	enter := s.mode != RSIExitOnly
	exit := s.mode != RSIEnterOnly

	start := s.p.Period
	out := make([]SignalBar, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		sb := SignalBar{
			Bar:        bars[i],
			Position:   Hold,
			Indicators: map[string]float64{"rsi": rsi[i]},
		}
		if i > start {
			prev, cur := rsi[i-1], rsi[i]
			switch {
			case enter && prev < s.p.Oversold && cur >= s.p.Oversold:
				sb.Position = Enter
				sb.Reason = "rsi_oversold_exit"
			case exit && prev > s.p.Overbought && cur <= s.p.Overbought:
				sb.Position = Exit
				sb.Reason = "rsi_overbought_exit"
			}
		}
		out = append(out, sb)
	}
	return out
}
