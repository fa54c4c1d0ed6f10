package backtest

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

type StrategyType string

const (
	StrategyMACross       StrategyType = "ma_cross"
	StrategyRSI           StrategyType = "rsi"
	StrategyPriceBreakout StrategyType = "price_breakout"
)

// Labels used by strategies saved from the dashboard.
var strategyAliases = map[string]StrategyType{
	"ma_cross":       StrategyMACross,
	"ma-cross":       StrategyMACross,
	"이동평균 교차":        StrategyMACross,
	"rsi":            StrategyRSI,
	"rsi_threshold":  StrategyRSI,
	"RSI 과매수/과매도":    StrategyRSI,
	"price_breakout": StrategyPriceBreakout,
	"breakout":       StrategyPriceBreakout,
	"가격 돌파":          StrategyPriceBreakout,
}

// Canonical resolves aliases; ok is false for unknown types.
func (t StrategyType) Canonical() (StrategyType, bool) {
	raw := strings.TrimSpace(string(t))
	if c, ok := strategyAliases[raw]; ok {
		return c, true
	}
	c, ok := strategyAliases[strings.ToLower(raw)]
	return c, ok
}

// Strategy is the immutable descriptor of one run: which generator, its parameters,
// and the risk overlay thresholds in percent.
type Strategy struct {
	Type             StrategyType   `json:"type" yaml:"type"`
	Params           map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	TakeProfitPct    float64        `json:"take_profit" yaml:"take_profit"`
	StopLossPct      float64        `json:"stop_loss" yaml:"stop_loss"`
	InvestmentAmount float64        `json:"investment_amount" yaml:"investment_amount"`
}

func (s Strategy) Validate() error {
	if _, err := newGenerator(s); err != nil {
		return err
	}
	if !positive(s.TakeProfitPct) {
		return fmt.Errorf("%w: take_profit must be positive, got %v", ErrConfiguration, s.TakeProfitPct)
	}
	if !positive(s.StopLossPct) {
		return fmt.Errorf("%w: stop_loss must be a positive magnitude, got %v", ErrConfiguration, s.StopLossPct)
	}
	if !positive(s.InvestmentAmount) {
		return fmt.Errorf("%w: investment_amount must be positive, got %v", ErrConfiguration, s.InvestmentAmount)
	}
	return nil
}

// Lookback is the minimum number of bars the strategy needs before it can emit a signal.
func Lookback(s Strategy) (int, error) {
	g, err := newGenerator(s)
	if err != nil {
		return 0, err
	}
	return g.lookback(), nil
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

type signalGenerator interface {
	lookback() int
	generate(bars []Bar) []SignalBar
}

var generators = map[StrategyType]func(params map[string]any) (signalGenerator, error){
	StrategyMACross:       newMACross,
	StrategyRSI:           newRSIThreshold,
	StrategyPriceBreakout: newPriceBreakout,
}

func newGenerator(s Strategy) (signalGenerator, error) {
	t, ok := s.Type.Canonical()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, s.Type)
	}
	return generators[t](s.Params)
}

// decodeParams maps a loose key/value bag onto a typed params struct.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	b, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: encode params: %v", ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode params: %v", ErrConfiguration, err)
	}
	return nil
}

// Generate turns a bar series into the raw per-bar signal series for the strategy.
// Warm-up bars without a full indicator window are dropped.
func Generate(bars []Bar, s Strategy) ([]SignalBar, error) {
	g, err := newGenerator(s)
	if err != nil {
		return nil, err
	}
	if len(bars) < g.lookback() {
		return nil, fmt.Errorf("%w: %s needs %d bars, got %d", ErrInsufficientData, s.Type, g.lookback(), len(bars))
	}
	return g.generate(bars), nil
}
