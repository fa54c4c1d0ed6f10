// Package service ties strategies, data sources and the backtest engine together.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kairos/backtest"
	"kairos/fetcher"
	"kairos/model"
	"kairos/store"
)

// Defaults fill request fields left at zero.
type Defaults struct {
	DataSource     string
	Days           int
	InitialCapital float64
	FeeRate        float64
}

// Request one backtest run. Either StrategyID names a saved strategy, or Strategy and
// StockCode describe an ad-hoc run that is stored without touching any history.
type Request struct {
	StrategyID     string             `json:"strategy_id"`
	Strategy       *backtest.Strategy `json:"strategy,omitempty"`
	StockCode      string             `json:"stock_code,omitempty"`
	Days           int                `json:"days"`
	InitialCapital float64            `json:"initial_capital"`
	FeeRate        *float64           `json:"fee_rate,omitempty"`
	DataSource     string             `json:"data_source"`
	IncludeSignals bool               `json:"include_signals"`
}

type BacktestService struct {
	strategies store.StrategyRepository
	results    store.ResultRepository
	sources    fetcher.Registry
	defaults   Defaults
	metrics    *Metrics
	locks      *StrategyLocks
	log        zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewBacktestService(
	strategies store.StrategyRepository,
	results store.ResultRepository,
	sources fetcher.Registry,
	defaults Defaults,
	locks *StrategyLocks,
	metrics *Metrics,
	log zerolog.Logger,
) *BacktestService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if locks == nil {
		locks = NewStrategyLocks()
	}
	return &BacktestService{
		strategies: strategies,
		results:    results,
		sources:    sources,
		defaults:   defaults,
		metrics:    metrics,
		locks:      locks,
		log:        log.With().Str("component", "backtest").Logger(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Sources lists the registered data source names.
func (s *BacktestService) Sources() []string {
	return s.sources.Names()
}

func (s *BacktestService) DefaultSource() string {
	return s.defaults.DataSource
}

func (s *BacktestService) params(req Request) backtest.RunParams {
	p := backtest.RunParams{
		InitialCapital: req.InitialCapital,
		FeeRate:        s.defaults.FeeRate,
		Days:           req.Days,
	}
	if p.Days <= 0 {
		p.Days = s.defaults.Days
	}
	if p.InitialCapital == 0 {
		p.InitialCapital = s.defaults.InitialCapital
	}
	if req.FeeRate != nil {
		p.FeeRate = *req.FeeRate
	}
	return p
}

// Run fetches bars from the requested source, runs the engine and persists the result.
func (s *BacktestService) Run(ctx context.Context, req Request) (*model.BacktestResult, error) {
	start := time.Now()

	var rec *model.StrategyRecord
	strategy, code, name := backtest.Strategy{}, strings.TrimSpace(req.StockCode), ""
	switch {
	case req.StrategyID != "":
		r, err := s.strategies.Get(ctx, req.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", req.StrategyID, err)
		}
		rec, strategy, code, name = r, r.Strategy, r.StockCode, r.StockName
	case req.Strategy != nil && code != "":
		strategy = *req.Strategy
		name, _ = fetcher.LookupName(code)
	default:
		return nil, fmt.Errorf("%w: strategy_id or strategy with stock_code is required", backtest.ErrConfiguration)
	}
	if err := fetcher.ValidateCode(code); err != nil {
		return nil, err
	}

	params := s.params(req)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	sourceName := req.DataSource
	if strings.TrimSpace(sourceName) == "" {
		sourceName = s.defaults.DataSource
	}
	src, err := s.sources.Select(sourceName)
	if err != nil {
		return nil, err
	}

	typ := string(strategy.Type)
	if t, ok := strategy.Type.Canonical(); ok {
		typ = string(t)
	}
	log := s.log.With().Str("code", code).Str("source", src.Name()).Str("strategy", typ).Logger()

	bars, err := src.Bars(ctx, code, params.Days)
	if err != nil {
		s.metrics.Runs.WithLabelValues(typ, "fetch_error").Inc()
		log.Warn().Err(err).Msg("fetch bars failed")
		return nil, err
	}
	s.metrics.Bars.WithLabelValues(src.Name()).Add(float64(len(bars)))

	res, err := backtest.Run(bars, strategy, params)
	if err != nil {
		s.metrics.Runs.WithLabelValues(typ, outcome(err)).Inc()
		log.Warn().Err(err).Int("bars", len(bars)).Msg("backtest rejected")
		return nil, err
	}

	out := &model.BacktestResult{
		ID:              s.newID(),
		Strategy:        strategy,
		StockCode:       code,
		StockName:       name,
		DataSource:      src.Name(),
		Params:          params,
		Trades:          res.Trades,
		PortfolioValues: res.EquityCurve,
		Metrics:         res.Metrics,
		CreatedAt:       s.now(),
	}
	if req.IncludeSignals {
		out.Signals = res.Signals
	}
	if rec != nil {
		out.StrategyID = rec.ID
	}
	if err := s.results.Save(ctx, out); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	if rec != nil {
		if err := s.appendHistory(ctx, rec.ID, out.Summary()); err != nil {
			return nil, err
		}
	}

	s.metrics.Runs.WithLabelValues(typ, "ok").Inc()
	s.metrics.Duration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	s.metrics.Trades.Add(float64(len(res.Trades)))

	log.Info().
		Str("id", out.ID).
		Int("bars", len(bars)).
		Int("trades", len(res.Trades)).
		Float64("total_return", res.Metrics.TotalReturnPct).
		Float64("max_drawdown", res.Metrics.MaxDrawdownPct).
		Dur("took", time.Since(start)).
		Msg("backtest finished")
	return out, nil
}

func (s *BacktestService) appendHistory(ctx context.Context, id string, sum model.BacktestSummary) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	rec, err := s.strategies.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", id, err)
	}
	rec.AppendHistory(sum)
	rec.UpdatedAt = sum.Date
	if err := s.strategies.Save(ctx, rec); err != nil {
		return fmt.Errorf("save strategy history: %w", err)
	}
	return nil
}

// Bars fetches daily bars the way a run would, from the named or default source.
func (s *BacktestService) Bars(ctx context.Context, code string, days int, source string) (string, []backtest.Bar, error) {
	code = strings.TrimSpace(code)
	if err := fetcher.ValidateCode(code); err != nil {
		return "", nil, err
	}
	if days <= 0 {
		days = s.defaults.Days
	}
	if strings.TrimSpace(source) == "" {
		source = s.defaults.DataSource
	}
	src, err := s.sources.Select(source)
	if err != nil {
		return "", nil, err
	}
	bars, err := src.Bars(ctx, code, days)
	if err != nil {
		return src.Name(), nil, err
	}
	s.metrics.Bars.WithLabelValues(src.Name()).Add(float64(len(bars)))
	return src.Name(), bars, nil
}

func (s *BacktestService) Get(ctx context.Context, id string) (*model.BacktestResult, error) {
	return s.results.Get(ctx, id)
}

// ListByStrategy returns the stored results of a strategy, oldest first.
func (s *BacktestService) ListByStrategy(ctx context.Context, strategyID string) ([]*model.BacktestResult, error) {
	if _, err := s.strategies.Get(ctx, strategyID); err != nil {
		return nil, err
	}
	return s.results.ListByStrategy(ctx, strategyID)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, backtest.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, backtest.ErrInvalidBars):
		return "invalid_bars"
	case errors.Is(err, backtest.ErrUnsupportedStrategy):
		return "unsupported_strategy"
	case errors.Is(err, backtest.ErrInvalidParameters), errors.Is(err, backtest.ErrConfiguration):
		return "invalid_request"
	default:
		return "error"
	}
}
