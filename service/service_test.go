package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/backtest"
	"kairos/fetcher"
	"kairos/model"
	"kairos/store"
)

var fixedNow = time.Date(2024, 3, 8, 16, 0, 0, 0, time.UTC)

type failingSource struct{}

func (failingSource) Name() string { return "real" }

func (failingSource) Bars(_ context.Context, code string, _ int) ([]backtest.Bar, error) {
	return nil, &fetcher.FetchError{Source: "real", Code: code, Err: errors.New("503")}
}

type shortSource struct{}

func (shortSource) Name() string { return "csv" }

func (shortSource) Bars(context.Context, string, int) ([]backtest.Bar, error) {
	bars := make([]backtest.Bar, 5)
	for i := range bars {
		bars[i] = backtest.Bar{Time: fixedNow.AddDate(0, 0, i), Open: 1, High: 1, Low: 1, Close: 1}
	}
	return bars, nil
}

type fixture struct {
	strategies *StrategyService
	backtests  *BacktestService
	reg        *prometheus.Registry
	metrics    *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, store.NewMemoryStrategies(), store.NewMemoryResults())
}

func newFixtureWith(t *testing.T, sr store.StrategyRepository, rr store.ResultRepository) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	sources := fetcher.Registry{
		fetcher.SourceSynthetic: fetcher.NewSyntheticSource(func() time.Time { return fixedNow }),
		fetcher.SourceReal:      failingSource{},
		fetcher.SourceCSV:       shortSource{},
	}
	defaults := Defaults{DataSource: fetcher.SourceSynthetic, Days: 120, InitialCapital: 10_000_000, FeeRate: 0.00015}

	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("id-%03d", seq) }
	clock := func() time.Time { return fixedNow }

	locks := NewStrategyLocks()
	ss := NewStrategyService(sr, locks, zerolog.Nop())
	ss.now, ss.newID = clock, ids
	bs := NewBacktestService(sr, rr, sources, defaults, locks, m, zerolog.Nop())
	bs.now, bs.newID = clock, ids
	return &fixture{strategies: ss, backtests: bs, reg: reg, metrics: m}
}

func maInput() StrategyInput {
	return StrategyInput{
		Name:      "삼성 골든크로스",
		StockCode: "005930",
		Strategy: backtest.Strategy{
			Type:             "MA_CROSS",
			Params:           map[string]any{"fast_period": 5, "slow_period": 20},
			TakeProfitPct:    10,
			StopLossPct:      5,
			InvestmentAmount: 5_000_000,
		},
	}
}

func TestStrategyCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)
	assert.Equal(t, "id-001", rec.ID)
	assert.Equal(t, "삼성전자", rec.StockName)
	assert.Equal(t, backtest.StrategyMACross, rec.Strategy.Type)
	assert.True(t, rec.IsActive)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))

	got, err := f.strategies.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)

	inactive := false
	in := maInput()
	in.Name = "renamed"
	in.IsActive = &inactive
	upd, err := f.strategies.Update(ctx, rec.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "renamed", upd.Name)
	assert.False(t, upd.IsActive)
	assert.True(t, upd.CreatedAt.Equal(rec.CreatedAt))

	_, err = f.strategies.Create(ctx, maInput())
	require.NoError(t, err)
	all, err := f.strategies.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err := f.strategies.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, f.strategies.Delete(ctx, rec.ID))
	_, err = f.strategies.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, f.strategies.Delete(ctx, rec.ID), store.ErrNotFound)
	_, err = f.strategies.Update(ctx, rec.ID, maInput())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStrategyCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(*StrategyInput)
		want   error
	}{
		{"missing name", func(in *StrategyInput) { in.Name = " " }, backtest.ErrConfiguration},
		{"missing code", func(in *StrategyInput) { in.StockCode = "" }, backtest.ErrConfiguration},
		{"non-numeric code", func(in *StrategyInput) { in.StockCode = "ZZ" }, backtest.ErrConfiguration},
		{"seven digit code", func(in *StrategyInput) { in.StockCode = "0059300" }, backtest.ErrConfiguration},
		{"bad stop loss", func(in *StrategyInput) { in.Strategy.StopLossPct = 0 }, backtest.ErrConfiguration},
		{"unknown type", func(in *StrategyInput) { in.Strategy.Type = "macd" }, backtest.ErrUnsupportedStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := maInput()
			tt.mutate(&in)
			_, err := f.strategies.Create(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunSavedStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)

	res, err := f.backtests.Run(ctx, Request{StrategyID: rec.ID})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.StrategyID)
	assert.Equal(t, fetcher.SourceSynthetic, res.DataSource)
	assert.Equal(t, "005930", res.StockCode)
	assert.Equal(t, 120, res.Params.Days)
	assert.InDelta(t, 10_000_000.0, res.Params.InitialCapital, 0)
	assert.InDelta(t, 0.00015, res.Params.FeeRate, 0)
	assert.NotEmpty(t, res.PortfolioValues)
	assert.Nil(t, res.Signals)

	stored, err := f.backtests.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Metrics, stored.Metrics)

	updated, err := f.strategies.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, updated.BacktestHistory, 1)
	assert.Equal(t, res.ID, updated.BacktestHistory[0].ResultID)
	assert.InDelta(t, res.Metrics.TotalReturnPct, updated.BacktestHistory[0].TotalReturn, 1e-12)

	list, err := f.backtests.ListByStrategy(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("ma_cross", "ok")), 0)
	assert.InDelta(t, float64(len(res.Trades)), testutil.ToFloat64(f.metrics.Trades), 0)
}

func TestRunIsDeterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)

	a, err := f.backtests.Run(ctx, Request{StrategyID: rec.ID, Days: 200})
	require.NoError(t, err)
	b, err := f.backtests.Run(ctx, Request{StrategyID: rec.ID, Days: 200})
	require.NoError(t, err)
	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestRunAdHoc(t *testing.T) {
	f := newFixture(t)
	s := maInput().Strategy
	fee := 0.0
	res, err := f.backtests.Run(context.Background(), Request{
		Strategy:       &s,
		StockCode:      "000660",
		InitialCapital: 1_000_000,
		FeeRate:        &fee,
		IncludeSignals: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.StrategyID)
	assert.Equal(t, "SK하이닉스", res.StockName)
	assert.Zero(t, res.Params.FeeRate)
	assert.NotEmpty(t, res.Signals)
}

func TestRunHistoryIsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)
	for i := 0; i < model.MaxHistory+3; i++ {
		_, err := f.backtests.Run(ctx, Request{StrategyID: rec.ID, Days: 60})
		require.NoError(t, err)
	}
	updated, err := f.strategies.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, updated.BacktestHistory, model.MaxHistory)
}

func TestRunErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing strategy", Request{StrategyID: "nope"}, store.ErrNotFound},
		{"empty request", Request{}, backtest.ErrConfiguration},
		{"ad-hoc bad code", Request{Strategy: &rec.Strategy, StockCode: "ZZ"}, backtest.ErrConfiguration},
		{"unknown source", Request{StrategyID: rec.ID, DataSource: "yahoo"}, backtest.ErrConfiguration},
		{"fetch failure is not replaced", Request{StrategyID: rec.ID, DataSource: "REAL"}, fetcher.ErrDataUnavailable},
		{"too few bars", Request{StrategyID: rec.ID, DataSource: "csv"}, backtest.ErrInsufficientData},
		{"negative capital", Request{StrategyID: rec.ID, InitialCapital: -5}, backtest.ErrInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.backtests.Run(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = f.backtests.ListByStrategy(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("ma_cross", "fetch_error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("ma_cross", "insufficient_data")), 0)
}

func TestMetricsRegister(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() { NewMetrics(f.reg) }, "duplicate registration")
	assert.NotPanics(t, func() { NewMetrics(nil) })
}

// hookedStrategies runs onGet once, after the next Get returns from the store.
type hookedStrategies struct {
	store.StrategyRepository
	mu    sync.Mutex
	onGet func()
}

func (h *hookedStrategies) arm(fn func()) {
	h.mu.Lock()
	h.onGet = fn
	h.mu.Unlock()
}

func (h *hookedStrategies) Get(ctx context.Context, id string) (*model.StrategyRecord, error) {
	rec, err := h.StrategyRepository.Get(ctx, id)
	h.mu.Lock()
	fn := h.onGet
	h.onGet = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return rec, err
}

type notifyingResults struct {
	store.ResultRepository
	saved chan struct{}
}

func (n *notifyingResults) Save(ctx context.Context, r *model.BacktestResult) error {
	err := n.ResultRepository.Save(ctx, r)
	select {
	case n.saved <- struct{}{}:
	default:
	}
	return err
}

func TestUpdateKeepsHistoryOfConcurrentRun(t *testing.T) {
	strategies := &hookedStrategies{StrategyRepository: store.NewMemoryStrategies()}
	results := &notifyingResults{ResultRepository: store.NewMemoryResults(), saved: make(chan struct{}, 1)}
	f := newFixtureWith(t, strategies, results)
	ctx := context.Background()

	rec, err := f.strategies.Create(ctx, maInput())
	require.NoError(t, err)

	runErr := make(chan error, 1)
	strategies.arm(func() {
		// a run starts after Update has read the record and gets as far as saving its result
		go func() {
			_, err := f.backtests.Run(ctx, Request{StrategyID: rec.ID, Days: 60})
			runErr <- err
		}()
		select {
		case <-results.saved:
		case <-time.After(2 * time.Second):
			t.Error("run did not save its result")
		}
	})

	in := maInput()
	in.Name = "renamed"
	_, err = f.strategies.Update(ctx, rec.ID, in)
	require.NoError(t, err)
	require.NoError(t, <-runErr)

	got, err := f.strategies.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Len(t, got.BacktestHistory, 1)
}

func TestBars(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, bars, err := f.backtests.Bars(ctx, "005930", 0, "")
	require.NoError(t, err)
	assert.Equal(t, fetcher.SourceSynthetic, src)
	assert.Len(t, bars, 84)

	_, _, err = f.backtests.Bars(ctx, "5930", 30, "")
	assert.ErrorIs(t, err, backtest.ErrConfiguration)
	_, _, err = f.backtests.Bars(ctx, "005930", 30, "yahoo")
	assert.ErrorIs(t, err, backtest.ErrConfiguration)
	_, _, err = f.backtests.Bars(ctx, "005930", 30, "real")
	assert.ErrorIs(t, err, fetcher.ErrDataUnavailable)
}
