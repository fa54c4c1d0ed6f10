package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics backtest instrumentation exported on /metrics
type Metrics struct {
	Runs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Trades   prometheus.Counter
	Bars     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kairos_backtest_runs_total",
				Help: "Backtest runs by strategy type and outcome",
			},
			[]string{"strategy_type", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kairos_backtest_duration_seconds",
				Help:    "Wall time of a backtest run including the data fetch",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"strategy_type"},
		),
		Trades: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kairos_backtest_trades_total",
				Help: "Trades executed across all backtest runs",
			},
		),
		Bars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kairos_bars_fetched_total",
				Help: "Price bars fetched by data source",
			},
			[]string{"source"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Duration, m.Trades, m.Bars)
	}
	return m
}
