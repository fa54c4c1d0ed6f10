// Package kairosd runs the backtest HTTP service.
package kairosd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kairos/api"
	"kairos/config"
	"kairos/internal/logging"
	"kairos/internal/warmup"
	"kairos/service"
)

// Run serves until SIGINT or SIGTERM.
func Run(ctx context.Context, configPath string) error {
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}

	cfg, err := config.GetConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	locks := service.NewStrategyLocks()
	strategies := service.NewStrategyService(app.Strategies, locks, log)
	backtests := service.NewBacktestService(app.Strategies, app.Results, app.Sources, service.Defaults{
		DataSource:     cfg.DataSource,
		Days:           cfg.DefaultDays,
		InitialCapital: cfg.DefaultInitialCapital,
		FeeRate:        cfg.DefaultFeeRate,
	}, locks, service.NewMetrics(reg), log)

	if cfg.WarmupInterval > 0 {
		src, err := app.Sources.Select(cfg.DataSource)
		if err != nil {
			return err
		}
		go warmup.Run(ctx, app.Strategies, src, warmup.Options{
			Interval: cfg.WarmupInterval,
			Days:     cfg.DefaultDays,
			Logger:   log,
		})
	}

	server := api.NewServer(strategies, backtests, api.Options{Port: cfg.Port, Mode: cfg.GinMode, Registry: reg}, log)
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	log.Info().
		Int("port", cfg.Port).
		Str("data_source", cfg.DataSource).
		Strs("sources", app.Sources.Names()).
		Str("store", cfg.StoreDriver).
		Msg("kairos started")

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}
