// Package kairosctl runs one-shot backtests from a YAML job file.
package kairosctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"kairos/backtest"
	"kairos/cache"
	"kairos/config"
	"kairos/fetcher"
	"kairos/internal/kairosd"
	"kairos/internal/terminalui"
)

type Options struct {
	JobPath    string // backtest.yaml
	ConfigPath string // service config for data source credentials; optional
	OutPath    string // result JSON; empty writes stdout
	ChartPath  string // equity SVG; empty skips it
	MaxTrades  int

	Stdout io.Writer
	Log    zerolog.Logger
}

// RunBacktest loads the job, fetches bars from the named source and writes the result.
// With OutPath set the summary goes to stdout; otherwise stdout carries the JSON.
func RunBacktest(ctx context.Context, opt Options) error {
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	job, err := backtest.LoadRunConfig(opt.JobPath)
	if err != nil {
		return err
	}

	src, err := jobSource(job, opt)
	if err != nil {
		return err
	}
	bars, err := src.Bars(ctx, job.StockCode, job.Params.Days)
	if err != nil {
		return err
	}
	opt.Log.Debug().Str("code", job.StockCode).Str("source", src.Name()).Int("bars", len(bars)).Msg("bars loaded")

	res, err := backtest.Run(bars, job.Strategy, job.Params)
	if err != nil {
		return err
	}

	if opt.OutPath == "" {
		if err := backtest.WriteResultJSON(opt.Stdout, res); err != nil {
			return err
		}
	} else {
		if err := writeFile(opt.OutPath, func(w io.Writer) error { return backtest.WriteResultJSON(w, res) }); err != nil {
			return err
		}
		name := job.StockName
		if name == "" {
			name, _ = fetcher.LookupName(job.StockCode)
		}
		terminalui.Render(opt.Stdout, terminalui.Report{
			StockCode:  job.StockCode,
			StockName:  name,
			DataSource: src.Name(),
			Strategy:   job.Strategy,
			Params:     job.Params,
			Result:     res,
			MaxTrades:  opt.MaxTrades,
		})
	}

	if opt.ChartPath != "" {
		title := strings.TrimSpace(fmt.Sprintf("%s %s %s", job.StockCode, job.StockName, job.Strategy.Type))
		svg, err := backtest.RenderEquitySVG(title, res.EquityCurve, res.Trades, backtest.SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		if err := writeFile(opt.ChartPath, func(w io.Writer) error { _, err := w.Write(svg); return err }); err != nil {
			return err
		}
	}
	opt.Log.Info().
		Str("code", job.StockCode).
		Int("trades", len(res.Trades)).
		Float64("total_return", res.Metrics.TotalReturnPct).
		Msg("backtest done")
	return nil
}

// jobSource honors the job's data source exactly; a csv path in the job wins over the
// configured directory.
func jobSource(job backtest.RunConfig, opt Options) (fetcher.Source, error) {
	if strings.EqualFold(job.DataSource, fetcher.SourceCSV) && job.CSVPath != "" {
		path := job.CSVPath
		if !filepath.IsAbs(path) && opt.JobPath != "" {
			path = filepath.Join(filepath.Dir(opt.JobPath), path)
		}
		return fetcher.NewCSVFile(path), nil
	}

	cfg, err := config.GetConfig(opt.ConfigPath)
	if err != nil {
		return nil, err
	}
	// the service default source does not apply to jobs
	cfg.DataSource = fetcher.SourceSynthetic
	var c cache.Cache = cache.NewMemory()
	if cfg.CacheDir != "" {
		if fc, err := cache.NewFile(cfg.CacheDir); err == nil {
			c = fc
		}
	}
	reg, err := kairosd.NewSources(cfg, c, opt.Log)
	if err != nil {
		return nil, err
	}
	return reg.Select(job.DataSource)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
