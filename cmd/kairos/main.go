package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kairos/internal/kairosctl"
	"kairos/internal/kairosd"
	"kairos/internal/logging"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kairos",
		Short:         "Daily-bar strategy backtesting for KRX stocks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newBacktestCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return kairosd.Run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "service config (YAML); defaults to ./config.yaml when present")
	return cmd
}

func newBacktestCmd() *cobra.Command {
	var (
		opt      kairosctl.Options
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one backtest job and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt.Stdout = cmd.OutOrStdout()
			opt.Log = logging.New(os.Stderr, logLevel, "auto")
			return kairosctl.RunBacktest(cmd.Context(), opt)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.JobPath, "job", "backtest.yaml", "backtest job (YAML)")
	f.StringVar(&opt.ConfigPath, "config", "", "service config for data source credentials")
	f.StringVar(&opt.OutPath, "out", "", "result JSON path (default stdout)")
	f.StringVar(&opt.ChartPath, "chart", "", "equity curve SVG path")
	f.IntVar(&opt.MaxTrades, "max-trades", 20, "trades shown in the summary, 0 for all")
	f.StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}
