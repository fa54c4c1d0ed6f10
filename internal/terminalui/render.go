// Package terminalui prints backtest reports for a terminal.
package terminalui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kairos/backtest"
)

// Report inputs of one printed backtest
type Report struct {
	StockCode  string
	StockName  string
	DataSource string
	Strategy   backtest.Strategy
	Params     backtest.RunParams
	Result     *backtest.Result

	// MaxTrades limits the trade table; 0 prints every trade.
	MaxTrades int
}

const rule = "══════════════════════════════════════════════════════════════════"

var printer = message.NewPrinter(language.Korean)

// Render writes the summary, metrics and trade table. Gains print red and losses blue,
// following the local market convention; color.NoColor turns both off.
func Render(w io.Writer, r Report) {
	res := r.Result
	m := res.Metrics

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s %s  [%s]  source=%s\n", r.StockCode, truncateName(r.StockName, 12), r.Strategy.Type, r.DataSource)
	if n := len(res.EquityCurve); n > 0 {
		fmt.Fprintf(w, "  %s ~ %s  (%d bars)\n",
			res.EquityCurve[0].Date.Format("2006-01-02"),
			res.EquityCurve[n-1].Date.Format("2006-01-02"), n)
	}
	fmt.Fprintln(w, rule)

	final := r.Params.InitialCapital
	if n := len(res.EquityCurve); n > 0 {
		final = res.EquityCurve[n-1].TotalValue
	}
	fmt.Fprintf(w, "  %-16s %s\n", "initial capital", formatWon(r.Params.InitialCapital))
	fmt.Fprintf(w, "  %-16s %s\n", "final value", formatWon(final))
	fmt.Fprintf(w, "  %-16s %s\n", "total return", signed(m.TotalReturnPct, "%+.2f%%"))
	fmt.Fprintf(w, "  %-16s %s\n", "annualized", signed(m.AnnualizedReturnPct, "%+.2f%%"))
	fmt.Fprintf(w, "  %-16s %.2f%%\n", "volatility", m.VolatilityPct)
	fmt.Fprintf(w, "  %-16s %.3f\n", "sharpe", m.SharpeRatio)
	fmt.Fprintf(w, "  %-16s %s\n", "max drawdown", signed(-m.MaxDrawdownPct, "%.2f%%"))
	fmt.Fprintf(w, "  %-16s %.1f%% (%d win / %d loss)\n", "win rate", m.WinRatePct, m.WinCount, m.LossCount)

	enter, exit := backtest.SignalCounts(res.Signals)
	fmt.Fprintf(w, "  %-16s enter=%d exit=%d\n", "signals", enter, exit)

	fmt.Fprintln(w, rule)
	if len(res.Trades) == 0 {
		fmt.Fprintln(w, "  no trades")
		return
	}
	fmt.Fprintf(w, "  %-10s  %-18s  %12s  %8s  %14s  %9s\n", "date", "side", "price", "qty", "amount", "profit")
	trades := res.Trades
	if r.MaxTrades > 0 && len(trades) > r.MaxTrades {
		trades = trades[len(trades)-r.MaxTrades:]
		fmt.Fprintf(w, "  ... %d earlier trades omitted\n", len(res.Trades)-r.MaxTrades)
	}
	for _, t := range trades {
		profit := ""
		if t.ProfitPct != nil {
			profit = signed(*t.ProfitPct, "%+.2f%%")
		}
		fmt.Fprintf(w, "  %-10s  %-18s  %12s  %8s  %14s  %9s\n",
			t.Date.Format("2006-01-02"), sideLabel(t),
			printer.Sprintf("%.0f", t.Price), printer.Sprintf("%d", t.Quantity),
			printer.Sprintf("%.0f", t.Amount), profit)
	}
}

func sideLabel(t backtest.Trade) string {
	if t.Reason == "" {
		return string(t.Side)
	}
	return string(t.Side) + "/" + t.Reason
}

func signed(v float64, format string) string {
	s := fmt.Sprintf(format, v)
	switch {
	case v > 0:
		return color.RedString(s)
	case v < 0:
		return color.BlueString(s)
	}
	return s
}

func formatWon(v float64) string {
	return printer.Sprintf("%.0f원", v)
}

func truncateName(name string, maxLen int) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return string(runes)
}
