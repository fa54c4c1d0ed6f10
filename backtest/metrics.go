package backtest

import "math"

const (
	calendarDaysPerYear = 365
	tradingDaysPerYear  = 252
)

// ComputeMetrics derives return, risk and win statistics from an equity curve and the
// trade log. It is a pure function; an empty curve yields zero metrics.
func ComputeMetrics(curve []EquityPoint, trades []Trade) Metrics {
	var m Metrics
	m.WinCount, m.LossCount = winLoss(trades)
	m.TotalTrades = m.WinCount + m.LossCount
	if m.TotalTrades > 0 {
		m.WinRatePct = float64(m.WinCount) / float64(m.TotalTrades) * 100
	}

	if len(curve) == 0 {
		return m
	}
	initial := curve[0].TotalValue
	final := curve[len(curve)-1].TotalValue
	if initial > 0 {
		growth := final / initial
		m.TotalReturnPct = finite((growth - 1) * 100)
		if n := len(curve); n > 1 {
			m.AnnualizedReturnPct = finite((math.Pow(growth, calendarDaysPerYear/float64(n)) - 1) * 100)
		}
	}

	m.VolatilityPct = finite(stdev(pointReturns(curve)) * math.Sqrt(tradingDaysPerYear) * 100)
	m.MaxDrawdownPct = maxDrawdownPct(curve)
	if m.VolatilityPct > 0 {
		m.SharpeRatio = finite((m.AnnualizedReturnPct / 100) / (m.VolatilityPct / 100))
	}
	return m
}

func winLoss(trades []Trade) (win, loss int) {
	for _, t := range trades {
		if !t.Side.Closing() || t.ProfitPct == nil {
			continue
		}
		if *t.ProfitPct > 0 {
			win++
		} else {
			loss++
		}
	}
	return win, loss
}

func pointReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalValue
		if prev == 0 {
			continue
		}
		out = append(out, (curve[i].TotalValue-prev)/prev)
	}
	return out
}

// stdev is the population standard deviation; fewer than two samples read as zero.
func stdev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}

func maxDrawdownPct(curve []EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range curve {
		v := p.TotalValue
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
