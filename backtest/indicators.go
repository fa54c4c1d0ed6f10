package backtest

import "math"

// SMA over the trailing p points; NaN during warm-up so the output stays aligned with x.
func SMA(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	if p <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// SMASkipNaN is SMA over a series that begins with a NaN warm-up prefix.
func SMASkipNaN(x []float64, p int) []float64 {
	start := 0
	for start < len(x) && math.IsNaN(x[start]) {
		start++
	}
	out := make([]float64, len(x))
	for i := 0; i < start; i++ {
		out[i] = math.NaN()
	}
	copy(out[start:], SMA(x[start:], p))
	return out
}

// RSI with Wilder's smoothing. The first value (index p) seeds the averages with a
// simple mean of the first p changes. A window with neither gains nor losses reads 50.
func RSI(closes []float64, p int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if p <= 0 || len(closes) <= p {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	n := float64(p)
	for i := p + 1; i < len(closes); i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func gainLoss(d float64) (float64, float64) {
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// PriorMax is the max of the p values strictly before each index (NaN until p values exist).
func PriorMax(x []float64, p int) []float64 {
	return priorExtreme(x, p, math.Max)
}

// PriorMin is the min of the p values strictly before each index.
func PriorMin(x []float64, p int) []float64 {
	return priorExtreme(x, p, math.Min)
}

func priorExtreme(x []float64, p int, pick func(a, b float64) float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if p <= 0 || i < p {
			out[i] = math.NaN()
			continue
		}
		v := x[i-p]
		for j := i - p + 1; j < i; j++ {
			v = pick(v, x[j])
		}
		out[i] = v
	}
	return out
}

func closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
