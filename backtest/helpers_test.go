package backtest

import "time"

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return testStart.AddDate(0, 0, i)
}

// barsFromCloses builds a flat-candle series where open/high/low equal the close.
func barsFromCloses(closes ...float64) []Bar {
	out := make([]Bar, len(closes))
	for i, c := range closes {
		out[i] = Bar{Time: day(i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}

func constantCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func signalsFrom(positions []Position, closes []float64) []SignalBar {
	out := make([]SignalBar, len(closes))
	for i, c := range closes {
		out[i] = SignalBar{
			Bar:      Bar{Time: day(i), Open: c, High: c, Low: c, Close: c},
			Position: positions[i],
		}
	}
	return out
}

func positionsOf(signals []SignalBar) []Position {
	out := make([]Position, len(signals))
	for i, s := range signals {
		out[i] = s.Position
	}
	return out
}
