package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
	assert.InDelta(t, 4.0, got[4], 1e-12)
}

func TestSMASkipNaN(t *testing.T) {
	nan := math.NaN()
	got := SMASkipNaN([]float64{nan, nan, 2, 4, 6}, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.InDelta(t, 3.0, got[3], 1e-12)
	assert.InDelta(t, 5.0, got[4], 1e-12)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{"flat window reads neutral", constantCloses(10, 100), 5, 50},
		{"only gains", []float64{1, 2, 3, 4, 5, 6}, 5, 100},
		{"only losses", []float64{6, 5, 4, 3, 2, 1}, 5, 0},
		{"balanced", []float64{10, 11, 10, 11, 10}, 4, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.closes, tt.period)
			for i := 0; i < tt.period; i++ {
				assert.True(t, math.IsNaN(got[i]), "index %d should be warm-up", i)
			}
			assert.InDelta(t, tt.want, got[tt.period], 1e-9)
		})
	}
}

func TestRSIWilderSmoothing(t *testing.T) {
	// seed: two changes +2 and -1 -> avgGain 1, avgLoss 0.5
	// next change +1 -> avgGain (1*1+1)/2 = 1, avgLoss (0.5*1+0)/2 = 0.25
	got := RSI([]float64{10, 12, 11, 12}, 2)
	assert.InDelta(t, 100-100/(1+2.0), got[2], 1e-9)
	assert.InDelta(t, 100-100/(1+4.0), got[3], 1e-9)
}

func TestPriorExtremesExcludeCurrentBar(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5}
	maxes := PriorMax(x, 2)
	mins := PriorMin(x, 2)

	assert.True(t, math.IsNaN(maxes[1]))
	assert.InDelta(t, 3.0, maxes[2], 0)
	assert.InDelta(t, 4.0, maxes[3], 0)
	assert.InDelta(t, 4.0, maxes[4], 0)
	assert.InDelta(t, 1.0, mins[2], 0)
	assert.InDelta(t, 1.0, mins[4], 0)
}
