package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kst(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, KST)
}

func TestSessionAt(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want SessionState
	}{
		{"monday open", kst(2024, 3, 4, 9, 0), SessionOpen},
		{"monday close bell", kst(2024, 3, 4, 15, 30), SessionOpen},
		{"after close", kst(2024, 3, 4, 15, 31), SessionClosed},
		{"pre-open auction", kst(2024, 3, 4, 8, 45), SessionPreOpen},
		{"saturday", kst(2024, 3, 9, 10, 0), SessionClosed},
		{"utc input", time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC), SessionOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionAt(tt.at))
			assert.Equal(t, tt.want == SessionOpen, IsMarketOpenAt(tt.at))
		})
	}
}

func TestNextOpen(t *testing.T) {
	assert.Equal(t, kst(2024, 3, 4, 9, 0), NextOpen(kst(2024, 3, 4, 7, 0)))
	assert.Equal(t, kst(2024, 3, 5, 9, 0), NextOpen(kst(2024, 3, 4, 16, 0)))
	// friday evening rolls over the weekend
	assert.Equal(t, kst(2024, 3, 11, 9, 0), NextOpen(kst(2024, 3, 8, 18, 0)))
	during := kst(2024, 3, 4, 11, 0)
	assert.Equal(t, during, NextOpen(during))
}

func TestBusinessDays(t *testing.T) {
	days := BusinessDays(kst(2024, 3, 10, 12, 0), 6) // sunday
	require.Len(t, days, 6)
	assert.Equal(t, kst(2024, 3, 1, 0, 0), days[0])
	assert.Equal(t, kst(2024, 3, 8, 0, 0), days[5])
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i].After(days[i-1]))
		assert.True(t, IsBusinessDay(days[i]))
	}
	assert.Nil(t, BusinessDays(time.Now(), 0))
}
