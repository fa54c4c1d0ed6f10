package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/backtest"
	"kairos/cache"
	"kairos/trading"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 8, 16, 0, 0, 0, trading.KST) }

func TestSyntheticSourceIsDeterministic(t *testing.T) {
	src := NewSyntheticSource(fixedNow)
	a, err := src.Bars(context.Background(), "005930", 100)
	require.NoError(t, err)
	b, err := src.Bars(context.Background(), "005930", 100)
	require.NoError(t, err)

	require.Len(t, a, 70)
	assert.Equal(t, a, b)
	require.NoError(t, backtest.ValidateBars(a))

	c, err := src.Bars(context.Background(), "000660", 100)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Close, c[0].Close)

	for _, bar := range a {
		assert.True(t, trading.IsBusinessDay(bar.Time))
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Close)
		assert.GreaterOrEqual(t, bar.Close, 0.5*(50000+30*1000))
		assert.GreaterOrEqual(t, bar.Volume, int64(10000))
	}
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, trading.KST), a[len(a)-1].Time)
}

func TestSyntheticSeed(t *testing.T) {
	seed, price := syntheticSeed("005930")
	assert.Equal(t, int64(30), seed)
	assert.Equal(t, int64(30), price)

	seed, price = syntheticSeed("AB")
	assert.Equal(t, int64('A'+'B'), seed)
	assert.Equal(t, int64('A'+'B')%100, price)
}

func TestSyntheticSourceRejectsTinyWindow(t *testing.T) {
	_, err := NewSyntheticSource(fixedNow).Bars(context.Background(), "005930", 1)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2024-03-06,73400,73900,72800,73300,13561254",
		"20240304,72800,73100,72000,72500,11232456",
		"2024-03-05,72600,73500,72200,73200,12003455",
		"2024-01-02,70000,71000,69500,70500,9000000",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "005930.csv"), []byte(content), 0o644))

	src := NewCSVSource(dir)
	bars, err := src.Bars(context.Background(), "005930", 30)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, trading.KST), bars[0].Time)
	assert.InDelta(t, 73300.0, bars[2].Close, 0)

	all, err := src.Bars(context.Background(), "005930", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = src.Bars(context.Background(), "000660", 30)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	_, err = src.Bars(context.Background(), "../etc/passwd", 30)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	single := NewCSVFile(filepath.Join(dir, "005930.csv"))
	bars, err = single.Bars(context.Background(), "000660", 0)
	require.NoError(t, err)
	assert.Len(t, bars, 4)
}

func TestReadBarsCSVErrors(t *testing.T) {
	_, err := ReadBarsCSV(strings.NewReader("date,open,high,low,close\n"))
	assert.ErrorContains(t, err, "volume")

	_, err = ReadBarsCSV(strings.NewReader("date,open,high,low,close,volume\n03/04/2024,1,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

type countingSource struct {
	calls atomic.Int32
	bars  []backtest.Bar
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Bars(context.Context, string, int) ([]backtest.Bar, error) {
	c.calls.Add(1)
	return c.bars, nil
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{bars: []backtest.Bar{
		{Time: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
	}}
	src := NewCachedSource(inner, cache.NewMemory(), time.Hour, zerolog.Nop())
	src.now = fixedNow

	for i := 0; i < 3; i++ {
		bars, err := src.Bars(context.Background(), "005930", 30)
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.InDelta(t, 2.0, bars[0].Close, 0)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "counting", src.Name())

	_, err := src.Bars(context.Background(), "005930", 60)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRegistrySelect(t *testing.T) {
	reg := Registry{
		SourceSynthetic: NewSyntheticSource(fixedNow),
		SourceCSV:       NewCSVSource(t.TempDir()),
	}
	s, err := reg.Select(" Synthetic ")
	require.NoError(t, err)
	assert.Equal(t, SourceSynthetic, s.Name())

	_, err = reg.Select(SourceReal)
	assert.ErrorIs(t, err, backtest.ErrConfiguration)
	assert.Equal(t, []string{"csv", "synthetic"}, reg.Names())
}

func TestSearchListings(t *testing.T) {
	got := SearchListings("삼성", 3)
	require.Len(t, got, 3)
	for _, l := range got {
		assert.Contains(t, l.Name, "삼성")
	}
	assert.Len(t, SearchListings("", 5), 5)
	assert.Empty(t, SearchListings("zzz", 5))

	name, ok := LookupName("035420")
	assert.True(t, ok)
	assert.Equal(t, "NAVER", name)
}

func TestListingLookups(t *testing.T) {
	l, ok := ListingByCode("035420")
	require.True(t, ok)
	assert.Equal(t, "NAVER", l.Name)
	assert.Equal(t, "서비스업", l.Sector)
	_, ok = ListingByCode("999999")
	assert.False(t, ok)

	assert.Len(t, PopularListings(3), 3)
	assert.Equal(t, "005930", PopularListings(1)[0].Code)
	assert.Len(t, PopularListings(0), len(listings))
	assert.Len(t, PopularListings(100), len(listings))

	electronics := ListingsBySector("전기전자", 0)
	assert.Len(t, electronics, 4)
	for _, l := range electronics {
		assert.Equal(t, "전기전자", l.Sector)
	}
	assert.Len(t, ListingsBySector("전기전자", 2), 2)
	assert.Empty(t, ListingsBySector("우주항공", 0))
}

func TestValidateCode(t *testing.T) {
	tests := []struct {
		code string
		ok   bool
	}{
		{"005930", true},
		{"999999", true},
		{"", false},
		{"ZZ", false},
		{"5930", false},
		{"0059300", false},
		{"00593A", false},
	}
	for _, tt := range tests {
		err := ValidateCode(tt.code)
		if tt.ok {
			assert.NoError(t, err, tt.code)
			continue
		}
		assert.ErrorIs(t, err, backtest.ErrConfiguration, tt.code)
	}
}
