package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"kairos/backtest"
	"kairos/trading"
)

// CSVSource reads <dir>/<code>.csv files with a date,open,high,low,close,volume header.
// The lookback window is measured back from the newest row.
type CSVSource struct {
	dir  string
	file string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: strings.TrimSpace(dir)}
}

// NewCSVFile serves every code from one file.
func NewCSVFile(path string) *CSVSource {
	return &CSVSource{file: strings.TrimSpace(path)}
}

func (s *CSVSource) Name() string { return SourceCSV }

func (s *CSVSource) Path(code string) string {
	if s.file != "" {
		return s.file
	}
	return filepath.Join(s.dir, code+".csv")
}

func (s *CSVSource) Bars(_ context.Context, code string, days int) ([]backtest.Bar, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.ContainsAny(code, `/\`) {
		return nil, unavailable(s.Name(), code, errors.New("invalid stock code"))
	}
	f, err := os.Open(s.Path(code))
	if err != nil {
		return nil, unavailable(s.Name(), code, err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, unavailable(s.Name(), code, err)
	}
	if len(bars) == 0 {
		return nil, unavailable(s.Name(), code, errors.New("empty file"))
	}
	if days > 0 {
		cutoff := bars[len(bars)-1].Time.AddDate(0, 0, -days)
		i := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(cutoff) })
		bars = bars[i:]
	}
	return bars, nil
}

var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadBarsCSV parses an OHLCV file. Columns are located by header name; dates may be
// 2006-01-02 or 20060102. Rows are returned oldest first.
func ReadBarsCSV(r io.Reader) ([]backtest.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var bars []backtest.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b, err := parseCSVRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func parseCSVRow(rec []string, idx map[string]int) (backtest.Bar, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	t, err := parseDate(field("date"))
	if err != nil {
		return backtest.Bar{}, err
	}
	var prices [4]float64
	for i, name := range csvColumns[1:5] {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return backtest.Bar{}, fmt.Errorf("%s: %w", name, err)
		}
		prices[i] = v
	}
	vol, err := strconv.ParseFloat(field("volume"), 64)
	if err != nil {
		return backtest.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return backtest.Bar{
		Time:   t,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: int64(vol),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, trading.KST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
