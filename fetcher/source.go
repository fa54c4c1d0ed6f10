// Package fetcher provides the daily price series a backtest runs on.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kairos/backtest"
)

// Data source names accepted by configuration and requests.
const (
	SourceReal      = "real"
	SourceSynthetic = "synthetic"
	SourceCSV       = "csv"
)

// Source yields daily bars for a stock code, oldest first. days is the calendar-day
// lookback window.
type Source interface {
	Name() string
	Bars(ctx context.Context, code string, days int) ([]backtest.Bar, error)
}

var ErrDataUnavailable = errors.New("price data unavailable")

// FetchError reports a failed fetch. It matches ErrDataUnavailable and the cause.
type FetchError struct {
	Source string
	Code   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Source, e.Code, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrDataUnavailable, e.Err}
}

func unavailable(source, code string, err error) error {
	return &FetchError{Source: source, Code: code, Err: err}
}

// Registry maps configured source names to implementations.
type Registry map[string]Source

// Select picks the source named by configuration or by a request. It never substitutes
// another source for a missing one.
func (r Registry) Select(name string) (Source, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if s, ok := r[n]; ok && s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown data source %q (available: %s)", backtest.ErrConfiguration, name, strings.Join(r.Names(), ", "))
}

func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
