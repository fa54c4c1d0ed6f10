package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kairos/backtest"
	"kairos/cache"
)

// CachedSource memoizes another source's series. Keys carry the calendar day so a
// cached series never outlives the trading day it was fetched on. Cache failures are
// logged and the inner source is used.
type CachedSource struct {
	inner Source
	c     cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

func NewCachedSource(inner Source, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		inner: inner,
		c:     c,
		ttl:   ttl,
		log:   log.With().Str("component", "bar_cache").Str("source", inner.Name()).Logger(),
		now:   time.Now,
	}
}

func (s *CachedSource) Name() string { return s.inner.Name() }

func (s *CachedSource) key(code string, days int) string {
	return fmt.Sprintf("bars:%s:%s:%d:%s", s.inner.Name(), code, days, s.now().Format("20060102"))
}

func (s *CachedSource) Bars(ctx context.Context, code string, days int) ([]backtest.Bar, error) {
	key := s.key(code, days)

	raw, ok, err := s.c.Get(ctx, key)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	case ok:
		var bars []backtest.Bar
		if err := json.Unmarshal(raw, &bars); err == nil && len(bars) > 0 {
			s.log.Debug().Str("key", key).Int("bars", len(bars)).Msg("cache hit")
			return bars, nil
		}
		s.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	bars, err := s.inner.Bars(ctx, code, days)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(bars); err == nil {
		if err := s.c.Set(ctx, key, b, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return bars, nil
}
