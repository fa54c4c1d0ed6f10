// Package warmup keeps the bar cache filled for the stocks of active strategies.
package warmup

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"kairos/fetcher"
	"kairos/model"
	"kairos/trading"
)

// StrategyLister is the read side of the strategy store.
type StrategyLister interface {
	List(ctx context.Context) ([]*model.StrategyRecord, error)
}

type Options struct {
	Interval time.Duration
	Days     int
	Logger   zerolog.Logger
	// Now defaults to time.Now; the regular session is skipped because the day's bar is
	// still forming.
	Now func() time.Time
}

// Run warms once immediately, then on every tick until ctx is done.
func Run(ctx context.Context, strategies StrategyLister, src fetcher.Source, opt Options) {
	log := opt.Logger.With().Str("component", "warmup").Str("source", src.Name()).Logger()
	now := opt.Now
	if now == nil {
		now = time.Now
	}

	log.Info().Dur("interval", opt.Interval).Msg("initial warmup")
	Once(ctx, strategies, src, opt.Days, log)

	ticker := time.NewTicker(opt.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stop")
			return
		case <-ticker.C:
			if trading.IsMarketOpenAt(now()) {
				log.Debug().Msg("market open, skipping")
				continue
			}
			Once(ctx, strategies, src, opt.Days, log)
		}
	}
}

// Once fetches bars for every distinct stock of an active strategy and returns how
// many fetches succeeded.
func Once(ctx context.Context, strategies StrategyLister, src fetcher.Source, days int, log zerolog.Logger) int {
	list, err := strategies.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("list strategies failed")
		return 0
	}

	codes := activeCodes(list)
	ok := 0
	for _, code := range codes {
		if ctx.Err() != nil {
			break
		}
		bars, err := src.Bars(ctx, code, days)
		if err != nil {
			log.Warn().Err(err).Str("code", code).Msg("warm bars failed")
			continue
		}
		ok++
		log.Debug().Str("code", code).Int("bars", len(bars)).Msg("warmed")
	}
	log.Info().Int("codes", len(codes)).Int("ok", ok).Msg("warmup done")
	return ok
}

func activeCodes(list []*model.StrategyRecord) []string {
	seen := make(map[string]struct{}, len(list))
	for _, r := range list {
		if r.IsActive && r.StockCode != "" {
			seen[r.StockCode] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
