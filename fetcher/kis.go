package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"kairos/backtest"
	"kairos/trading"
)

const (
	kisDailyPricePath = "/uapi/domestic-stock/v1/quotations/inquire-daily-price"
	kisDailyPriceTrID = "FHKST01010400"
)

type KISConfig struct {
	BaseURL           string
	AppKey            string
	AppSecret         string
	AccessToken       string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// KISSource reads daily prices from the Korea Investment & Securities open API. The
// access token is issued out of band.
type KISSource struct {
	cfg     KISConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
	now     func() time.Time
}

func NewKISSource(cfg KISConfig, log zerolog.Logger) *KISSource {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	st := gobreaker.Settings{
		Name:     "kis",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &KISSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log.With().Str("component", "kis").Logger(),
		now:     time.Now,
	}
}

func (k *KISSource) Name() string { return SourceReal }

func (k *KISSource) Bars(ctx context.Context, code string, days int) ([]backtest.Bar, error) {
	code = strings.TrimSpace(code)
	if k.cfg.BaseURL == "" || k.cfg.AppKey == "" || k.cfg.AppSecret == "" || k.cfg.AccessToken == "" {
		return nil, unavailable(k.Name(), code, errors.New("kis credentials are not configured"))
	}
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, unavailable(k.Name(), code, err)
	}

	v, err := k.breaker.Execute(func() (interface{}, error) {
		return k.fetchDaily(ctx, code)
	})
	if err != nil {
		k.log.Warn().Err(err).Str("code", code).Msg("daily price fetch failed")
		return nil, unavailable(k.Name(), code, err)
	}

	bars := v.([]backtest.Bar)
	if days > 0 {
		cutoff := k.now().AddDate(0, 0, -days)
		i := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(cutoff) })
		bars = bars[i:]
	}
	if len(bars) == 0 {
		return nil, unavailable(k.Name(), code, errors.New("no rows in window"))
	}
	k.log.Debug().Str("code", code).Int("bars", len(bars)).Msg("daily prices fetched")
	return bars, nil
}

type kisDailyResponse struct {
	RtCd   string          `json:"rt_cd"`
	MsgCd  string          `json:"msg_cd"`
	Msg1   string          `json:"msg1"`
	Output []kisDailyPrice `json:"output"`
}

type kisDailyPrice struct {
	Date   string `json:"stck_bsop_date"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Close  string `json:"stck_clpr"`
	Volume string `json:"acml_vol"`
}

func (k *KISSource) fetchDaily(ctx context.Context, code string) ([]backtest.Bar, error) {
	q := url.Values{}
	q.Set("FID_COND_MRKT_DIV_CODE", "J")
	q.Set("FID_INPUT_ISCD", code)
	q.Set("FID_PERIOD_DIV_CODE", "D")
	q.Set("FID_ORG_ADJ_PRC", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.BaseURL+kisDailyPricePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+k.cfg.AccessToken)
	req.Header.Set("appkey", k.cfg.AppKey)
	req.Header.Set("appsecret", k.cfg.AppSecret)
	req.Header.Set("tr_id", kisDailyPriceTrID)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseKISDaily(body)
}

func parseKISDaily(body []byte) ([]backtest.Bar, error) {
	var r kisDailyResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if r.RtCd != "0" {
		return nil, fmt.Errorf("kis error %s: %s", r.MsgCd, strings.TrimSpace(r.Msg1))
	}

	bars := make([]backtest.Bar, 0, len(r.Output))
	for _, row := range r.Output {
		if strings.TrimSpace(row.Date) == "" {
			continue
		}
		b, err := row.bar()
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	// the API lists newest first
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (p kisDailyPrice) bar() (backtest.Bar, error) {
	t, err := time.ParseInLocation("20060102", strings.TrimSpace(p.Date), trading.KST)
	if err != nil {
		return backtest.Bar{}, fmt.Errorf("row date %q: %w", p.Date, err)
	}
	var vals [5]decimal.Decimal
	for i, s := range []string{p.Open, p.High, p.Low, p.Close, p.Volume} {
		s = strings.TrimSpace(s)
		if s == "" {
			s = "0"
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return backtest.Bar{}, fmt.Errorf("row %s field %d: %w", p.Date, i, err)
		}
		vals[i] = d
	}
	return backtest.Bar{
		Time:   t,
		Open:   vals[0].InexactFloat64(),
		High:   vals[1].InexactFloat64(),
		Low:    vals[2].InexactFloat64(),
		Close:  vals[3].InexactFloat64(),
		Volume: vals[4].IntPart(),
	}, nil
}
