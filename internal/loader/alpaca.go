package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"siglab/internal/domain"
	"siglab/internal/util"
)

// AlpacaSource loads split- and dividend-adjusted daily bars from the Alpaca
// market-data API.
type AlpacaSource struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	feed    string
	retries int
	log     *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource. An empty dataURL uses the SDK
// default endpoint and an empty feed uses "iex". perMinute bounds the
// request rate.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string, perMinute int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	if perMinute <= 0 {
		perMinute = 200
	}

	return &AlpacaSource{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(perMinute),
		feed:    feed,
		retries: 3,
		log:     slog.Default().With("source", "alpaca"),
	}
}

// Load fetches daily bars for symbol. A zero end means now.
func (a *AlpacaSource) Load(ctx context.Context, symbol string, start, end time.Time) (domain.Series, error) {
	symbol = strings.ToUpper(symbol)
	if end.IsZero() {
		end = time.Now()
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, a.retries, time.Second, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		raw, err = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Adjustment: marketdata.All,
			Start:      start,
			End:        end,
			Feed:       a.feed,
		})
		if err != nil {
			a.log.Warn("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		return domain.Series{}, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return domain.Series{}, fmt.Errorf("%s: %w", symbol, ErrEmpty)
	}

	a.log.Debug("fetched bars", "symbol", symbol, "count", len(raw))
	return Normalize(symbol, fromAlpacaBars(symbol, raw))
}

// fromAlpacaBars converts API bars to domain bars dated at UTC midnight of
// the session day.
func fromAlpacaBars(symbol string, raw []marketdata.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		ts := ab.Timestamp.UTC()
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: int64(ab.Volume),
		})
	}
	return bars
}
