package gather

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// EndDateFunc returns the last session date a gathering pass should cover.
type EndDateFunc func() (time.Time, error)

// LatestFinishedTradingDay returns the most recent trading day whose market
// session has ended (after 20:05 ET, once extended hours data settles). It
// uses the Alpaca trading calendar API.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now := time.Now().In(et)

	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	days := make([]string, len(calendar))
	for i, d := range calendar {
		days[i] = d.Date
	}
	return latestFinished(days, now)
}

// latestFinished picks the last date in days (YYYY-MM-DD, ascending) whose
// session is over at now.
func latestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}
	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		day := days[i]
		if day == today {
			if now.After(cutoff) {
				t, _ := time.Parse("2006-01-02", day)
				return t, nil
			}
			continue
		}
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		if day < today {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}

// PreviousWeekday returns the weekday before now as a UTC date. It stands in
// for the trading calendar when no trading API is configured.
func PreviousWeekday(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
