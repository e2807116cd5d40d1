// Package loader reads OHLC price series from files and market-data
// services and returns them sorted ascending by date.
package loader

import (
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

	"siglab/internal/domain"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrDuplicateDate is returned when two rows share a date.
	ErrDuplicateDate = errors.New("duplicate date")
	// ErrEmpty is returned for a file with a header but no rows.
	ErrEmpty = errors.New("no rows")
)

// dateLayouts are tried in order when parsing the Date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

var requiredColumns = []string{"date", "open", "high", "low", "close"}

// LoadCSV reads a price file. The symbol is the upper-cased file name
// without extension.
func LoadCSV(path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, err
	}
	defer f.Close()

	symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	s, err := ReadCSV(f, symbol)
	if err != nil {
		return domain.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadCSV parses delimited price data with a header row containing at least
// Date, Open, High, Low and Close. Header matching ignores case and
// surrounding space; a Volume column is read when present. Rows are sorted
// ascending by date and duplicate dates are rejected.
func ReadCSV(r io.Reader, symbol string) (domain.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return domain.Series{}, ErrEmpty
	}
	if err != nil {
		return domain.Series{}, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return domain.Series{}, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	volIdx, hasVol := idx["volume"]

	var bars []domain.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return domain.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}

		field := func(name string) string {
			i := idx[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		b := domain.Bar{Symbol: symbol}
		if b.Date, err = parseDate(field("date")); err != nil {
			return domain.Series{}, fmt.Errorf("line %d: date: %w", line, err)
		}
		for _, col := range []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
		} {
			v, err := strconv.ParseFloat(field(col.name), 64)
			if err != nil {
				return domain.Series{}, fmt.Errorf("line %d: %s: %w", line, col.name, err)
			}
			*col.dst = v
		}
		if hasVol && volIdx < len(rec) {
			if v := strings.TrimSpace(rec[volIdx]); v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return domain.Series{}, fmt.Errorf("line %d: volume: %w", line, err)
				}
				b.Volume = int64(f)
			}
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return domain.Series{}, ErrEmpty
	}

	return Normalize(symbol, bars)
}

// Normalize sorts bars ascending by date and rejects duplicate dates.
func Normalize(symbol string, bars []domain.Bar) (domain.Series, error) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Equal(bars[i-1].Date) {
			return domain.Series{}, fmt.Errorf("%w: %s", ErrDuplicateDate, bars[i].Date.Format("2006-01-02"))
		}
	}
	return domain.NewSeries(symbol, bars), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
