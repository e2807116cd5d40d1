// Package report writes backtest results to disk and renders metrics for the
// console.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"siglab/internal/backtest"
	"siglab/internal/domain"
)

const dateLayout = "2006-01-02"

// Header returns the CSV column names for rep: bar fields, the strategy's
// intermediate columns, then signal, ret, strat_ret and equity.
func Header(rep *backtest.Report) []string {
	h := []string{"Date", "Open", "High", "Low", "Close", "Volume"}
	for _, c := range rep.Columns {
		h = append(h, c.Name)
	}
	return append(h, "signal", "ret", "strat_ret", "equity")
}

// WriteCSV writes one row per bar of rep to path, creating parent
// directories as needed. Undefined values are written as empty fields.
func WriteCSV(path string, rep *backtest.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header(rep)); err != nil {
		return err
	}
	for i, row := range rep.Result.Rows {
		b := row.Bar
		rec := []string{
			b.Date.Format(dateLayout),
			formatF(b.Open), formatF(b.High), formatF(b.Low), formatF(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}
		for _, c := range rep.Columns {
			rec = append(rec, formatNull(c.Values[i]))
		}
		rec = append(rec,
			formatSignal(row.Signal),
			formatF(row.Ret), formatF(row.StratRet), formatF(row.Equity),
		)
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatNull(v domain.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return formatF(v.Float64)
}

func formatSignal(s domain.NullSignal) string {
	if !s.Valid {
		return ""
	}
	return strconv.Itoa(int(s.Position))
}
