package report

import (
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"siglab/internal/backtest"
	"siglab/internal/domain"
)

// EquityRecord is the Parquet schema of the annotated series. Optional
// fields are nil where the value is undefined.
type EquityRecord struct {
	Symbol   string        `parquet:"symbol"`
	Date     int64         `parquet:"date,timestamp(millisecond)"`
	Open     float64       `parquet:"open"`
	High     float64       `parquet:"high"`
	Low      float64       `parquet:"low"`
	Close    float64       `parquet:"close"`
	Volume   int64         `parquet:"volume"`
	Columns  []ColumnValue `parquet:"columns"`
	Signal   *int32        `parquet:"signal,optional"`
	Ret      float64       `parquet:"ret"`
	StratRet float64       `parquet:"strat_ret"`
	Equity   float64       `parquet:"equity"`
}

// ColumnValue is one strategy column at one bar.
type ColumnValue struct {
	Name  string   `parquet:"name"`
	Value *float64 `parquet:"value,optional"`
}

// Records converts rep to Parquet records.
func Records(rep *backtest.Report) []EquityRecord {
	out := make([]EquityRecord, len(rep.Result.Rows))
	for i, row := range rep.Result.Rows {
		b := row.Bar
		r := EquityRecord{
			Symbol:   rep.Symbol,
			Date:     b.Date.UnixMilli(),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Signal:   signalPtr(row.Signal),
			Ret:      row.Ret,
			StratRet: row.StratRet,
			Equity:   row.Equity,
		}
		if len(rep.Columns) > 0 {
			r.Columns = make([]ColumnValue, len(rep.Columns))
			for j, c := range rep.Columns {
				r.Columns[j] = ColumnValue{Name: c.Name, Value: floatPtr(c.Values[i])}
			}
		}
		out[i] = r
	}
	return out
}

// WriteParquet writes the annotated series of rep to path.
func WriteParquet(path string, rep *backtest.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, Records(rep))
}

// ReadParquet reads records written by WriteParquet.
func ReadParquet(path string) ([]EquityRecord, error) {
	return parquet.ReadFile[EquityRecord](path)
}

func signalPtr(s domain.NullSignal) *int32 {
	if !s.Valid {
		return nil
	}
	v := int32(s.Position)
	return &v
}

func floatPtr(v domain.NullFloat) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
