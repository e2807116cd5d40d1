package api

import (
	"time"

	"siglab/internal/backtest"
	"siglab/internal/store"
	"siglab/internal/strategy"
)

// BacktestRequest is the body of POST /api/v1/backtest. Start and End are
// YYYY-MM-DD and optional; zero-valued params take their defaults.
type BacktestRequest struct {
	Symbol string          `json:"symbol"`
	Start  string          `json:"start,omitempty"`
	End    string          `json:"end,omitempty"`
	Params strategy.Params `json:"params"`
}

// EquityPointJSON is one bar of the equity curve.
type EquityPointJSON struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	Signal   *int    `json:"signal"` // null during warm-up
	StratRet float64 `json:"strat_ret"`
	Equity   float64 `json:"equity"`
}

// BacktestResponse is the result of one backtest.
type BacktestResponse struct {
	Symbol   string            `json:"symbol"`
	Strategy string            `json:"strategy"`
	Params   strategy.Params   `json:"params"`
	Metrics  backtest.Metrics  `json:"metrics"`
	RunID    int64             `json:"run_id,omitempty"`
	Equity   []EquityPointJSON `json:"equity"`
}

// StrategiesResponse lists the registered strategy kinds and their defaults.
type StrategiesResponse struct {
	Strategies []string        `json:"strategies"`
	Defaults   strategy.Params `json:"defaults"`
}

// SymbolsResponse lists symbols with stored bars.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// RunsResponse lists recorded runs, newest first.
type RunsResponse struct {
	Runs []store.RunRecord `json:"runs"`
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

const dateLayout = "2006-01-02"

// toRequest converts a decoded body into a runner request.
func (b BacktestRequest) toRequest() (backtest.Request, error) {
	req := backtest.Request{Symbol: b.Symbol, Params: b.Params.WithDefaults()}
	var err error
	if b.Start != "" {
		if req.Start, err = time.Parse(dateLayout, b.Start); err != nil {
			return req, err
		}
	}
	if b.End != "" {
		if req.End, err = time.Parse(dateLayout, b.End); err != nil {
			return req, err
		}
	}
	return req, nil
}

func toBacktestResponse(rep *backtest.Report) BacktestResponse {
	resp := BacktestResponse{
		Symbol:   rep.Symbol,
		Strategy: rep.Params.String(),
		Params:   rep.Params,
		Metrics:  rep.Result.Metrics,
		RunID:    rep.RunID,
		Equity:   make([]EquityPointJSON, len(rep.Result.Rows)),
	}
	for i, row := range rep.Result.Rows {
		p := EquityPointJSON{
			Date:     row.Bar.Date.Format(dateLayout),
			Close:    row.Bar.Close,
			StratRet: row.StratRet,
			Equity:   row.Equity,
		}
		if row.Signal.Valid {
			v := int(row.Signal.Position)
			p.Signal = &v
		}
		resp.Equity[i] = p
	}
	return resp
}
