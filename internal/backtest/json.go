package backtest

import (
	"encoding/json"
	"math"
)

// metricsJSON is the wire form of Metrics. JSON has no NaN or infinity, so
// non-finite values travel as null.
type metricsJSON struct {
	TotalReturn *float64 `json:"TotalReturn"`
	CAGR        *float64 `json:"CAGR"`
	MaxDrawdown *float64 `json:"MaxDrawdown"`
	Sharpe      *float64 `json:"Sharpe"`
}

// MarshalJSON encodes non-finite metrics as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{
		TotalReturn: finite(m.TotalReturn),
		CAGR:        finite(m.CAGR),
		MaxDrawdown: finite(m.MaxDrawdown),
		Sharpe:      finite(m.Sharpe),
	})
}

// UnmarshalJSON decodes null metrics as NaN.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var j metricsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*m = Metrics{
		TotalReturn: orNaN(j.TotalReturn),
		CAGR:        orNaN(j.CAGR),
		MaxDrawdown: orNaN(j.MaxDrawdown),
		Sharpe:      orNaN(j.Sharpe),
	}
	return nil
}

// finite returns a pointer to v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// orNaN dereferences p, returning NaN for nil.
func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
