// Package siglab is a Go SDK for the siglab-server HTTP API.
package siglab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Params selects a strategy and its parameters. Zero fields take the
// server's defaults; a nil MeanRevZ does too, so a zero threshold can be
// requested explicitly.
type Params struct {
	Kind             string   `json:"kind"`
	SMAFast          int      `json:"sma_fast,omitempty"`
	SMASlow          int      `json:"sma_slow,omitempty"`
	MomentumLookback int      `json:"momentum_lb,omitempty"`
	MeanRevLookback  int      `json:"meanrev_lb,omitempty"`
	MeanRevZ         *float64 `json:"meanrev_z,omitempty"`
	BreakoutLookback int      `json:"breakout_lb,omitempty"`
}

// BacktestRequest asks the server to backtest one symbol. Start and End are
// optional YYYY-MM-DD dates.
type BacktestRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Params Params `json:"params"`
}

// Metrics summarizes a backtest. The server sends null for a metric that is
// not finite; it decodes as NaN.
type Metrics struct {
	TotalReturn float64 `json:"TotalReturn"`
	CAGR        float64 `json:"CAGR"`
	MaxDrawdown float64 `json:"MaxDrawdown"`
	Sharpe      float64 `json:"Sharpe"`
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	var aux struct {
		TotalReturn *float64 `json:"TotalReturn"`
		CAGR        *float64 `json:"CAGR"`
		MaxDrawdown *float64 `json:"MaxDrawdown"`
		Sharpe      *float64 `json:"Sharpe"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Metrics{
		TotalReturn: orNaN(aux.TotalReturn),
		CAGR:        orNaN(aux.CAGR),
		MaxDrawdown: orNaN(aux.MaxDrawdown),
		Sharpe:      orNaN(aux.Sharpe),
	}
	return nil
}

// EquityPoint is one bar of the equity curve. Signal is nil during warm-up.
type EquityPoint struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	Signal   *int    `json:"signal"`
	StratRet float64 `json:"strat_ret"`
	Equity   float64 `json:"equity"`
}

// BacktestResult is the server's response to a backtest.
type BacktestResult struct {
	Symbol   string        `json:"symbol"`
	Strategy string        `json:"strategy"`
	Params   Params        `json:"params"`
	Metrics  Metrics       `json:"metrics"`
	RunID    int64         `json:"run_id,omitempty"`
	Equity   []EquityPoint `json:"equity"`
}

// Run is a recorded backtest. Null metrics decode as NaN.
type Run struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Params      string    `json:"params"`
	Bars        int       `json:"bars"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	TotalReturn float64   `json:"total_return"`
	CAGR        float64   `json:"cagr"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Sharpe      float64   `json:"sharpe"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *Run) UnmarshalJSON(data []byte) error {
	type plain Run
	aux := struct {
		*plain
		TotalReturn *float64 `json:"total_return"`
		CAGR        *float64 `json:"cagr"`
		MaxDrawdown *float64 `json:"max_drawdown"`
		Sharpe      *float64 `json:"sharpe"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.TotalReturn = orNaN(aux.TotalReturn)
	r.CAGR = orNaN(aux.CAGR)
	r.MaxDrawdown = orNaN(aux.MaxDrawdown)
	r.Sharpe = orNaN(aux.Sharpe)
	return nil
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("siglab: %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the siglab-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new siglab API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Strategies lists the strategy kinds the server supports.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Symbols lists the symbols with stored bars.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/symbols", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// Backtest runs a backtest on the server.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var resp BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Runs returns up to limit recorded runs, newest first. A limit of zero
// uses the server default.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/v1/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
