package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"siglab/internal/backtest"
	"siglab/internal/domain"
	"siglab/internal/store"
	"siglab/internal/strategy"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// BacktestServer serves the backtest HTTP API.
type BacktestServer struct {
	runner *backtest.Runner
	bars   store.BarStore
	runs   store.RunStore // nil when run recording is disabled
	log    *slog.Logger
}

// NewBacktestServer creates a new backtest HTTP server.
func NewBacktestServer(runner *backtest.Runner, bars store.BarStore, runs store.RunStore, log *slog.Logger) *BacktestServer {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestServer{runner: runner, bars: bars, runs: runs, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *BacktestServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("POST /api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
}

// Handler returns an http.Handler with CORS middleware.
func (s *BacktestServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v before touching w, so an encoding failure still
// produces a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusFor maps runner errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, strategy.ErrUnknownKind),
		errors.Is(err, strategy.ErrInvalidParam),
		errors.Is(err, domain.ErrUnsorted):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrNoBars), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *BacktestServer) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{
		Strategies: s.runner.Registry().List(),
		Defaults:   strategy.DefaultParams(),
	})
}

func (s *BacktestServer) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.bars.ListSymbols(r.Context())
	if err != nil {
		s.log.Error("listing symbols", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *BacktestServer) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var body BacktestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}

	rep, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.log.Error("backtest failed", "symbol", body.Symbol, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, toBacktestResponse(rep))
}

func (s *BacktestServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, RunsResponse{Runs: []store.RunRecord{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *BacktestServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history not configured")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, run)
}
