// Package httpapi is the HTTP surface for the backtest engine: a JSON
// POST endpoint plus the teacher's /healthz and /metrics mux pattern
// (main.go), using goccy/go-json for the request/response codec.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	goccyjson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/chidi150c/flowbacktest/internal/config"
	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/chidi150c/flowbacktest/internal/priceload"
	"github.com/chidi150c/flowbacktest/internal/telemetry"
)

// CustomIndicator is accepted and ignored, reserved for a future indicator
// registry.
type CustomIndicator struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Formula   string `json:"formula"`
	CreatedAt string `json:"created_at,omitempty"`
}

// BacktestRequest is the wire shape of a POST /api/backtest body. Payload
// is the strategy tree, itself JSON, carried as a string (double-encoded)
// rather than a nested object, matching the documented external interface.
// Its fields follow the engine's own snake_case struct tags (FlowNode et
// al.) rather than re-tagging the whole tree for this one surface.
type BacktestRequest struct {
	Payload          string            `json:"payload"`
	Mode             string            `json:"mode"`
	CostBps          float64           `json:"cost_bps"`
	CustomIndicators []CustomIndicator `json:"custom_indicators,omitempty"`
}

// Server wires the engine, price adapter, and config together behind an
// http.Handler. Grounded in the teacher's flat main.go mux, split into a
// constructible type instead of package-level globals.
type Server struct {
	cfg config.Config
	mux *http.ServeMux
}

// NewServer builds the mux: POST /api/backtest, GET /healthz, GET /metrics.
func NewServer(cfg config.Config) *Server {
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/backtest", s.handleBacktest)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BacktestRequest
	if err := goccyjson.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Payload == "" {
		http.Error(w, "bad request: payload is required", http.StatusBadRequest)
		return
	}

	var root engine.FlowNode
	if err := goccyjson.Unmarshal([]byte(req.Payload), &root); err != nil {
		http.Error(w, "bad request: payload is not a valid strategy tree: "+err.Error(), http.StatusBadRequest)
		return
	}

	mode := engine.Mode(req.Mode)
	if mode == "" {
		mode = engine.Mode(s.cfg.DefaultMode)
	}
	costBps := req.CostBps
	if costBps == 0 {
		costBps = s.cfg.DefaultCostBps
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	tickers, _, _, _ := engine.CollectTickers(&root)
	db, err := priceload.LoadDir(s.cfg.PriceDataDir, tickers, s.cfg.BenchmarkTicker)
	if err != nil {
		http.Error(w, "price load failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := s.runWithBenchmark(ctx, &root, db, mode, costBps)
	if err != nil {
		http.Error(w, "backtest failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := goccyjson.NewEncoder(w).Encode(result); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

// runWithBenchmark runs the primary strategy backtest and a standalone
// buy-and-hold backtest on the configured benchmark ticker concurrently
// via errgroup — two independent Walk/Vectorized Engine invocations, each
// with its own IndicatorCache and eval context over the shared read-only
// PriceTable, so no mutable state crosses the goroutines. The benchmark
// run's own metrics are folded into the primary result's Markers (the
// wire response stays the flat shape described for the external
// interface); the primary run's own buildBenchmark curve still supplies
// BenchmarkCurve. A benchmark ticker with no data in the table skips the
// benchmark run rather than failing the whole request.
func (s *Server) runWithBenchmark(ctx context.Context, root *engine.FlowNode, db *engine.PriceTable, mode engine.Mode, costBps float64) (*engine.Result, error) {
	g, _ := errgroup.WithContext(ctx)
	var primary, benchmark *engine.Result

	g.Go(func() error {
		start := time.Now()
		result, err := engine.RunBacktest(root, db, engine.WalkConfig{Mode: mode, CostBps: costBps, BenchmarkTicker: s.cfg.BenchmarkTicker, MaxBranchDepth: s.cfg.MaxBranchDepth})
		if err != nil {
			return err
		}
		telemetry.RequestsTotal.WithLabelValues(result.Engine).Inc()
		telemetry.RequestDuration.WithLabelValues(result.Engine).Observe(time.Since(start).Seconds())
		telemetry.ObserveWarnings("strategy", len(result.Warnings))
		telemetry.BranchCacheHitsTotal.Add(float64(result.BranchCacheHits))
		primary = result
		return nil
	})

	if db.HasTicker(s.cfg.BenchmarkTicker) {
		g.Go(func() error {
			benchRoot := &engine.FlowNode{ID: "benchmark", Kind: engine.KindPosition, Tickers: []string{s.cfg.BenchmarkTicker}}
			result, err := engine.RunBacktest(benchRoot, db, engine.WalkConfig{Mode: mode, CostBps: 0, BenchmarkTicker: s.cfg.BenchmarkTicker})
			if err != nil {
				return err
			}
			telemetry.ObserveWarnings("benchmark", len(result.Warnings))
			benchmark = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if benchmark != nil {
		primary.Markers = append(primary.Markers,
			fmt.Sprintf("benchmark_cagr=%.6f", benchmark.Metrics.CAGR),
			fmt.Sprintf("benchmark_sharpe=%.6f", benchmark.Metrics.Sharpe),
			fmt.Sprintf("benchmark_max_drawdown=%.6f", benchmark.Metrics.MaxDrawdown),
		)
	} else {
		primary.Warnings = append(primary.Warnings, "benchmark ticker "+s.cfg.BenchmarkTicker+" has no price data; benchmark run skipped")
	}
	return primary, nil
}
