// FILE: main.go
// Package main – Program entrypoint for the flow backtester.
//
// Boot sequence:
//   1) config.LoadDotEnv()  – read .env (no shell exports required)
//   2) cfg := config.Load() – build runtime Config
//   3) start HTTP server with /api/backtest, /healthz, /metrics
//      OR run one batch backtest from flags and print the result, exit
//
// Flags:
//   -payload <file>   Path to a JSON strategy tree (one FlowNode)
//   -prices <dir>     Price CSV directory (overrides PRICE_DATA_DIR)
//   -mode <CC|OO|OC|CO>  Decision/indicator lag mode (overrides DEFAULT_MODE)
//   -cost-bps <f>     Turnover cost in basis points
//   -serve            Run the HTTP server instead of a one-shot batch run
//
// Example:
//   flowbacktest -payload strategy.json -prices ./data/prices -mode CC
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/chidi150c/flowbacktest/internal/config"
	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/chidi150c/flowbacktest/internal/httpapi"
	"github.com/chidi150c/flowbacktest/internal/priceload"
)

func main() {
	os.Exit(run())
}

func run() int {
	var payloadPath, pricesDir, mode string
	var costBps float64
	var serve bool
	flag.StringVar(&payloadPath, "payload", "", "Path to a JSON strategy tree")
	flag.StringVar(&pricesDir, "prices", "", "Price CSV directory (overrides PRICE_DATA_DIR)")
	flag.StringVar(&mode, "mode", "", "Decision/indicator lag mode: CC, OO, OC, or CO")
	flag.Float64Var(&costBps, "cost-bps", -1, "Turnover cost in basis points")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP server instead of a batch run")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	if pricesDir != "" {
		cfg.PriceDataDir = pricesDir
	}
	if mode != "" {
		cfg.DefaultMode = mode
	}
	if costBps >= 0 {
		cfg.DefaultCostBps = costBps
	}

	if serve {
		return runServer(cfg)
	}
	if payloadPath == "" {
		fmt.Fprintln(os.Stderr, "flowbacktest: -payload is required in batch mode (or pass -serve)")
		return 1
	}
	return runBatch(cfg, payloadPath)
}

func runServer(cfg config.Config) int {
	srv := httpapi.NewServer(cfg)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv}

	go func() {
		log.Printf("flowbacktest: serving on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("flowbacktest: server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = httpSrv.Shutdown(shutdownCtx)
	return 0
}

// runBatch reads a strategy tree directly from -payload (no double
// encoding, unlike the HTTP surface's JSON-string-in-JSON envelope — the
// CLI's -mode/-cost-bps flags already carry what the envelope's mode/
// cost_bps fields do over HTTP) and prints the backtest response to
// stdout.
func runBatch(cfg config.Config, payloadPath string) int {
	f, err := os.Open(payloadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowbacktest: open payload: %v\n", err)
		return 1
	}
	defer f.Close()

	var root engine.FlowNode
	if err := goccyjson.NewDecoder(f).Decode(&root); err != nil {
		fmt.Fprintf(os.Stderr, "flowbacktest: parse payload: %v\n", err)
		return 1
	}

	tickers, _, _, _ := engine.CollectTickers(&root)
	db, err := priceload.LoadDir(cfg.PriceDataDir, tickers, cfg.BenchmarkTicker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowbacktest: load prices: %v\n", err)
		return 1
	}

	result, err := engine.RunBacktest(&root, db, engine.WalkConfig{
		Mode: engine.Mode(cfg.DefaultMode), CostBps: cfg.DefaultCostBps, BenchmarkTicker: cfg.BenchmarkTicker,
		MaxBranchDepth: cfg.MaxBranchDepth,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowbacktest: backtest failed: %v\n", err)
		return 1
	}

	enc := goccyjson.NewEncoder(os.Stdout)
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "flowbacktest: encode result: %v\n", err)
		return 1
	}
	return 0
}
