// FILE: config.go
// Package config – Runtime configuration model and loader, in the exact
// shape of the teacher's config.go/env.go pair: a Config struct, an
// env-var-driven loader with sane defaults, and a dependency-free .env file
// reader. Nothing here needs a config library (viper etc.) since the
// teacher never reaches for one.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime knobs for the backtest HTTP/CLI surface (§10.2).
type Config struct {
	ListenAddr      string
	DefaultMode     string
	DefaultCostBps  float64
	PriceDataDir    string
	BenchmarkTicker string
	MaxBranchDepth  int
	RequestTimeout  time.Duration
}

// Load reads the process env (after LoadDotEnv has hydrated it) and returns
// a Config with sane defaults if keys are missing.
func Load() Config {
	return Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DefaultMode:     getEnv("DEFAULT_MODE", "CC"),
		DefaultCostBps:  getEnvFloat("DEFAULT_COST_BPS", 5.0),
		PriceDataDir:    getEnv("PRICE_DATA_DIR", "./data/prices"),
		BenchmarkTicker: getEnv("BENCHMARK_TICKER", "SPY"),
		MaxBranchDepth:  getEnvInt("MAX_BRANCH_DEPTH", 10),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// --------- Env helpers (ground: env.go) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- Lightweight .env loader (ground: env.go loadBotEnv) ---------

var envKeys = map[string]struct{}{
	"LISTEN_ADDR": {}, "DEFAULT_MODE": {}, "DEFAULT_COST_BPS": {}, "PRICE_DATA_DIR": {},
	"BENCHMARK_TICKER": {}, "MAX_BRANCH_DEPTH": {}, "REQUEST_TIMEOUT_SECONDS": {},
}

// LoadDotEnv reads .env from "." and ".." and sets only the keys this
// service needs, without overriding variables already present in the
// environment (ground: env.go's loadBotEnv).
func LoadDotEnv() {
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := envKeys[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
