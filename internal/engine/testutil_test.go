package engine_test

import (
	"fmt"
	"time"

	"github.com/chidi150c/flowbacktest/internal/engine"
)

// genDates returns n consecutive ISO-8601 calendar dates starting at the
// given year/month/day. Tests don't need real trading calendars, only a
// sorted unique sequence.
func genDates(n int, start string) []string {
	t, err := time.Parse("2006-01-02", start)
	if err != nil {
		panic(err)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = t.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

// constSeries returns a flat n-length series of v.
func constSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// buildTable constructs a PriceTable with a single OHLCV series per ticker
// (high/low/open copied from close, adj-close defaulted to close).
func buildTable(dates []string, closes map[string][]float64) *engine.PriceTable {
	pt := engine.NewPriceTable(dates)
	for ticker, series := range closes {
		if len(series) != len(dates) {
			panic(fmt.Sprintf("%s: series length %d != dates length %d", ticker, len(series), len(dates)))
		}
		vol := make([]float64, len(series))
		for i := range vol {
			vol[i] = 1000
		}
		pt.AddTicker(ticker, series, series, series, series, nil, vol)
	}
	return pt
}

// linearSeries returns close[i] = base + i.
func linearSeries(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i)
	}
	return out
}

// posNode builds a Position leaf node.
func posNode(id string, tickers ...string) *engine.FlowNode {
	return &engine.FlowNode{ID: id, Kind: engine.KindPosition, Tickers: tickers}
}
