// Package priceload is a CSV-backed builder that satisfies the evaluation
// engine's PriceTable contract. It is the only on-disk-to-in-memory bridge
// the engine depends on; nothing upstream of PriceTable knows this adapter
// exists.
package priceload

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chidi150c/flowbacktest/internal/engine"
)

var nan = math.NaN()

// row is one parsed CSV line prior to calendar alignment.
type row struct {
	date                             time.Time
	open, high, low, close, adj, vol float64
}

// loadTickerCSV reads one ticker's CSV file with headers Date, Open, High,
// Low, Close, Adj Close, Volume (case-insensitive, order-independent),
// following the teacher's loadCSV convention in backtest.go: unknown
// columns ignored, headers trimmed and lowercased, rows sorted ascending by
// date at the end.
func loadTickerCSV(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("priceload: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []row
	var headers []string
	rowIdx := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("priceload: read %s: %w", path, err)
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		fields := map[string]string{}
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				fields[k] = strings.TrimSpace(rec[j])
			}
		}
		dateStr := firstNonEmpty(fields, "date", "time", "timestamp")
		closeStr := firstNonEmpty(fields, "close")
		if dateStr == "" || closeStr == "" {
			continue
		}
		d, err := parseDateFlexible(dateStr)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(firstNonEmpty(fields, "open"), 64)
		high, _ := strconv.ParseFloat(firstNonEmpty(fields, "high"), 64)
		low, _ := strconv.ParseFloat(firstNonEmpty(fields, "low"), 64)
		cl, _ := strconv.ParseFloat(closeStr, 64)
		vol, _ := strconv.ParseFloat(firstNonEmpty(fields, "volume", "vol"), 64)
		adjStr := firstNonEmpty(fields, "adj close", "adj_close", "adjclose")
		adj := cl
		if adjStr != "" {
			if v, err := strconv.ParseFloat(adjStr, 64); err == nil {
				adj = v
			}
		}
		out = append(out, row{date: d, open: open, high: high, low: low, close: cl, adj: adj, vol: vol})
		rowIdx++
	}

	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out, nil
}

// parseDateFlexible accepts RFC3339 timestamps, bare "2006-01-02" dates, or
// UNIX seconds, matching the teacher's parseTimeFlexible plus a calendar-date
// fast path (backtest.go).
func parseDateFlexible(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad date: %s", s)
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// LoadDir builds a PriceTable from a directory of per-ticker CSV files,
// each named "<TICKER>.csv". The calendar is the sorted union of every
// file's dates; a ticker missing a given date is NaN-filled there.
//
// Tickers in `optional` (the benchmark, typically) are loaded when their
// file exists and silently skipped when it doesn't, so a missing benchmark
// series degrades to a flat benchmark curve instead of failing the request.
func LoadDir(dir string, tickers []string, optional ...string) (*engine.PriceTable, error) {
	required := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		required[t] = struct{}{}
	}
	for _, t := range optional {
		if t == "" {
			continue
		}
		if _, dup := required[t]; dup {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, t+".csv")); err != nil {
			continue
		}
		tickers = append(tickers, t)
	}

	perTicker := make(map[string][]row, len(tickers))
	dateSet := make(map[string]struct{})

	for _, ticker := range tickers {
		path := filepath.Join(dir, ticker+".csv")
		rows, err := loadTickerCSV(path)
		if err != nil {
			return nil, err
		}
		perTicker[ticker] = rows
		for _, r := range rows {
			dateSet[r.date.Format("2006-01-02")] = struct{}{}
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	pt := engine.NewPriceTable(dates)
	for _, ticker := range tickers {
		rows := perTicker[ticker]
		byDate := make(map[string]row, len(rows))
		for _, r := range rows {
			byDate[r.date.Format("2006-01-02")] = r
		}
		open := nanFill(len(dates))
		high := nanFill(len(dates))
		low := nanFill(len(dates))
		close_ := nanFill(len(dates))
		adj := nanFill(len(dates))
		vol := nanFill(len(dates))
		for i, d := range dates {
			if r, ok := byDate[d]; ok {
				open[i], high[i], low[i], close_[i], adj[i], vol[i] = r.open, r.high, r.low, r.close, r.adj, r.vol
			}
		}
		pt.AddTicker(ticker, open, high, low, close_, adj, vol)
	}
	return pt, nil
}

func nanFill(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}
