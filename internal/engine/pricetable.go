package engine

import "math"

// PriceTable is the date-aligned, per-ticker OHLCV store the engine
// consumes (C1). Callers build it once per request from an external store
// (see internal/priceload for the CSV adapter); it is read-only thereafter.
type PriceTable struct {
	Dates  []string // sorted, unique, ISO-8601 "2006-01-02"
	series map[string]*tickerSeries
}

type tickerSeries struct {
	Open, High, Low, Close, AdjClose, Volume []float64
}

// NewPriceTable builds an empty table over the given calendar.
func NewPriceTable(dates []string) *PriceTable {
	return &PriceTable{Dates: dates, series: make(map[string]*tickerSeries)}
}

// AddTicker registers a ticker's parallel arrays. Every array must have
// length len(pt.Dates); missing days must already be NaN-filled by the
// caller per the build-time contract (§4.1). AdjClose may be nil, in which
// case AdjClose() falls back to Close.
func (pt *PriceTable) AddTicker(ticker string, open, high, low, close_, adjClose, volume []float64) {
	if adjClose == nil {
		adjClose = close_
	}
	pt.series[ticker] = &tickerSeries{
		Open: open, High: high, Low: low, Close: close_, AdjClose: adjClose, Volume: volume,
	}
}

// Len returns the number of trading days in the calendar.
func (pt *PriceTable) Len() int { return len(pt.Dates) }

// HasTicker reports whether ticker is registered.
func (pt *PriceTable) HasTicker(ticker string) bool {
	_, ok := pt.series[ticker]
	return ok
}

func optionAt(arr []float64, i int) (float64, bool) {
	if arr == nil || i < 0 || i >= len(arr) {
		return 0, false
	}
	v := arr[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Open returns open(ticker, i), or (0, false) if unavailable.
func (pt *PriceTable) Open(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	return optionAt(s.Open, i)
}

// High returns high(ticker, i).
func (pt *PriceTable) High(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	return optionAt(s.High, i)
}

// Low returns low(ticker, i).
func (pt *PriceTable) Low(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	return optionAt(s.Low, i)
}

// Close returns close(ticker, i).
func (pt *PriceTable) Close(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	return optionAt(s.Close, i)
}

// AdjClose returns adj_close(ticker, i), falling back to Close when the
// dedicated series has no value at i.
func (pt *PriceTable) AdjClose(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	if v, ok := optionAt(s.AdjClose, i); ok {
		return v, true
	}
	return optionAt(s.Close, i)
}

// Volume returns volume(ticker, i).
func (pt *PriceTable) Volume(ticker string, i int) (float64, bool) {
	s, ok := pt.series[ticker]
	if !ok {
		return 0, false
	}
	return optionAt(s.Volume, i)
}

// CloseSeries returns the raw close array for ticker, or nil.
func (pt *PriceTable) CloseSeries(ticker string) []float64 {
	s, ok := pt.series[ticker]
	if !ok {
		return nil
	}
	return s.Close
}

// HighSeries returns the raw high array for ticker, or nil.
func (pt *PriceTable) HighSeries(ticker string) []float64 {
	s, ok := pt.series[ticker]
	if !ok {
		return nil
	}
	return s.High
}

// LowSeries returns the raw low array for ticker, or nil.
func (pt *PriceTable) LowSeries(ticker string) []float64 {
	s, ok := pt.series[ticker]
	if !ok {
		return nil
	}
	return s.Low
}

// VolumeSeries returns the raw volume array for ticker, or nil.
func (pt *PriceTable) VolumeSeries(ticker string) []float64 {
	s, ok := pt.series[ticker]
	if !ok {
		return nil
	}
	return s.Volume
}

// AdjCloseSeries returns the effective adj-close array for ticker (falling
// back element-wise to Close where AdjClose is NaN), or nil if the ticker
// is unknown.
func (pt *PriceTable) AdjCloseSeries(ticker string) []float64 {
	s, ok := pt.series[ticker]
	if !ok {
		return nil
	}
	out := make([]float64, len(s.Close))
	for i := range out {
		if !math.IsNaN(s.AdjClose[i]) {
			out[i] = s.AdjClose[i]
		} else {
			out[i] = s.Close[i]
		}
	}
	return out
}

// FirstValidIndex returns the smallest index at which every ticker in
// tickers has a non-NaN close, or -1 if no such index exists (e.g. an
// unknown ticker, or the calendar never aligns).
func (pt *PriceTable) FirstValidIndex(tickers []string) int {
	for i := 0; i < pt.Len(); i++ {
		allValid := true
		for _, t := range tickers {
			if _, ok := pt.Close(t, i); !ok {
				allValid = false
				break
			}
		}
		if allValid {
			return i
		}
	}
	return -1
}
