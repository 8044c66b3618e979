package engine

import (
	"fmt"
	"math"
)

// IndicatorCache memoizes per-(metric, ticker-expr, window) series over the
// lifetime of one request (C2). It is not safe for concurrent use from
// multiple requests; each request constructs its own cache (§5).
type IndicatorCache struct {
	db *PriceTable

	series map[string][]float64 // keyed by normalizeMetricName+":"+ticker+":"+window
	derive map[string]*derivedSeries
}

type derivedSeries struct {
	close, high, low, volume []float64
}

// NewIndicatorCache constructs a cache bound to the given price table.
func NewIndicatorCache(db *PriceTable) *IndicatorCache {
	return &IndicatorCache{
		db:     db,
		series: make(map[string][]float64),
		derive: make(map[string]*derivedSeries),
	}
}

// normalizeMetricName maps a human metric name to a fixed short code, the
// single source of truth for cache keys (ground: indicators.rs's
// normalize_metric_name).
func normalizeMetricName(metric string) string {
	switch metric {
	case "Date", "CurrentPrice", "Price":
		return metric
	case "SMA":
		return "sma"
	case "EMA":
		return "ema"
	case "RSI":
		return "rsi"
	case "LaguerreRSI":
		return "lrsi"
	case "ROC":
		return "roc"
	case "StdDev":
		return "stddev"
	case "BollingerPctB", "PercentB":
		return "pctb"
	case "PriceVsSMA":
		return "pvsma"
	case "MaxDrawdown":
		return "mdd"
	case "MACD":
		return "macd"
	case "PPOHist":
		return "ppohist"
	case "DEMA":
		return "dema"
	case "TEMA":
		return "tema"
	case "KAMA":
		return "kama"
	case "momentum_13612w":
		return "m13612w"
	case "momentum_13612u":
		return "m13612u"
	case "sma12_momentum":
		return "sma12m"
	case "Volume":
		return "volume"
	case "High":
		return "high"
	case "Low":
		return "low"
	default:
		return metric
	}
}

// Lookback returns the minimum number of trailing bars a metric needs before
// it produces a non-NaN value, per SPEC_FULL §4.2's table.
func Lookback(metric string, window int) int {
	switch normalizeMetricName(metric) {
	case "Date", "CurrentPrice", "Price":
		return 0
	case "m13612w", "m13612u", "sma12m":
		return 252
	case "macd", "ppohist":
		return 35
	case "dema":
		return 2 * window
	case "tema":
		return 3 * window
	case "kama":
		return window + 30
	case "lrsi":
		return 10
	default:
		if window < 1 {
			return 1
		}
		return window
	}
}

// effectiveSeries resolves the close/high/low/volume arrays for a ticker
// expression, materializing and caching a ratio ticker's derived arrays on
// first use (§4.2: ratio tickers receive ratio-of-closes as inputs to all of
// close/high/low, a documented approximation).
func (c *IndicatorCache) effectiveSeries(ticker string) (close_, high, low, volume []float64, ok bool) {
	if num, den, isRatio := ParseRatioTicker(ticker); isRatio {
		if d, cached := c.derive[ticker]; cached {
			return d.close, d.close, d.close, nil, true
		}
		numClose, numOK := c.db.CloseSeries(num), c.db.HasTicker(num)
		denClose, denOK := c.db.CloseSeries(den), c.db.HasTicker(den)
		if !numOK || !denOK {
			return nil, nil, nil, nil, false
		}
		ratio := make([]float64, c.db.Len())
		for i := range ratio {
			n, d := numClose[i], denClose[i]
			if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
				ratio[i] = math.NaN()
			} else {
				ratio[i] = n / d
			}
		}
		c.derive[ticker] = &derivedSeries{close: ratio}
		return ratio, ratio, ratio, nil, true
	}
	if !c.db.HasTicker(ticker) {
		return nil, nil, nil, nil, false
	}
	return c.db.CloseSeries(ticker), c.db.HighSeries(ticker), c.db.LowSeries(ticker), c.db.VolumeSeries(ticker), true
}

// compute materializes the full series for (metric, ticker, window),
// dispatching to the formula library (ground: indicators.rs's
// compute_indicator match statement).
func (c *IndicatorCache) compute(metric, ticker string, window int) ([]float64, bool) {
	close_, high, low, volume, ok := c.effectiveSeries(ticker)
	if !ok {
		return nil, false
	}
	switch normalizeMetricName(metric) {
	case "Date":
		return nil, false // date predicates are handled by the condition evaluator directly
	case "CurrentPrice", "Price":
		return close_, true
	case "sma":
		return SMA(close_, window), true
	case "ema":
		return EMA(close_, window), true
	case "rsi":
		return RSI(close_, window), true
	case "lrsi":
		return LaguerreRSI(close_), true
	case "roc":
		return ROC(close_, window), true
	case "stddev":
		return StdDev(close_, window), true
	case "pctb":
		return BollingerPctB(close_, window), true
	case "pvsma":
		return PriceVsSMA(close_, window), true
	case "mdd":
		return MaxDrawdown(close_, window), true
	case "macd":
		fast, slow := window, windowToSlow(window)
		return MACD(close_, fast, slow), true
	case "ppohist":
		return PPOHist(close_), true
	case "dema":
		return DEMA(close_, window), true
	case "tema":
		return TEMA(close_, window), true
	case "kama":
		return KAMA(close_, window), true
	case "m13612w":
		return Momentum13612W(close_), true
	case "m13612u":
		return Momentum13612U(close_), true
	case "sma12m":
		return SMA12Momentum(close_), true
	case "volume":
		return volume, volume != nil
	case "high":
		return high, true
	case "low":
		return low, true
	default:
		return nil, false
	}
}

// windowToSlow derives MACD's slow period from its configured fast window
// using the canonical 12/26 ratio when window==12, else doubling it.
func windowToSlow(fast int) int {
	if fast == 12 {
		return 26
	}
	return fast * 2
}

// MetricAt is C2's contract: metric_at(ticker, metric, window, i) -> value,
// present. It returns (0, false) iff the ticker is missing or the computed
// value at i is NaN.
func (c *IndicatorCache) MetricAt(ticker, metric string, window, i int) (float64, bool) {
	if i < 0 || i >= c.db.Len() {
		return 0, false
	}
	key := fmt.Sprintf("%s:%s:%d", normalizeMetricName(metric), ticker, window)
	series, cached := c.series[key]
	if !cached {
		var ok bool
		series, ok = c.compute(metric, ticker, window)
		if !ok {
			c.series[key] = nil
			return 0, false
		}
		c.series[key] = series
	}
	if series == nil {
		return 0, false
	}
	v := series[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Series returns the full-length materialized series for (metric, ticker,
// window), reusing and populating the same memo the scalar MetricAt path
// uses. The Vectorized Engine (C8) uses this instead of per-index MetricAt
// calls to build its whole-series boolean signals (§4.8 step 1).
func (c *IndicatorCache) Series(ticker, metric string, window int) ([]float64, bool) {
	key := fmt.Sprintf("%s:%s:%d", normalizeMetricName(metric), ticker, window)
	series, cached := c.series[key]
	if !cached {
		var ok bool
		series, ok = c.compute(metric, ticker, window)
		if !ok {
			c.series[key] = nil
			return nil, false
		}
		c.series[key] = series
	}
	if series == nil {
		return nil, false
	}
	return series, true
}

// ReturnsSeries returns the daily fractional-return series for a ticker
// expression (used by the Weighting Engine's volatility calculations and by
// Branch Equity's StdDev-of-returns queries).
func (c *IndicatorCache) ReturnsSeries(ticker string) []float64 {
	close_, _, _, _, ok := c.effectiveSeries(ticker)
	if !ok {
		return nil
	}
	out := nanSlice(len(close_))
	for i := 1; i < len(close_); i++ {
		a, b := close_[i], close_[i-1]
		if !math.IsNaN(a) && !math.IsNaN(b) && b != 0 {
			out[i] = a/b - 1
		}
	}
	return out
}
