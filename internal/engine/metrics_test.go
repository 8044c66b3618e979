package engine_test

import (
	"testing"

	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/stretchr/testify/assert"
)

// TestComputeMetricsFlatReturnsAreBenign verifies a zero-return series
// produces zero CAGR/vol/drawdown and a defined (non-NaN) result overall.
func TestComputeMetricsFlatReturnsAreBenign(t *testing.T) {
	n := 253
	dates := genDates(n, "2021-01-01")
	returns := make([]float64, n) // all zero, including the day-0 placeholder
	equity := make([]float64, n)
	bench := make([]float64, n)
	holdings := make([]int, n)
	turnover := make([]float64, n)
	for i := range equity {
		equity[i] = 1.0
	}

	m := engine.ComputeMetrics(dates, returns, equity, bench, holdings, turnover, 0)
	assert.Equal(t, n-1, m.Days)
	assert.InDelta(t, 0, m.TotalReturn, 1e-9)
	assert.InDelta(t, 0, m.CAGR, 1e-9)
	assert.InDelta(t, 0, m.Vol, 1e-9)
	assert.InDelta(t, 0, m.MaxDrawdown, 1e-9)
	assert.Equal(t, dates[0], m.StartDate)
	assert.Equal(t, dates[n-1], m.EndDate)
}

// TestComputeMetricsMaxDrawdownNonPositive verifies MaxDrawdown is always <=
// 0, the convention the rest of the engine (drawdownCurve) relies on.
func TestComputeMetricsMaxDrawdownNonPositive(t *testing.T) {
	n := 260
	dates := genDates(n, "2021-01-01")
	returns := make([]float64, n)
	equity := make([]float64, n)
	equity[0] = 1
	current := 1.0
	for i := 1; i < n; i++ {
		r := 0.01
		if i%20 == 0 {
			r = -0.15 // periodic drawdown
		}
		returns[i] = r
		current *= 1 + r
		equity[i] = current
	}
	bench := make([]float64, n)
	holdings := make([]int, n)
	turnover := make([]float64, n)

	m := engine.ComputeMetrics(dates, returns, equity, bench, holdings, turnover, 0)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
	assert.Less(t, m.MaxDrawdown, -0.01, "periodic 15%% drops should register a material drawdown")
}

// TestComputeMetricsWinRateCountsPositiveDays verifies WinRate is the
// fraction of strictly-positive-return days among the observed (post day-0)
// series.
func TestComputeMetricsWinRateCountsPositiveDays(t *testing.T) {
	dates := genDates(5, "2021-01-01")
	returns := []float64{0, 0.01, -0.01, 0.02, 0} // 2 of 4 observed days are > 0
	equity := []float64{1, 1.01, 1.0, 1.02, 1.02}
	bench := make([]float64, 5)
	holdings := make([]int, 5)
	turnover := make([]float64, 5)

	m := engine.ComputeMetrics(dates, returns, equity, bench, holdings, turnover, 0)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 0.02, m.BestDay, 1e-9)
	assert.InDelta(t, -0.01, m.WorstDay, 1e-9)
}

// TestComputeMetricsTrimsWarmupPrefix verifies the warmup days before
// startIndex are excluded from every aggregate: day counts, win rate, and
// the turnover/holdings averages all read the observed window only, and
// StartDate is the first trading date rather than the first data date.
func TestComputeMetricsTrimsWarmupPrefix(t *testing.T) {
	n := 300
	startIndex := 250
	dates := genDates(n, "2021-01-01")
	returns := make([]float64, n)
	equity := make([]float64, n)
	bench := make([]float64, n)
	holdings := make([]int, n)
	turnover := make([]float64, n)
	current := 1.0
	for i := 0; i < n; i++ {
		if i > startIndex {
			returns[i] = 0.01
			holdings[i] = 2
			turnover[i] = 0.1
		}
		current *= 1 + returns[i]
		equity[i] = current
	}

	m := engine.ComputeMetrics(dates, returns, equity, bench, holdings, turnover, startIndex)
	assert.Equal(t, n-1-startIndex, m.Days)
	assert.Equal(t, dates[startIndex], m.StartDate)
	assert.Equal(t, dates[n-1], m.EndDate)
	assert.InDelta(t, 1.0, m.WinRate, 1e-9, "every observed day is positive; warmup zeros must not dilute the rate")
	assert.InDelta(t, 0.1, m.AvgTurnover, 1e-9)
	assert.InDelta(t, 2.0, m.AvgHoldings, 1e-9)
	assert.InDelta(t, float64(n-1-startIndex)/252.0, m.Years, 1e-9)
}
