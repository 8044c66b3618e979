package engine

import "math"

// This file is the indicator formula library spec.md treats as a black-box
// callable (`indicator(name, window, series...) -> series`). It follows the
// teacher's indicators.go convention (series-in, series-out, NaN for
// insufficient lookback, no allocation inside the hot loop where avoidable)
// and the naming/semantics of original_source/rust-indicators/src/{momentum,
// oscillators,moving_averages,trend,volatility}.rs, without claiming
// bit-for-bit numeric parity with the Rust originals (SPEC_FULL §1).

// SMA is the simple moving average of values over window n.
func SMA(values []float64, n int) []float64 {
	return rolling(values, n, meanOf)
}

// EMA is the exponential moving average, seeded with the SMA of the first n
// values (standard convention, matches the seeding momentum.rs uses for
// MACD's inputs).
func EMA(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if !hasEnoughData(len(values), n) {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seed := meanOf(values[:n])
	out[n-1] = seed
	prev := seed
	for i := n; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// DEMA applies EMA twice and combines, the standard double-EMA formula.
func DEMA(values []float64, n int) []float64 {
	e1 := EMA(values, n)
	e2 := emaOfSeries(e1, n)
	out := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(e1[i]) && !math.IsNaN(e2[i]) {
			out[i] = 2*e1[i] - e2[i]
		}
	}
	return out
}

// TEMA is the standard triple-EMA formula.
func TEMA(values []float64, n int) []float64 {
	e1 := EMA(values, n)
	e2 := emaOfSeries(e1, n)
	e3 := emaOfSeries(e2, n)
	out := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(e1[i]) && !math.IsNaN(e2[i]) && !math.IsNaN(e3[i]) {
			out[i] = 3*e1[i] - 3*e2[i] + e3[i]
		}
	}
	return out
}

// emaOfSeries applies EMA to a series that itself contains a leading run of
// NaN, re-seeding from the first non-NaN run of length n.
func emaOfSeries(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	start := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start < 0 || start+n > len(values) {
		return out
	}
	seed := meanOf(values[start : start+n])
	out[start+n-1] = seed
	prev := seed
	alpha := 2.0 / float64(n+1)
	for i := start + n; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI is Wilder's Relative Strength Index.
func RSI(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if !hasEnoughData(len(values), n+1) {
		return out
	}
	changes := diffOf(values)
	gains, losses := gainsLosses(changes)

	var avgGain, avgLoss float64
	for i := 0; i < n; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiFromAvg(avgGain, avgLoss)

	for i := n; i < len(changes); i++ {
		avgGain = (avgGain*float64(n-1) + gains[i]) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + losses[i]) / float64(n)
		out[i+1] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// LaguerreRSI is a low-lag RSI variant (lookback 10 per SPEC_FULL §4.2's
// table), computed with the standard fixed gamma=0.5 4-stage filter.
func LaguerreRSI(values []float64) []float64 {
	const gamma = 0.5
	out := nanSlice(len(values))
	if len(values) < 10 {
		return out
	}
	var l0, l1, l2, l3 float64
	for i, v := range values {
		l0p, l1p, l2p, l3p := l0, l1, l2, l3
		l0 = (1-gamma)*v + gamma*l0p
		l1 = -gamma*l0 + l0p + gamma*l1p
		l2 = -gamma*l1 + l1p + gamma*l2p
		l3 = -gamma*l2 + l2p + gamma*l3p
		if i < 9 {
			continue
		}
		cu, cd := 0.0, 0.0
		if l0 >= l1 {
			cu += l0 - l1
		} else {
			cd += l1 - l0
		}
		if l1 >= l2 {
			cu += l1 - l2
		} else {
			cd += l2 - l1
		}
		if l2 >= l3 {
			cu += l2 - l3
		} else {
			cd += l3 - l2
		}
		out[i] = safeDiv(cu, cu+cd) * 100
	}
	return out
}

// ROC is the n-period rate of change, as a fraction (not percent).
func ROC(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		if values[i-n] != 0 && !math.IsNaN(values[i-n]) && !math.IsNaN(values[i]) {
			out[i] = (values[i] - values[i-n]) / values[i-n]
		}
	}
	return out
}

// StdDev is the rolling population standard deviation of values over window n.
func StdDev(values []float64, n int) []float64 {
	return rolling(values, n, stdDevOf)
}

// BollingerPctB is %B: (price - lowerBand) / (upperBand - lowerBand), using
// a 2-standard-deviation band around the SMA.
func BollingerPctB(values []float64, n int) []float64 {
	sma := SMA(values, n)
	sd := StdDev(values, n)
	out := nanSlice(len(values))
	for i := range values {
		if math.IsNaN(sma[i]) || math.IsNaN(sd[i]) {
			continue
		}
		upper := sma[i] + 2*sd[i]
		lower := sma[i] - 2*sd[i]
		out[i] = safeDiv(values[i]-lower, upper-lower)
	}
	return out
}

// PriceVsSMA is price/SMA - 1, a fractional deviation from trend.
func PriceVsSMA(values []float64, n int) []float64 {
	sma := SMA(values, n)
	out := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(sma[i]) && sma[i] != 0 {
			out[i] = values[i]/sma[i] - 1
		}
	}
	return out
}

// MaxDrawdown is the rolling max drawdown (non-positive fraction) over
// window n, computed against the running peak within the window.
func MaxDrawdown(values []float64, n int) []float64 {
	return rolling(values, n, func(w []float64) float64 {
		peak := w[0]
		mdd := 0.0
		for _, v := range w {
			if v > peak {
				peak = v
			}
			if peak > 0 {
				dd := (v - peak) / peak
				if dd < mdd {
					mdd = dd
				}
			}
		}
		return mdd
	})
}

// MACD is the MACD line (fast EMA - slow EMA), seeded per momentum.rs's
// convention: the slow EMA is seeded from the SMA of the first `slow`
// closes, and the fast EMA is seeded from the SMA of the `fast` values
// ending at that same index (not from index 0), so both lines start
// reporting at the same bar.
func MACD(values []float64, fast, slow int) []float64 {
	out := nanSlice(len(values))
	if !hasEnoughData(len(values), slow) {
		return out
	}
	slowStart := slow - 1
	slowSeed := meanOf(values[0:slow])
	fastSeed := meanOf(values[slowStart+1-fast : slowStart+1])

	alphaFast := 2.0 / float64(fast+1)
	alphaSlow := 2.0 / float64(slow+1)
	emaFast, emaSlow := fastSeed, slowSeed
	out[slowStart] = emaFast - emaSlow
	for i := slowStart + 1; i < len(values); i++ {
		emaFast = alphaFast*values[i] + (1-alphaFast)*emaFast
		emaSlow = alphaSlow*values[i] + (1-alphaSlow)*emaSlow
		out[i] = emaFast - emaSlow
	}
	return out
}

// PPOHist is the PPO histogram: MACD line minus its own 9-period signal
// line, using the same fixed 12/26 fast/slow pair MACD uses elsewhere in
// this library (SPEC_FULL §4.2 lookback 35 = 26 + 9).
func PPOHist(values []float64) []float64 {
	macd := MACD(values, 12, 26)
	signal := emaOfSeries(macd, 9)
	out := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			out[i] = macd[i] - signal[i]
		}
	}
	return out
}

// KAMA is Kaufman's Adaptive Moving Average with the standard fast=2,
// slow=30 smoothing constants.
func KAMA(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if !hasEnoughData(len(values), n+1) {
		return out
	}
	fastSC := 2.0 / (2.0 + 1.0)
	slowSC := 2.0 / (30.0 + 1.0)
	seedIdx := n
	out[seedIdx] = values[seedIdx]
	prev := values[seedIdx]
	for i := seedIdx + 1; i < len(values); i++ {
		change := math.Abs(values[i] - values[i-n])
		volatility := 0.0
		for j := i - n + 1; j <= i; j++ {
			volatility += math.Abs(values[j] - values[j-1])
		}
		er := safeDiv(change, volatility)
		if math.IsNaN(er) {
			er = 0
		}
		sc := math.Pow(er*(fastSC-slowSC)+slowSC, 2)
		prev = prev + sc*(values[i]-prev)
		out[i] = prev
	}
	return out
}

// momentumSubReturns computes the four sub-period returns the 13612-family
// metrics blend: current vs 1/3/6/12 months ago (21/63/126/252 trading
// days), matching the lookback of 252 in SPEC_FULL §4.2.
func momentumSubReturns(values []float64, i int) (r1, r3, r6, r12 float64, ok bool) {
	if i < 252 {
		return 0, 0, 0, 0, false
	}
	get := func(lag int) (float64, bool) {
		a, b := values[i], values[i-lag]
		if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
			return 0, false
		}
		return a/b - 1, true
	}
	var ok1, ok3, ok6, ok12 bool
	r1, ok1 = get(21)
	r3, ok3 = get(63)
	r6, ok6 = get(126)
	r12, ok12 = get(252)
	return r1, r3, r6, r12, ok1 && ok3 && ok6 && ok12
}

// Momentum13612W is the weighted 12/4/2/1 blend of the four sub-period
// returns (see SPEC_FULL §9 open-question resolution (a)).
func Momentum13612W(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		r1, r3, r6, r12, ok := momentumSubReturns(values, i)
		if !ok {
			continue
		}
		out[i] = 12*r1 + 4*r3 + 2*r6 + r12
	}
	return out
}

// Momentum13612U is the unweighted average of the same four sub-period
// returns (distinct registered name, per SPEC_FULL §9 resolution (a)).
func Momentum13612U(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		r1, r3, r6, r12, ok := momentumSubReturns(values, i)
		if !ok {
			continue
		}
		out[i] = (r1 + r3 + r6 + r12) / 4
	}
	return out
}

// SMA12Momentum is price vs its own 252-day SMA, minus 1 (a slow
// trend-following momentum signal, lookback 252 per SPEC_FULL §4.2).
func SMA12Momentum(values []float64) []float64 {
	sma := SMA(values, 252)
	out := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(sma[i]) && sma[i] != 0 {
			out[i] = values[i]/sma[i] - 1
		}
	}
	return out
}
