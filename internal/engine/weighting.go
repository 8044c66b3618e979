package engine

// childResult pairs a child's allocation with the node that produced it, the
// unit the Weighting Engine (C5) operates over.
type childResult struct {
	alloc Allocation
	node  *FlowNode
}

// CombineAllocations implements C5: combine sibling allocations under a
// weighting mode, then normalize to sum 1 (ground:
// original_source/rust-indicators/src/backtest/weighting.rs
// combine_allocations).
func CombineAllocations(ctx *EvalContext, children []childResult, mode WeightingMode, volWindow int) Allocation {
	if len(children) == 0 {
		return Allocation{}
	}
	if len(children) == 1 {
		return children[0].alloc
	}

	var w []float64
	switch mode {
	case WeightDefined:
		w = definedWeights(children)
	case WeightInverse:
		w = inverseVolatilityWeights(ctx, children, volWindow)
	case WeightPro:
		w = proVolatilityWeights(ctx, children, volWindow)
	default: // Equal, Capped (SPEC_FULL §9 resolution (b): Capped == Equal)
		w = equalWeights(len(children))
	}

	out := make(Allocation)
	for idx, cr := range children {
		for t, weight := range cr.alloc {
			out[t] += w[idx] * weight
		}
	}
	return out.Normalize()
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	share := 1.0 / float64(n)
	for i := range w {
		w[i] = share
	}
	return w
}

// definedWeights weights children proportionally to their node's Window
// field (defaulting to 1), falling back to Equal if the total is
// non-positive.
func definedWeights(children []childResult) []float64 {
	w := make([]float64, len(children))
	total := 0.0
	for i, cr := range children {
		ww := float64(cr.node.Window)
		if ww <= 0 {
			ww = 1
		}
		w[i] = ww
		total += ww
	}
	if total <= 0 {
		return equalWeights(len(children))
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// calculateChildVolatilities computes each child's portfolio-weighted mean
// of its constituent tickers' rolling StdDev-of-returns at the indicator
// index (ground: weighting.rs calculate_allocation_volatility).
func calculateChildVolatilities(ctx *EvalContext, children []childResult, volWindow int) ([]float64, bool) {
	vols := make([]float64, len(children))
	for i, cr := range children {
		if len(cr.alloc) == 0 {
			return nil, false
		}
		totalW := 0.0
		weighted := 0.0
		for ticker, weight := range cr.alloc {
			sigma, ok := tickerVolatility(ctx, ticker, volWindow)
			if !ok {
				return nil, false
			}
			weighted += weight * sigma
			totalW += weight
		}
		if totalW <= 0 {
			return nil, false
		}
		vols[i] = weighted / totalW
	}
	return vols, true
}

func tickerVolatility(ctx *EvalContext, ticker string, window int) (float64, bool) {
	returns := ctx.Cache.ReturnsSeries(ticker)
	if returns == nil {
		return 0, false
	}
	i := ctx.IndicatorIndex
	if i < 0 || i >= len(returns) {
		return 0, false
	}
	series := StdDev(returns, window)
	v := series[i]
	if v != v { // NaN
		return 0, false
	}
	return v, true
}

// inverseVolatilityWeights weights children inversely proportional to
// volatility, falling back to Equal if any child's volatility is missing or
// zero.
func inverseVolatilityWeights(ctx *EvalContext, children []childResult, volWindow int) []float64 {
	vols, ok := calculateChildVolatilities(ctx, children, volWindow)
	if !ok {
		return equalWeights(len(children))
	}
	w := make([]float64, len(children))
	total := 0.0
	for i, sigma := range vols {
		if sigma <= 0 {
			return equalWeights(len(children))
		}
		w[i] = 1 / sigma
		total += w[i]
	}
	if total <= 0 {
		return equalWeights(len(children))
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// proVolatilityWeights weights children proportionally to volatility,
// falling back to Equal under the same conditions as Inverse.
func proVolatilityWeights(ctx *EvalContext, children []childResult, volWindow int) []float64 {
	vols, ok := calculateChildVolatilities(ctx, children, volWindow)
	if !ok {
		return equalWeights(len(children))
	}
	total := 0.0
	for _, sigma := range vols {
		if sigma <= 0 {
			return equalWeights(len(children))
		}
		total += sigma
	}
	if total <= 0 {
		return equalWeights(len(children))
	}
	w := make([]float64, len(children))
	for i, sigma := range vols {
		w[i] = sigma / total
	}
	return w
}
