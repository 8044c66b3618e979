package engine

import "math"

// BranchEquity is the parallel equity/returns arrays produced by simulating
// a subtree day-by-day (§3, §4.6).
type BranchEquity struct {
	Equity  []float64
	Returns []float64
}

// SimulateBranchEquity implements C6: memoized, depth-bounded sub-simulation
// of a subtree's equity curve from day 0 to endIndex (ground:
// original_source/rust-indicators/src/backtest/branch.rs
// simulate_branch_equity).
func SimulateBranchEquity(ctx *EvalContext, branchNode *FlowNode, endIndex int) (*BranchEquity, bool) {
	if cached, ok := ctx.BranchCache[branchNode.ID]; ok {
		if ctx.BranchCacheHits != nil {
			*ctx.BranchCacheHits++
		}
		return cached, true
	}
	if !ctx.CanRecurseBranch() {
		return nil, false
	}
	n := ctx.DB.Len()
	if endIndex < 0 || endIndex >= n {
		return nil, false
	}

	equity := make([]float64, n)
	returns := make([]float64, n)
	for i := range equity {
		equity[i] = 1.0
	}

	current := 1.0
	for i := 0; i <= endIndex; i++ {
		sub := ctx.branchSubcontext()
		sub.SetDay(i)

		alloc := EvaluateNode(sub, branchNode)
		r := calculateDailyReturn(ctx.DB, alloc, i)
		returns[i] = r
		current *= 1 + r
		equity[i] = current
	}

	result := &BranchEquity{Equity: equity, Returns: returns}
	ctx.BranchCache[branchNode.ID] = result
	return result, true
}

// calculateDailyReturn computes a single day's portfolio return from an
// allocation using adj-close (ground: branch.rs calculate_daily_return).
func calculateDailyReturn(db *PriceTable, alloc Allocation, index int) float64 {
	if len(alloc) == 0 || index == 0 {
		return 0
	}
	total := 0.0
	for ticker, weight := range alloc {
		today, okT := db.AdjClose(ticker, index)
		yesterday, okY := db.AdjClose(ticker, index-1)
		if okT && okY && yesterday != 0 {
			total += weight * (today/yesterday - 1)
		}
	}
	return total
}

// ResolveBranchMetric is the BranchMetricFunc wired into every EvalContext:
// it resolves "branch:SLOT" metric queries by simulating (or reusing the
// cached simulation of) the enclosing parent's then/else subtree (ground:
// branch.rs get_branch_metric).
func ResolveBranchMetric(ctx *EvalContext, parent *FlowNode, slot, metric string, window, index int) (float64, bool) {
	children := parent.Slot(slot)
	if len(children) == 0 {
		return 0, false
	}
	branchNode := children[0]

	equity, ok := SimulateBranchEquity(ctx, branchNode, index)
	if !ok {
		return 0, false
	}
	return BranchMetricAt(equity, metric, window, index)
}

// BranchMetricAt computes a metric over a branch-equity curve: price-like
// metrics read the equity series, StdDev reads the returns series; unknown
// metrics fall back to SMA on equity (ground: indicators.rs
// branch_metric_at_index).
func BranchMetricAt(be *BranchEquity, metric string, window, index int) (float64, bool) {
	if index < 0 || index >= len(be.Equity) {
		return 0, false
	}
	switch normalizeMetricName(metric) {
	case "stddev":
		series := StdDev(be.Returns, window)
		return nanOK(series, index)
	case "roc":
		series := ROC(be.Equity, window)
		return nanOK(series, index)
	case "rsi":
		series := RSI(be.Equity, window)
		return nanOK(series, index)
	case "CurrentPrice", "Price":
		return nanOK(be.Equity, index)
	case "mdd":
		series := MaxDrawdown(be.Equity, window)
		return nanOK(series, index)
	default:
		series := SMA(be.Equity, window)
		return nanOK(series, index)
	}
}

func nanOK(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return 0, false
	}
	v := series[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
