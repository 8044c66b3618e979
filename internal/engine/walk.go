package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// WalkConfig holds the per-request knobs the Walk Engine (C7) needs beyond
// the tree and the price table.
type WalkConfig struct {
	Mode            Mode
	CostBps         float64
	BenchmarkTicker string
	// MaxBranchDepth overrides the package default MaxBranchDepth (0 means
	// use the default); threaded into EvalContext.MaxDepth.
	MaxBranchDepth int
}

// minWalkDays is the data-error threshold for the walk engine (§7 "Data
// errors").
const minWalkDays = 3

// RunWalk implements C7 end to end: warmup, day-by-day state threading,
// allocation-to-PnL rollup, and hands the realized curve to the Metrics
// Aggregator (C9).
func RunWalk(root *FlowNode, db *PriceTable, cfg WalkConfig) (*Result, error) {
	if db.Len() < minWalkDays {
		return nil, fmt.Errorf("insufficient history for walk engine: have %d days, need >= %d", db.Len(), minWalkDays)
	}

	cache := NewIndicatorCache(db)
	ctx := NewEvalContext(db, cache, cfg.Mode)
	ctx.ResolveBranchMetric = ResolveBranchMetric
	ctx.MaxDepth = cfg.MaxBranchDepth

	startIndex, err := computeStartIndex(root, db, cfg.Mode)
	if err != nil {
		return nil, err
	}

	n := db.Len()
	allocations := make([]Allocation, n)
	for i := startIndex; i < n; i++ {
		ctx.SetDay(i)
		allocations[i] = EvaluateNode(ctx, root)
	}

	equity := make([]float64, n)
	returnsNet := make([]float64, n)
	returnsGross := make([]float64, n)
	turnover := make([]float64, n)
	cost := make([]float64, n)
	holdingsCount := make([]int, n)

	current := 1.0
	for i := 0; i < n; i++ {
		if i == 0 {
			equity[0] = 1
			continue
		}
		var yesterdayAlloc, todayAlloc Allocation
		if i-1 >= startIndex {
			yesterdayAlloc = allocations[i-1]
		}
		if i >= startIndex {
			todayAlloc = allocations[i]
		}
		gross := grossReturn(db, yesterdayAlloc, i)
		tov := turnoverBetween(yesterdayAlloc, todayAlloc)
		c := turnoverCost(tov, cfg.CostBps)
		net := gross - c
		current *= 1 + net

		returnsGross[i] = gross
		returnsNet[i] = net
		turnover[i] = tov
		cost[i] = c
		equity[i] = current
		holdingsCount[i] = len(todayAlloc)
	}

	benchEquity, benchReturns := buildBenchmark(db, cfg.BenchmarkTicker)
	drawdown := drawdownCurve(equity)

	result := &Result{
		RunID:  uuid.NewString(),
		Engine: "walk",
	}
	for i, d := range db.Dates {
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Date: d, Equity: equity[i]})
		result.BenchmarkCurve = append(result.BenchmarkCurve, EquityPoint{Date: d, Equity: benchEquity[i]})
		result.DrawdownPoints = append(result.DrawdownPoints, EquityPoint{Date: d, Equity: drawdown[i]})

		ts, _ := time.Parse("2006-01-02", d)
		holdings := allocationEntries(allocations[i])
		result.Days = append(result.Days, DayRow{
			Time:        ts.Unix(),
			Date:        d,
			Equity:      equity[i],
			Drawdown:    drawdown[i],
			GrossReturn: returnsGross[i],
			NetReturn:   returnsNet[i],
			Turnover:    turnover[i],
			Cost:        cost[i],
			Holdings:    holdings,
		})
		result.Allocations = append(result.Allocations, AllocationRow{Date: d, Entries: holdings})
	}
	result.Monthly = monthlyReturns(db.Dates, returnsNet)
	result.Metrics = ComputeMetrics(db.Dates, returnsNet, equity, benchReturns, holdingsCount, turnover, startIndex)
	result.Warnings = *ctx.Warnings
	result.BranchCacheHits = *ctx.BranchCacheHits
	if ctx.UsedScalingFallback {
		result.Markers = append(result.Markers, "used_scaling_fallback")
	}
	return result, nil
}

func allocationEntries(alloc Allocation) []HoldingEntry {
	out := make([]HoldingEntry, 0, len(alloc))
	for t, w := range alloc {
		out = append(out, HoldingEntry{Ticker: t, Weight: w})
	}
	return out
}

// computeStartIndex implements §4.7 step 3: the max of indicator lookback,
// position-availability-plus-branch-buffer, and per-ratio lookback; the
// indicator and ratio terms are offset by 1 under Open decision pricing
// (ground: runner.rs's start_index formula).
func computeStartIndex(root *FlowNode, db *PriceTable, mode Mode) (int, error) {
	openOffset := 0
	if DecisionPriceOf(mode) == DecisionOpen {
		openOffset = 1
	}

	_, positionOnly, ratios, hasBranchRef := CollectTickers(root)

	startIndex := maxIndicatorLookback(root) + openOffset

	if len(positionOnly) > 0 {
		fvpi := db.FirstValidIndex(positionOnly)
		if fvpi < 0 {
			return 0, fmt.Errorf("no overlapping history for position tickers %v", positionOnly)
		}
		buffer := 0
		if hasBranchRef {
			buffer = 50
		}
		if c := fvpi + buffer; c > startIndex {
			startIndex = c
		}
	}

	for _, rt := range ratios {
		num, den, _ := ParseRatioTicker(rt.ticker)
		fvi := db.FirstValidIndex([]string{num, den})
		if fvi < 0 {
			continue
		}
		if c := fvi + rt.lookback + openOffset; c > startIndex {
			startIndex = c
		}
	}

	if startIndex >= db.Len() {
		return 0, fmt.Errorf("warmup requires %d days but only %d are available", startIndex+1, db.Len())
	}
	return startIndex, nil
}

// maxIndicatorLookback walks every ConditionLine/Scaling metric usage in the
// tree and returns the largest lookback any of them requires.
func maxIndicatorLookback(node *FlowNode) int {
	max := 0
	consider := func(metric string, window int) {
		if lb := Lookback(metric, window); lb > max {
			max = lb
		}
	}
	var walk func(n *FlowNode)
	walk = func(n *FlowNode) {
		if n == nil {
			return
		}
		for i := range n.Conditions {
			c := &n.Conditions[i]
			consider(c.Metric, c.Window)
			if c.Expanded() {
				consider(c.RightMetric, c.RightWindow)
			}
		}
		for _, item := range n.Items {
			for i := range item.Conditions {
				c := &item.Conditions[i]
				consider(c.Metric, c.Window)
				if c.Expanded() {
					consider(c.RightMetric, c.RightWindow)
				}
			}
		}
		if n.Kind == KindScaling {
			consider(n.ScaleMetric, n.ScaleWindow)
		}
		for i := range n.EntryConditions {
			c := &n.EntryConditions[i]
			consider(c.Metric, c.Window)
		}
		for i := range n.ExitConditions {
			c := &n.ExitConditions[i]
			consider(c.Metric, c.Window)
		}
		for _, children := range n.Slots {
			for _, c := range children {
				walk(c)
			}
		}
	}
	walk(node)
	return max
}

// buildBenchmark builds a simple buy-and-hold curve for the benchmark
// ticker, realized the same way position returns are (§4.7 step 6).
func buildBenchmark(db *PriceTable, ticker string) (equity, returns []float64) {
	n := db.Len()
	equity = make([]float64, n)
	returns = make([]float64, n)
	adj := db.AdjCloseSeries(ticker)
	if adj == nil {
		for i := range equity {
			equity[i] = 1
		}
		return equity, returns
	}
	current := 1.0
	for i := 0; i < n; i++ {
		if i == 0 {
			equity[0] = 1
			continue
		}
		today, yesterday := adj[i], adj[i-1]
		r := 0.0
		if !math.IsNaN(today) && !math.IsNaN(yesterday) && yesterday != 0 {
			r = today/yesterday - 1
		}
		current *= 1 + r
		returns[i] = r
		equity[i] = current
	}
	return equity, returns
}

// drawdownCurve computes (equity[i] - peak[i]) / peak[i], non-positive.
func drawdownCurve(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			out[i] = (e - peak) / peak
		}
	}
	return out
}

// monthlyReturns compounds daily net returns within each calendar month
// (ground: runner.rs calculate_monthly_returns).
func monthlyReturns(dates []string, netReturns []float64) []MonthlyReturn {
	var out []MonthlyReturn
	var curYear, curMonth int
	haveCurrent := false
	compounded := 1.0

	flush := func() {
		if haveCurrent {
			out = append(out, MonthlyReturn{Year: curYear, Month: curMonth, Value: compounded - 1})
		}
	}

	for i, d := range dates {
		ts, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		y, m := ts.Year(), int(ts.Month())
		if !haveCurrent || y != curYear || m != curMonth {
			flush()
			curYear, curMonth = y, m
			haveCurrent = true
			compounded = 1.0
		}
		compounded *= 1 + netReturns[i]
	}
	flush()
	return out
}
