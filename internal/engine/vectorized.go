package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// minVectorizedDays is the data-error threshold for the vectorized engine
// (§7 "Data errors").
const minVectorizedDays = 252

// CompiledPosition is one position leaf's contribution to the compiled
// signal tree (§4.8 step 4): the ticker, its per-day boolean active signal
// (already folded with every ancestor's active vector), and its static
// equal-weight share within its Position node.
type CompiledPosition struct {
	Ticker string
	Signal []bool
	Weight float64
}

// RunVectorized implements C8 end to end. It returns an error for any tree
// the compiler cannot structurally express (Scaling and Function nodes have
// no vectorized compilation rule per §4.8 step 4, which only defines
// Basic/Position/Indicator/Numbered); callers fall back to RunWalk on error,
// per §7 "Unsupported constructs".
func RunVectorized(root *FlowNode, db *PriceTable, cfg WalkConfig) (*Result, error) {
	if db.Len() < minVectorizedDays {
		return nil, fmt.Errorf("insufficient history for vectorized engine: have %d days, need >= %d", db.Len(), minVectorizedDays)
	}
	if !CanVectorize(root) {
		return nil, fmt.Errorf("vectorized: tree contains AltExit, Call, or a branch-ref")
	}

	n := db.Len()
	cache := NewIndicatorCache(db)
	vc := &vecCompiler{db: db, cache: cache, n: n}

	allActive := make([]bool, n)
	for i := range allActive {
		allActive[i] = true
	}
	positions, err := vc.compile(root, allActive)
	if err != nil {
		return nil, err
	}

	startIndex, err := computeStartIndex(root, db, cfg.Mode)
	if err != nil {
		return nil, err
	}

	// Under Open decision pricing the walk engine reads condition inputs at
	// IndicatorIndex = DecisionIndex-1 (context.go SetDay); the compiled
	// signal vectors are indexed by the day whose own data produced them, so
	// the same day-(-1) shift must be applied here for the two engines to
	// agree (§8 P8).
	openLag := 0
	if DecisionPriceOf(cfg.Mode) == DecisionOpen {
		openLag = 1
	}
	decisionAlloc := make([]Allocation, n)
	for i := startIndex; i < n; i++ {
		condIdx := i - openLag
		if condIdx < 0 {
			decisionAlloc[i] = Allocation{}
			continue
		}
		alloc := make(Allocation)
		for _, p := range positions {
			if condIdx < len(p.Signal) && p.Signal[condIdx] {
				alloc[p.Ticker] += p.Weight
			}
		}
		decisionAlloc[i] = alloc.Normalize()
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
			yesterdayAlloc = decisionAlloc[i-1]
		}
		if i >= startIndex {
			todayAlloc = decisionAlloc[i]
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
		RunID:    uuid.NewString(),
		Engine:   "vectorized",
		Warnings: make([]string, 0),
	}
	for i, d := range db.Dates {
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Date: d, Equity: equity[i]})
		result.BenchmarkCurve = append(result.BenchmarkCurve, EquityPoint{Date: d, Equity: benchEquity[i]})
		result.DrawdownPoints = append(result.DrawdownPoints, EquityPoint{Date: d, Equity: drawdown[i]})

		ts, _ := time.Parse("2006-01-02", d)
		holdings := allocationEntries(decisionAlloc[i])
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
	return result, nil
}

// vecCompiler holds the shared, read-only state used while compiling one
// tree (§4.8 steps 1-4): the price table and the indicator cache that
// materializes whole-series condition inputs.
type vecCompiler struct {
	db    *PriceTable
	cache *IndicatorCache
	n     int
}

// compile implements §4.8 step 4: top-down, each node narrows the parent's
// active vector and recurses; Position leaves terminate with their equal-
// weight contribution.
func (vc *vecCompiler) compile(node *FlowNode, active []bool) ([]CompiledPosition, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case KindPosition:
		return vc.compilePosition(node, active), nil
	case KindBasic:
		return vc.compileChildren(node.Slot("next"), active)
	case KindIndicator:
		return vc.compileIndicator(node, active)
	case KindNumbered:
		return vc.compileNumbered(node, active)
	default:
		return nil, fmt.Errorf("vectorized: node kind %q has no compiled form", node.Kind)
	}
}

func (vc *vecCompiler) compileChildren(children []*FlowNode, active []bool) ([]CompiledPosition, error) {
	var out []CompiledPosition
	for _, child := range children {
		sub, err := vc.compile(child, active)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (vc *vecCompiler) compilePosition(node *FlowNode, active []bool) []CompiledPosition {
	tickers := make([]string, 0, len(node.Tickers))
	for _, t := range node.Tickers {
		if !IsEmptyTicker(t) {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		return nil
	}
	weight := 1.0 / float64(len(tickers))
	out := make([]CompiledPosition, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, CompiledPosition{Ticker: t, Signal: active, Weight: weight})
	}
	return out
}

func (vc *vecCompiler) compileIndicator(node *FlowNode, active []bool) ([]CompiledPosition, error) {
	var cond []bool
	if len(node.Conditions) == 0 {
		cond = allTrue(vc.n)
	} else {
		cond = vc.compileConditionList(node.Conditions, "")
	}
	thenActive := andBool(active, cond)
	elseActive := andBool(active, notBool(cond))

	thenPos, err := vc.compileChildren(node.Slot("then"), thenActive)
	if err != nil {
		return nil, err
	}
	elsePos, err := vc.compileChildren(node.Slot("else"), elseActive)
	if err != nil {
		return nil, err
	}
	return append(thenPos, elsePos...), nil
}

// compileNumbered implements §4.8 step 4's Numbered rule: count item
// signals elementwise and derive a then-mask per quantifier, collapsing the
// Null-case logic since the vectorized path has no ternary (§4.8 step 3).
// Ladder has no defined vectorized routing (§4.8 is silent on it), so it
// falls back to the same then/else split Numbered's own fallback uses
// (T>0 ⇒ then), matching evaluateLadder's non-ladder-slot fallback.
func (vc *vecCompiler) compileNumbered(node *FlowNode, active []bool) ([]CompiledPosition, error) {
	// No items routes to "then" unconditionally, matching evaluateNumbered's
	// degenerate-case default.
	if len(node.Items) == 0 {
		return vc.compileChildren(node.Slot("then"), active)
	}

	itemSignals := make([][]bool, len(node.Items))
	for i, item := range node.Items {
		itemSignals[i] = vc.compileConditionList(item.Conditions, item.Logic)
	}

	trueCount := make([]int, vc.n)
	for _, sig := range itemSignals {
		for i, v := range sig {
			if v {
				trueCount[i]++
			}
		}
	}

	thenMask := make([]bool, vc.n)
	for i := 0; i < vc.n; i++ {
		if node.Quantifier == QuantLadder {
			thenMask[i] = trueCount[i] > 0
			continue
		}
		thenMask[i] = quantifierHolds(node.Quantifier, trueCount[i], 0, len(node.Items), node.N)
	}

	thenActive := andBool(active, thenMask)
	elseActive := andBool(active, notBool(thenMask))

	thenPos, err := vc.compileChildren(node.Slot("then"), thenActive)
	if err != nil {
		return nil, err
	}
	elsePos, err := vc.compileChildren(node.Slot("else"), elseActive)
	if err != nil {
		return nil, err
	}
	return append(thenPos, elsePos...), nil
}

// compileConditionList mirrors EvaluateConditions' left-to-right OR-of-AND
// grouping (§4.3 "Combination") on boolean vectors instead of Tri values
// (§4.8 step 3: NaN collapses to false at the comparator level, so there is
// no Null case to propagate here).
func (vc *vecCompiler) compileConditionList(conditions []ConditionLine, logic string) []bool {
	if len(conditions) == 0 {
		return allTrue(vc.n)
	}
	lines := make([][]bool, len(conditions))
	for i := range conditions {
		lines[i] = vc.compileConditionLine(&conditions[i])
	}

	switch logic {
	case "and":
		result := allTrue(vc.n)
		for _, l := range lines {
			result = andBool(result, l)
		}
		return result
	case "or":
		result := allFalse(vc.n)
		for _, l := range lines {
			result = orBool(result, l)
		}
		return result
	}

	var terms [][]bool
	var current []bool
	haveCurrent := false
	for i := range conditions {
		v := lines[i]
		switch conditions[i].Type {
		case CondOr:
			if haveCurrent {
				terms = append(terms, current)
			}
			current = v
			haveCurrent = true
		case CondAnd:
			if !haveCurrent {
				current = allTrue(vc.n)
				haveCurrent = true
			}
			current = andBool(current, v)
		default:
			if haveCurrent {
				terms = append(terms, current)
			}
			current = v
			haveCurrent = true
		}
	}
	if haveCurrent {
		terms = append(terms, current)
	}
	if len(terms) == 0 {
		return allTrue(vc.n)
	}
	result := terms[0]
	for _, t := range terms[1:] {
		result = orBool(result, t)
	}
	return result
}

// compileConditionLine materializes one ConditionLine's comparator as a
// full boolean vector (§4.8 step 2), applying the for_days rolling-AND
// window (§4.3 "Temporal persistence") after the instantaneous comparator.
func (vc *vecCompiler) compileConditionLine(c *ConditionLine) []bool {
	if normalizeMetricName(c.Metric) == "Date" {
		return vc.compileDateLine(c)
	}

	left, ok := vc.cache.Series(c.Ticker, c.Metric, c.Window)
	if !ok {
		return allFalse(vc.n)
	}
	var right []float64
	if c.Expanded() {
		rt := c.RightTicker
		if rt == "" {
			rt = c.Ticker
		}
		r, ok2 := vc.cache.Series(rt, c.RightMetric, c.RightWindow)
		if !ok2 {
			return allFalse(vc.n)
		}
		right = r
	} else {
		right = make([]float64, vc.n)
		for i := range right {
			right[i] = c.Threshold
		}
	}

	out := make([]bool, vc.n)
	switch c.Comparator {
	case CmpGt:
		for i := 0; i < vc.n; i++ {
			out[i] = validCompare(left, right, i) && left[i] > right[i]
		}
	case CmpLt:
		for i := 0; i < vc.n; i++ {
			out[i] = validCompare(left, right, i) && left[i] < right[i]
		}
	case CmpCrossAbove:
		for i := 1; i < vc.n; i++ {
			out[i] = validCompare(left, right, i) && validCompare(left, right, i-1) &&
				left[i-1] < right[i-1] && left[i] >= right[i]
		}
	case CmpCrossBelow:
		for i := 1; i < vc.n; i++ {
			out[i] = validCompare(left, right, i) && validCompare(left, right, i-1) &&
				left[i-1] > right[i-1] && left[i] <= right[i]
		}
	}

	if c.ForDays > 1 {
		out = rollingAnd(out, c.ForDays)
	}
	return out
}

// compileDateLine materializes the calendar predicate (§4.3 "Date
// predicate") as a boolean vector.
func (vc *vecCompiler) compileDateLine(c *ConditionLine) []bool {
	out := make([]bool, vc.n)
	for i, d := range vc.db.Dates {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		m, day := int(date.Month()), date.Day()
		if c.DateTo == nil {
			out[i] = m == c.DateMonth && day == c.DateDay
			continue
		}
		from := c.DateMonth*100 + c.DateDay
		to := c.DateTo.Month*100 + c.DateTo.Day
		out[i] = isDateInRange(m*100+day, from, to)
	}
	return out
}

func validCompare(left, right []float64, i int) bool {
	return !math.IsNaN(left[i]) && !math.IsNaN(right[i])
}

// rollingAnd requires the boolean signal to hold true on each of the
// trailing k days (§4.3 "Temporal persistence"); the window before day k-1
// is false, matching "if i+1 < k, result is Null" collapsed to false.
func rollingAnd(signal []bool, k int) []bool {
	out := make([]bool, len(signal))
	for i := k - 1; i < len(signal); i++ {
		all := true
		for offset := 0; offset < k; offset++ {
			if !signal[i-offset] {
				all = false
				break
			}
		}
		out[i] = all
	}
	return out
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func allFalse(n int) []bool {
	return make([]bool, n)
}

func andBool(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}

func orBool(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] || b[i]
	}
	return out
}

func notBool(a []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = !a[i]
	}
	return out
}
