package engine_test

import (
	"testing"

	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/stretchr/testify/assert"
)

// TestTriAndOrTables verifies the Kleene strong three-valued AND/OR tables
// exactly as tabulated in SPEC_FULL §8 (P3).
func TestTriAndOrTables(t *testing.T) {
	vals := []engine.Tri{engine.TriTrue, engine.TriFalse, engine.TriNull}

	wantAnd := map[[2]engine.Tri]engine.Tri{
		{engine.TriTrue, engine.TriTrue}:   engine.TriTrue,
		{engine.TriTrue, engine.TriFalse}:  engine.TriFalse,
		{engine.TriTrue, engine.TriNull}:   engine.TriNull,
		{engine.TriFalse, engine.TriTrue}:  engine.TriFalse,
		{engine.TriFalse, engine.TriFalse}: engine.TriFalse,
		{engine.TriFalse, engine.TriNull}:  engine.TriFalse,
		{engine.TriNull, engine.TriTrue}:   engine.TriNull,
		{engine.TriNull, engine.TriFalse}:  engine.TriFalse,
		{engine.TriNull, engine.TriNull}:   engine.TriNull,
	}
	wantOr := map[[2]engine.Tri]engine.Tri{
		{engine.TriTrue, engine.TriTrue}:   engine.TriTrue,
		{engine.TriTrue, engine.TriFalse}:  engine.TriTrue,
		{engine.TriTrue, engine.TriNull}:   engine.TriTrue,
		{engine.TriFalse, engine.TriTrue}:  engine.TriTrue,
		{engine.TriFalse, engine.TriFalse}: engine.TriFalse,
		{engine.TriFalse, engine.TriNull}:  engine.TriNull,
		{engine.TriNull, engine.TriTrue}:   engine.TriTrue,
		{engine.TriNull, engine.TriFalse}:  engine.TriNull,
		{engine.TriNull, engine.TriNull}:   engine.TriNull,
	}

	for _, a := range vals {
		for _, b := range vals {
			assert.Equalf(t, wantAnd[[2]engine.Tri{a, b}], a.And(b), "AND(%v,%v)", a, b)
			assert.Equalf(t, wantOr[[2]engine.Tri{a, b}], a.Or(b), "OR(%v,%v)", a, b)
		}
	}
}

func newCondCtx(dates []string, closes map[string][]float64) *engine.EvalContext {
	db := buildTable(dates, closes)
	cache := engine.NewIndicatorCache(db)
	ctx := engine.NewEvalContext(db, cache, engine.ModeCC)
	ctx.ResolveBranchMetric = engine.ResolveBranchMetric
	return ctx
}

// TestCrossAboveAtIndexZero verifies P5: at i=0 a crossing is always Null,
// never True or False, even when both series happen to be comparable.
func TestCrossAboveAtIndexZero(t *testing.T) {
	dates := genDates(5, "2021-01-01")
	ctx := newCondCtx(dates, map[string][]float64{"SPY": {10, 20, 5, 30, 30}})
	ctx.SetDay(0)
	cond := engine.ConditionLine{Ticker: "SPY", Metric: "CurrentPrice", Comparator: engine.CmpCrossAbove, Threshold: 15}
	assert.Equal(t, engine.TriNull, engine.EvaluateConditions(ctx, []engine.ConditionLine{cond}, ""))
}

// TestCrossAboveDetectsUpwardCross verifies P5's exact boundary condition.
func TestCrossAboveDetectsUpwardCross(t *testing.T) {
	dates := genDates(5, "2021-01-01")
	// Price: 10, 20 (crosses above 15 here), 5, 30, 30 (stays >= 15, not a fresh cross)
	ctx := newCondCtx(dates, map[string][]float64{"SPY": {10, 20, 5, 30, 30}})
	cond := []engine.ConditionLine{{Ticker: "SPY", Metric: "CurrentPrice", Comparator: engine.CmpCrossAbove, Threshold: 15}}

	ctx.SetDay(1)
	assert.Equal(t, engine.TriTrue, engine.EvaluateConditions(ctx, cond, ""))

	ctx.SetDay(2)
	assert.Equal(t, engine.TriFalse, engine.EvaluateConditions(ctx, cond, ""))

	ctx.SetDay(4)
	assert.Equal(t, engine.TriFalse, engine.EvaluateConditions(ctx, cond, ""), "30>=15 both days: not a fresh cross")
}

// TestDateRangeWrapsYearBoundary verifies P4's wrap-around case (Nov-Feb).
func TestDateRangeWrapsYearBoundary(t *testing.T) {
	dates := []string{"2021-12-15", "2021-06-15", "2021-01-10"}
	ctx := newCondCtx(dates, map[string][]float64{"SPY": {1, 2, 3}})
	cond := []engine.ConditionLine{{
		Metric: "Date", DateMonth: 11, DateDay: 1,
		DateTo: &engine.DateMD{Month: 2, Day: 28},
	}}

	ctx.SetDay(0) // Dec 15 -> in range
	assert.Equal(t, engine.TriTrue, engine.EvaluateConditions(ctx, cond, ""))
	ctx.SetDay(1) // Jun 15 -> out of range
	assert.Equal(t, engine.TriFalse, engine.EvaluateConditions(ctx, cond, ""))
	ctx.SetDay(2) // Jan 10 -> in range (wrapped)
	assert.Equal(t, engine.TriTrue, engine.EvaluateConditions(ctx, cond, ""))
}

// TestForDaysPersistence verifies P7: a False or Null anywhere in the
// trailing k-day window dominates the result.
func TestForDaysPersistence(t *testing.T) {
	// Gt 5 is true on indices 1..4 (values 10,10,10,10) but false at index 0 (value 1).
	dates := genDates(6, "2021-01-01")
	ctx := newCondCtx(dates, map[string][]float64{"SPY": {1, 10, 10, 10, 10, 10}})
	cond := []engine.ConditionLine{{Ticker: "SPY", Metric: "CurrentPrice", Comparator: engine.CmpGt, Threshold: 5, ForDays: 3}}

	ctx.SetDay(2) // window [0,1,2]: includes the False day
	assert.Equal(t, engine.TriFalse, engine.EvaluateConditions(ctx, cond, ""))

	ctx.SetDay(4) // window [2,3,4]: all True
	assert.Equal(t, engine.TriTrue, engine.EvaluateConditions(ctx, cond, ""))

	ctx.SetDay(1) // i+1 < k (k=3, i=1 -> 2<3)
	assert.Equal(t, engine.TriNull, engine.EvaluateConditions(ctx, cond, ""))
}

// TestGroupLogicOverride verifies that a parent-supplied "and"/"or" flattens
// the condition list, ignoring each line's own Type.
func TestGroupLogicOverride(t *testing.T) {
	dates := genDates(3, "2021-01-01")
	ctx := newCondCtx(dates, map[string][]float64{"SPY": {10, 10, 10}, "BND": {1, 1, 1}})
	ctx.SetDay(0)

	conds := []engine.ConditionLine{
		{Type: engine.CondOr, Ticker: "SPY", Metric: "CurrentPrice", Comparator: engine.CmpGt, Threshold: 5},
		{Type: engine.CondOr, Ticker: "BND", Metric: "CurrentPrice", Comparator: engine.CmpGt, Threshold: 5},
	}
	// Default grouping: each line opens its own OR term -> True OR False -> True.
	assert.Equal(t, engine.TriTrue, engine.EvaluateConditions(ctx, conds, ""))
	// "and" override flattens to AND: True AND False -> False.
	assert.Equal(t, engine.TriFalse, engine.EvaluateConditions(ctx, conds, "and"))
}
