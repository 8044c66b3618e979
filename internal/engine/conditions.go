package engine

import "time"

// Tri is the three-valued (Kleene strong) logic result a condition yields
// (§4.3, §8 P3).
type Tri int

const (
	TriFalse Tri = iota
	TriTrue
	TriNull
)

// And is Kleene strong AND: Null is absorbed except by False.
func (a Tri) And(b Tri) Tri {
	if a == TriFalse || b == TriFalse {
		return TriFalse
	}
	if a == TriNull || b == TriNull {
		return TriNull
	}
	return TriTrue
}

// Or is Kleene strong OR: Null is absorbed except by True.
func (a Tri) Or(b Tri) Tri {
	if a == TriTrue || b == TriTrue {
		return TriTrue
	}
	if a == TriNull || b == TriNull {
		return TriNull
	}
	return TriFalse
}

// EvaluateConditions evaluates an ordered condition list at the context's
// current indicator index, honoring an optional group-logic override
// ("and"/"or") that flattens the list ignoring per-line Type (§4.3
// "Combination" / "Group-logic override").
func EvaluateConditions(ctx *EvalContext, conditions []ConditionLine, logic string) Tri {
	if len(conditions) == 0 {
		return TriTrue
	}
	switch logic {
	case "and":
		result := TriTrue
		for i := range conditions {
			result = result.And(evaluateConditionAt(ctx, &conditions[i]))
		}
		return result
	case "or":
		result := TriFalse
		for i := range conditions {
			result = result.Or(evaluateConditionAt(ctx, &conditions[i]))
		}
		return result
	}

	// Default grouping: left-to-right OR-of-AND-groups. Each If opens a new
	// AND term; And extends it; Or closes it and starts a fresh term. The
	// final result ORs every closed term together (ground:
	// original_source/rust-indicators/src/backtest/conditions.rs
	// evaluate_conditions).
	var terms []Tri
	current := TriTrue
	haveCurrent := false
	for i := range conditions {
		c := &conditions[i]
		v := evaluateConditionAt(ctx, c)
		switch c.Type {
		case CondOr:
			if haveCurrent {
				terms = append(terms, current)
			}
			current = v
			haveCurrent = true
		case CondAnd:
			if !haveCurrent {
				current = TriTrue
				haveCurrent = true
			}
			current = current.And(v)
		default: // CondIf or unset: opens a new term
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
		return TriTrue
	}
	result := terms[0]
	for _, t := range terms[1:] {
		result = result.Or(t)
	}
	return result
}

// evaluateConditionAt dispatches a single ConditionLine, applying temporal
// persistence (for_days) around the instantaneous comparator result
// (§4.3 "Temporal persistence").
func evaluateConditionAt(ctx *EvalContext, c *ConditionLine) Tri {
	if normalizeMetricName(c.Metric) == "Date" {
		return evaluateDateCondition(ctx, c)
	}
	if c.ForDays > 1 {
		return evaluateForDays(ctx, c)
	}
	return evaluateInstant(ctx, c, ctx.IndicatorIndex)
}

// evaluateForDays requires the instantaneous condition to hold True on each
// of i, i-1, ..., i-k+1; any Null in the window makes the whole thing Null,
// any False makes it False (§4.3, §8 P7).
func evaluateForDays(ctx *EvalContext, c *ConditionLine) Tri {
	k := c.ForDays
	i := ctx.IndicatorIndex
	if i+1 < k {
		return TriNull
	}
	sawNull := false
	for offset := 0; offset < k; offset++ {
		v := evaluateInstant(ctx, c, i-offset)
		if v == TriFalse {
			return TriFalse
		}
		if v == TriNull {
			sawNull = true
		}
	}
	if sawNull {
		return TriNull
	}
	return TriTrue
}

// evaluateInstant evaluates a ConditionLine's comparator at a specific
// index (not necessarily ctx.IndicatorIndex, since for_days walks a
// trailing window).
func evaluateInstant(ctx *EvalContext, c *ConditionLine, i int) Tri {
	switch c.Comparator {
	case CmpCrossAbove, CmpCrossBelow:
		return evaluateCrossing(ctx, c, i)
	default:
		left, leftOK := metricAtIndex(ctx, c.Ticker, c.Metric, c.Window, i)
		if !leftOK {
			return TriNull
		}
		right, rightOK := rightValue(ctx, c, i)
		if !rightOK {
			return TriNull
		}
		switch c.Comparator {
		case CmpGt:
			return boolToTri(left > right)
		case CmpLt:
			return boolToTri(left < right)
		default:
			return TriNull
		}
	}
}

// evaluateCrossing implements CrossAbove/CrossBelow (§4.3 "Crossings", §8
// P5): at i=0 the result is always Null; either side NaN at either bar is
// Null.
func evaluateCrossing(ctx *EvalContext, c *ConditionLine, i int) Tri {
	if i <= 0 {
		return TriNull
	}
	leftNow, okLN := metricAtIndex(ctx, c.Ticker, c.Metric, c.Window, i)
	leftPrev, okLP := metricAtIndex(ctx, c.Ticker, c.Metric, c.Window, i-1)
	rightNow, okRN := rightValue(ctx, c, i)
	rightPrev, okRP := rightValue(ctx, c, i-1)
	if !okLN || !okLP || !okRN || !okRP {
		return TriNull
	}
	switch c.Comparator {
	case CmpCrossAbove:
		return boolToTri(leftPrev < rightPrev && leftNow >= rightNow)
	case CmpCrossBelow:
		return boolToTri(leftPrev > rightPrev && leftNow <= rightNow)
	default:
		return TriNull
	}
}

// metricAtIndex resolves the left-hand metric at an arbitrary index i
// (crossing/for_days need values at indices other than the current
// IndicatorIndex, so this temporarily repoints the context).
func metricAtIndex(ctx *EvalContext, ticker, metric string, window, i int) (float64, bool) {
	saved := ctx.IndicatorIndex
	ctx.IndicatorIndex = i
	v, ok := ctx.metricAt(ticker, metric, window)
	ctx.IndicatorIndex = saved
	return v, ok
}

// rightValue resolves a ConditionLine's right-hand side: another metric
// lookup in expanded mode, else the constant threshold (§4.3 "Expanded
// mode").
func rightValue(ctx *EvalContext, c *ConditionLine, i int) (float64, bool) {
	if c.Expanded() {
		ticker := c.RightTicker
		if ticker == "" {
			ticker = c.Ticker
		}
		return metricAtIndex(ctx, ticker, c.RightMetric, c.RightWindow, i)
	}
	return c.Threshold, true
}

func boolToTri(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

// evaluateDateCondition implements the calendar predicate (§4.3 "Date
// predicate", §8 P4): month/day only, with year wrap-around when the
// expanded range's `to` precedes `from`.
func evaluateDateCondition(ctx *EvalContext, c *ConditionLine) Tri {
	idx := ctx.IndicatorIndex
	if idx < 0 || idx >= ctx.DB.Len() {
		return TriNull
	}
	date, err := time.Parse("2006-01-02", ctx.DB.Dates[idx])
	if err != nil {
		return TriNull
	}
	m, d := int(date.Month()), date.Day()

	if c.DateTo == nil {
		return boolToTri(m == c.DateMonth && d == c.DateDay)
	}
	from := c.DateMonth*100 + c.DateDay
	to := c.DateTo.Month*100 + c.DateTo.Day
	cur := m*100 + d
	return boolToTri(isDateInRange(cur, from, to))
}

// isDateInRange implements §8 P4 exactly: non-wrapping range when from<=to,
// wrap-around (OR of two tails) otherwise.
func isDateInRange(cur, from, to int) bool {
	if from <= to {
		return cur >= from && cur <= to
	}
	return cur >= from || cur <= to
}
