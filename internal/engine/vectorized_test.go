package engine_test

import (
	"math"
	"testing"

	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineSeries returns a bounded oscillating series so an SMA-gated strategy
// actually flips between then/else branches across the sample.
func sineSeries(n int, base, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amp*math.Sin(float64(i)/9.0)
	}
	return out
}

// TestVectorizedMatchesWalkOnApplicableStrategy covers P8: for a tree with
// no AltExit, Call, or branch-ref, the vectorized and walk engines must
// agree on the realized equity curve.
func TestVectorizedMatchesWalkOnApplicableStrategy(t *testing.T) {
	dates := genDates(300, "2020-01-01")
	spy := sineSeries(300, 100, 20)
	bnd := linearSeries(300, 50)
	db := buildTable(dates, map[string][]float64{"SPY": spy, "BND": bnd})

	root := &engine.FlowNode{
		ID:   "gate",
		Kind: engine.KindIndicator,
		Conditions: []engine.ConditionLine{
			{Ticker: "SPY", Metric: "SMA", Window: 20, Comparator: engine.CmpGt, Threshold: 100},
		},
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {posNode("else", "BND")},
		},
	}
	require.True(t, engine.CanVectorize(root))

	cfg := engine.WalkConfig{Mode: engine.ModeCC, CostBps: 5, BenchmarkTicker: "BND"}
	walkResult, err := engine.RunWalk(root, db, cfg)
	require.NoError(t, err)
	vecResult, err := engine.RunVectorized(root, db, cfg)
	require.NoError(t, err)

	require.Equal(t, len(walkResult.EquityCurve), len(vecResult.EquityCurve))
	for i := range walkResult.EquityCurve {
		assert.InDeltaf(t, walkResult.EquityCurve[i].Equity, vecResult.EquityCurve[i].Equity, 1e-6,
			"equity diverges at day %d (%s)", i, walkResult.EquityCurve[i].Date)
	}
}

// TestVectorizedMatchesWalkUnderOpenMode covers P8 specifically for an Open
// decision-price mode (OO), where the walk engine reads conditions at
// IndicatorIndex = DecisionIndex-1 (context.go SetDay); the vectorized
// engine must apply the same one-day lag when turning compiled signals into
// decisionAlloc, or the two engines disagree by a full day.
func TestVectorizedMatchesWalkUnderOpenMode(t *testing.T) {
	dates := genDates(300, "2020-01-01")
	spy := sineSeries(300, 100, 20)
	bnd := linearSeries(300, 50)
	db := buildTable(dates, map[string][]float64{"SPY": spy, "BND": bnd})

	root := &engine.FlowNode{
		ID:   "gate",
		Kind: engine.KindIndicator,
		Conditions: []engine.ConditionLine{
			{Ticker: "SPY", Metric: "SMA", Window: 20, Comparator: engine.CmpGt, Threshold: 100},
		},
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {posNode("else", "BND")},
		},
	}
	require.True(t, engine.CanVectorize(root))

	cfg := engine.WalkConfig{Mode: engine.ModeOO, CostBps: 5, BenchmarkTicker: "BND"}
	walkResult, err := engine.RunWalk(root, db, cfg)
	require.NoError(t, err)
	vecResult, err := engine.RunVectorized(root, db, cfg)
	require.NoError(t, err)

	require.Equal(t, len(walkResult.EquityCurve), len(vecResult.EquityCurve))
	for i := range walkResult.EquityCurve {
		assert.InDeltaf(t, walkResult.EquityCurve[i].Equity, vecResult.EquityCurve[i].Equity, 1e-6,
			"equity diverges at day %d (%s)", i, walkResult.EquityCurve[i].Date)
	}
}

// TestCanVectorizeRejectsAltExitAndCall verifies the applicability predicate
// excludes AltExit and Call trees, forcing a walk-engine fallback.
func TestCanVectorizeRejectsAltExitAndCall(t *testing.T) {
	altExitRoot := &engine.FlowNode{
		ID:   "alt",
		Kind: engine.KindAltExit,
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {posNode("else", "BND")},
		},
	}
	assert.False(t, engine.CanVectorize(altExitRoot))

	callRoot := &engine.FlowNode{ID: "call", Kind: engine.KindCall, CallRef: "other"}
	assert.False(t, engine.CanVectorize(callRoot))
}

// TestRunBacktestFallsBackOnScalingNode verifies the driver transparently
// falls back to the walk engine when vectorized compilation can't express a
// Scaling node, even though CanVectorize itself doesn't special-case it.
func TestRunBacktestFallsBackOnScalingNode(t *testing.T) {
	dates := genDates(300, "2020-01-01")
	vix := sineSeries(300, 20, 10)
	spy := linearSeries(300, 100)
	bnd := constSeries(300, 50)
	db := buildTable(dates, map[string][]float64{"VIX": vix, "SPY": spy, "BND": bnd})

	root := &engine.FlowNode{
		ID:          "scale",
		Kind:        engine.KindScaling,
		ScaleTicker: "VIX",
		ScaleMetric: "CurrentPrice",
		From:        10,
		To:          30,
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {posNode("else", "BND")},
		},
	}
	require.True(t, engine.CanVectorize(root), "Scaling has no branch-ref/AltExit/Call so the predicate admits it")

	result, err := engine.RunBacktest(root, db, engine.WalkConfig{Mode: engine.ModeCC, CostBps: 0})
	require.NoError(t, err)
	assert.Equal(t, "walk", result.Engine)
	assert.NotEmpty(t, result.Warnings)
}
