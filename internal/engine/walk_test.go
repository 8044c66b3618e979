package engine_test

import (
	"testing"

	"github.com/chidi150c/flowbacktest/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunWalkSinglePositionTracksAsset covers S1: a strategy that's just a
// single always-on position should have its equity curve track the asset's
// own compounding return exactly (minus zero turnover cost, since the
// allocation never changes).
func TestRunWalkSinglePositionTracksAsset(t *testing.T) {
	dates := genDates(60, "2021-01-01")
	closes := linearSeries(60, 100)
	db := buildTable(dates, map[string][]float64{"SPY": closes})
	root := posNode("only", "SPY")

	result, err := engine.RunWalk(root, db, engine.WalkConfig{Mode: engine.ModeCC, CostBps: 0})
	require.NoError(t, err)

	wantEquity := 1.0
	for i := 1; i < len(closes); i++ {
		wantEquity *= closes[i] / closes[i-1]
	}
	gotEquity := result.EquityCurve[len(result.EquityCurve)-1].Equity
	assert.InDelta(t, wantEquity, gotEquity, 1e-6)
}

// TestRunWalkWarmupInvariant covers P6: no day before the computed warmup
// start index carries a non-empty allocation/holdings.
func TestRunWalkWarmupInvariant(t *testing.T) {
	dates := genDates(80, "2021-01-01")
	closes := linearSeries(80, 100)
	db := buildTable(dates, map[string][]float64{"SPY": closes})
	root := &engine.FlowNode{
		ID:   "gate",
		Kind: engine.KindIndicator,
		Conditions: []engine.ConditionLine{
			{Ticker: "SPY", Metric: "SMA", Window: 50, Comparator: engine.CmpGt, Threshold: 0},
		},
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {},
		},
	}

	result, err := engine.RunWalk(root, db, engine.WalkConfig{Mode: engine.ModeCC, CostBps: 0})
	require.NoError(t, err)

	for i := 0; i < 49; i++ {
		assert.Emptyf(t, result.Days[i].Holdings, "day %d should have no holdings before SMA(50) warms up", i)
	}
}

// TestRunWalkTurnoverBounded covers P10: per-day turnover never exceeds 1
// (the maximum possible L1 half-distance between two normalized
// allocations).
func TestRunWalkTurnoverBounded(t *testing.T) {
	dates := genDates(40, "2021-01-01")
	spy := make([]float64, 40)
	bnd := make([]float64, 40)
	for i := range spy {
		if i%2 == 0 {
			spy[i] = 100 + float64(i)
			bnd[i] = 1
		} else {
			spy[i] = 1
			bnd[i] = 100 + float64(i)
		}
	}
	db := buildTable(dates, map[string][]float64{"SPY": spy, "BND": bnd})
	root := &engine.FlowNode{
		ID:   "flipflop",
		Kind: engine.KindIndicator,
		Conditions: []engine.ConditionLine{
			{Ticker: "SPY", Metric: "CurrentPrice", Comparator: engine.CmpGt, Threshold: 50},
		},
		Slots: map[string][]*engine.FlowNode{
			"then": {posNode("then", "SPY")},
			"else": {posNode("else", "BND")},
		},
	}

	result, err := engine.RunWalk(root, db, engine.WalkConfig{Mode: engine.ModeCC, CostBps: 5})
	require.NoError(t, err)
	for _, d := range result.Days {
		assert.LessOrEqual(t, d.Turnover, 1.0+1e-9)
	}
}
