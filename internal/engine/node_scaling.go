package engine

import "math"

const scalingEpsilon = 1e-9

// calculateBlend implements §4.4.6's exact blend formula for normal,
// inverted, and degenerate [from,to] ranges (ground: nodes/scaling.rs
// calculate_blend).
func calculateBlend(v, from, to float64) float64 {
	if math.Abs(to-from) < scalingEpsilon {
		return 0.5
	}
	if from < to {
		return clamp((v-from)/(to-from), 0, 1)
	}
	return clamp((from-v)/(from-to), 0, 1)
}

// evaluateScaling implements §4.4.6: resolve the scale value, compute the
// blend, evaluate both branches, and linearly mix their weights.
func evaluateScaling(ctx *EvalContext, node *FlowNode) Allocation {
	v, ok := ctx.metricAt(node.ScaleTicker, node.ScaleMetric, node.ScaleWindow)
	var blend float64
	if !ok {
		blend = 0
		ctx.UsedScalingFallback = true
		ctx.Warn("scaling fallback: " + node.ID)
	} else {
		blend = calculateBlend(v, node.From, node.To)
	}

	thenAlloc := evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	elseAlloc := evaluateFirstActive(ctx, node.Slot("else"), node, "else")

	return mergeScalingAllocations(thenAlloc, elseAlloc, blend)
}

// mergeScalingAllocations linearly mixes two allocations: (1-blend)*then +
// blend*else.
func mergeScalingAllocations(thenAlloc, elseAlloc Allocation, blend float64) Allocation {
	out := make(Allocation)
	for t, w := range thenAlloc {
		out[t] += (1 - blend) * w
	}
	for t, w := range elseAlloc {
		out[t] += blend * w
	}
	return out
}
