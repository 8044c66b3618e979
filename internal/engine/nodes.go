package engine

// EvaluateNode dispatches a FlowNode to its kind-specific rule, producing an
// Allocation (C4). It saves and restores BranchParentNode around the call so
// branch-refs encountered while evaluating node's descendants resolve
// against node itself (ground:
// original_source/rust-indicators/src/backtest/nodes/mod.rs evaluate_node;
// SPEC_FULL §9 "Parent-context threading").
func EvaluateNode(ctx *EvalContext, node *FlowNode) Allocation {
	if node == nil {
		return Allocation{}
	}
	saved := ctx.BranchParentNode
	ctx.BranchParentNode = node
	defer func() { ctx.BranchParentNode = saved }()

	switch node.Kind {
	case KindPosition:
		return evaluatePosition(node)
	case KindBasic:
		return evaluateBasic(ctx, node)
	case KindIndicator:
		return evaluateIndicator(ctx, node)
	case KindNumbered:
		return evaluateNumbered(ctx, node)
	case KindFunction:
		return evaluateFunction(ctx, node)
	case KindScaling:
		return evaluateScaling(ctx, node)
	case KindAltExit:
		return evaluateAltExit(ctx, node)
	case KindCall:
		ctx.Warn("call node unsupported: " + node.ID)
		return Allocation{}
	default:
		ctx.Warn("unknown node kind: " + string(node.Kind))
		return Allocation{}
	}
}

// evaluateChildren evaluates every child in a slot and drops those that
// resolve to an empty allocation (ground: nodes/mod.rs
// get_active_children).
func evaluateChildren(ctx *EvalContext, children []*FlowNode) []childResult {
	out := make([]childResult, 0, len(children))
	for _, child := range children {
		alloc := EvaluateNode(ctx, child)
		if len(alloc) == 0 {
			continue
		}
		out = append(out, childResult{alloc: alloc, node: child})
	}
	return out
}

// evaluatePosition implements §4.4.1: equal weight over non-empty,
// non-sentinel tickers.
func evaluatePosition(node *FlowNode) Allocation {
	tickers := make([]string, 0, len(node.Tickers))
	for _, t := range node.Tickers {
		if !IsEmptyTicker(t) {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		return Allocation{}
	}
	out := make(Allocation, len(tickers))
	w := 1.0 / float64(len(tickers))
	for _, t := range tickers {
		out[t] += w
	}
	return out
}

// evaluateBasic implements §4.4.2: evaluate slot "next", drop empties,
// combine under the node's weighting mode.
func evaluateBasic(ctx *EvalContext, node *FlowNode) Allocation {
	children := evaluateChildren(ctx, node.Slot("next"))
	return CombineAllocations(ctx, children, node.EffectiveWeighting(""), node.EffectiveVolWindow(""))
}
