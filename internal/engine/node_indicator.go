package engine

// evaluateIndicator implements §4.4.3: evaluate the condition list via C3
// and branch on the ternary result. Null is conservative (else), matching
// the asymmetric default documented in SPEC_FULL §4.4.3/§9.
func evaluateIndicator(ctx *EvalContext, node *FlowNode) Allocation {
	if len(node.Conditions) == 0 {
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	}
	result := EvaluateConditions(ctx, node.Conditions, "")
	switch result {
	case TriTrue:
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	default: // False or Null
		return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
	}
}

// evaluateFirstActive evaluates a slot's children and combines them under
// the node's branch-specific weighting override, matching the per-slot
// weighting_then/else and vol_window_then/else resolution pattern used
// across Indicator/Scaling/AltExit (ground: nodes/indicator.rs).
func evaluateFirstActive(ctx *EvalContext, slotChildren []*FlowNode, node *FlowNode, slot string) Allocation {
	children := evaluateChildren(ctx, slotChildren)
	return CombineAllocations(ctx, children, node.EffectiveWeighting(slot), node.EffectiveVolWindow(slot))
}
