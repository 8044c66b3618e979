package engine

// evaluateAltExit implements §4.4.7: persistent per-node "entered" state
// with asymmetric Null handling (stay entered on exit-Null, stay out on
// entry-Null — intentional hysteresis per SPEC_FULL §9 resolution (d)).
func evaluateAltExit(ctx *EvalContext, node *FlowNode) Allocation {
	entered := ctx.AltExitState[node.ID]

	if entered {
		if len(node.ExitConditions) == 0 {
			return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
		}
		switch EvaluateConditions(ctx, node.ExitConditions, "") {
		case TriTrue:
			ctx.AltExitState[node.ID] = false
			return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
		default: // False or Null: stay entered
			return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
		}
	}

	if len(node.EntryConditions) == 0 {
		return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
	}
	switch EvaluateConditions(ctx, node.EntryConditions, "") {
	case TriTrue:
		ctx.AltExitState[node.ID] = true
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	default: // False or Null: stay out
		return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
	}
}
