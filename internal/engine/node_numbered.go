package engine

import "fmt"

// evaluateNumbered implements §4.4.4: count True/Null across items, pick a
// branch by quantifier, with Ladder routing to a numbered slot (ground:
// nodes/numbered.rs). A Numbered node with no items routes to "then", the
// same degenerate-case default numbered.rs uses.
func evaluateNumbered(ctx *EvalContext, node *FlowNode) Allocation {
	if len(node.Items) == 0 {
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	}

	t, u := 0, 0
	for _, item := range node.Items {
		switch EvaluateConditions(ctx, item.Conditions, item.Logic) {
		case TriTrue:
			t++
		case TriNull:
			u++
		}
	}

	if node.Quantifier == QuantLadder {
		return evaluateLadder(ctx, node, t)
	}

	certified := quantifierHolds(node.Quantifier, t, u, len(node.Items), node.N)
	if u > 0 && (node.Quantifier == QuantAll || node.Quantifier == QuantNone) {
		certified = false
	}
	if certified {
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	}
	return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
}

func quantifierHolds(q Quantifier, t, u, items, n int) bool {
	switch q {
	case QuantAny:
		return t >= 1
	case QuantAll:
		return t == items
	case QuantNone:
		return t == 0 && u == 0
	case QuantExactly:
		return t == n
	case QuantAtLeast:
		return t >= n
	case QuantAtMost:
		return t <= n
	default:
		return false
	}
}

// evaluateLadder routes to slot "ladder-<T>" when present and non-empty;
// otherwise falls back to then/else by whether any item was True.
func evaluateLadder(ctx *EvalContext, node *FlowNode, trueCount int) Allocation {
	ladderSlot := fmt.Sprintf("ladder-%d", trueCount)
	if children := node.Slot(ladderSlot); len(children) > 0 {
		result := evaluateFirstActive(ctx, children, node, ladderSlot)
		if len(result) > 0 {
			return result
		}
	}
	if trueCount > 0 {
		return evaluateFirstActive(ctx, node.Slot("then"), node, "then")
	}
	return evaluateFirstActive(ctx, node.Slot("else"), node, "else")
}
