package engine

import "sort"

// evaluateFunction implements §4.4.5: score each child of slot "next" by the
// mean metric value over the union of position tickers in its subtree, rank,
// and keep the top/bottom `pick` (ground: nodes/function.rs).
func evaluateFunction(ctx *EvalContext, node *FlowNode) Allocation {
	children := node.Slot("next")
	type scored struct {
		node  *FlowNode
		score float64
	}
	var candidates []scored
	for _, child := range children {
		tickers := collectPositionTickers(child)
		if len(tickers) == 0 {
			continue
		}
		sum, n := 0.0, 0
		for _, t := range tickers {
			v, ok := ctx.Cache.MetricAt(t, node.Metric, node.Window, ctx.IndicatorIndex)
			if !ok {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			continue
		}
		candidates = append(candidates, scored{node: child, score: sum / float64(n)})
	}

	if node.Rank == RankTop {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	} else {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })
	}

	pick := node.Pick
	if pick <= 0 {
		pick = 1
	}
	if pick > len(candidates) {
		pick = len(candidates)
	}

	chosen := make([]*FlowNode, pick)
	for i := 0; i < pick; i++ {
		chosen[i] = candidates[i].node
	}
	children2 := evaluateChildren(ctx, chosen)
	return CombineAllocations(ctx, children2, node.EffectiveWeighting(""), node.EffectiveVolWindow(""))
}

// collectPositionTickers recursively collects every distinct ticker named
// by a Position node anywhere in node's subtree, sorted and deduped (ground:
// nodes/function.rs's union-of-position-tickers scoring input).
func collectPositionTickers(node *FlowNode) []string {
	seen := make(map[string]struct{})
	var walk func(n *FlowNode)
	walk = func(n *FlowNode) {
		if n == nil {
			return
		}
		if n.Kind == KindPosition {
			for _, t := range n.Tickers {
				if !IsEmptyTicker(t) {
					seen[t] = struct{}{}
				}
			}
		}
		for _, children := range n.Slots {
			for _, c := range children {
				walk(c)
			}
		}
	}
	walk(node)

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
