package engine

import "sort"

// tickerLookback pairs a ticker expression with the lookback it requires
// (used for ratio-ticker warmup; ground: runner.rs's ratio-usage
// collection).
type tickerLookback struct {
	ticker   string
	lookback int
}

// CollectTickers walks the whole tree and returns every distinct ticker
// referenced anywhere (positions, conditions, scaling, entry/exit,
// numbered items), expanding ratio tickers into both legs, alongside the
// position-only tickers and the ratio usages with their lookback (ground:
// runner.rs's collect_*_tickers family).
func CollectTickers(root *FlowNode) (all []string, positionOnly []string, ratios []tickerLookback, hasBranchRef bool) {
	allSet := make(map[string]struct{})
	posSet := make(map[string]struct{})
	ratioSet := make(map[string]int)

	addTicker := func(t string) {
		if IsEmptyTicker(t) {
			return
		}
		if _, isBranch := ParseBranchRef(t); isBranch {
			hasBranchRef = true
			return
		}
		if num, den, isRatio := ParseRatioTicker(t); isRatio {
			allSet[num] = struct{}{}
			allSet[den] = struct{}{}
			return
		}
		allSet[t] = struct{}{}
	}
	addRatio := func(t string, lookback int) {
		if num, den, isRatio := ParseRatioTicker(t); isRatio {
			allSet[num] = struct{}{}
			allSet[den] = struct{}{}
			if cur, ok := ratioSet[t]; !ok || lookback > cur {
				ratioSet[t] = lookback
			}
		}
	}
	addCondition := func(c *ConditionLine) {
		addTicker(c.Ticker)
		addRatio(c.Ticker, Lookback(c.Metric, c.Window))
		if c.Expanded() {
			rt := c.RightTicker
			if rt == "" {
				rt = c.Ticker
			}
			addTicker(rt)
			addRatio(rt, Lookback(c.RightMetric, c.RightWindow))
		}
	}

	var walk func(n *FlowNode)
	walk = func(n *FlowNode) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindPosition:
			for _, t := range n.Tickers {
				if !IsEmptyTicker(t) {
					if _, isBranch := ParseBranchRef(t); !isBranch {
						posSet[t] = struct{}{}
					}
					addTicker(t)
				}
			}
		case KindIndicator:
			for i := range n.Conditions {
				addCondition(&n.Conditions[i])
			}
		case KindNumbered:
			for _, item := range n.Items {
				for i := range item.Conditions {
					addCondition(&item.Conditions[i])
				}
			}
		case KindScaling:
			addTicker(n.ScaleTicker)
			addRatio(n.ScaleTicker, Lookback(n.ScaleMetric, n.ScaleWindow))
		case KindAltExit:
			for i := range n.EntryConditions {
				addCondition(&n.EntryConditions[i])
			}
			for i := range n.ExitConditions {
				addCondition(&n.ExitConditions[i])
			}
		case KindFunction:
			// Function's scoring tickers are position tickers collected via
			// the subtree walk below; nothing extra to add here.
		}
		for _, children := range n.Slots {
			for _, c := range children {
				walk(c)
			}
		}
	}
	walk(root)

	toSorted := func(m map[string]struct{}) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	all = toSorted(allSet)
	positionOnly = toSorted(posSet)
	for t, lb := range ratioSet {
		ratios = append(ratios, tickerLookback{ticker: t, lookback: lb})
	}
	sort.Slice(ratios, func(i, j int) bool { return ratios[i].ticker < ratios[j].ticker })
	return all, positionOnly, ratios, hasBranchRef
}

// CanVectorize implements the vectorized engine's applicability predicate
// (§4.8): false if the tree contains AltExit, Call, or any branch-ref
// ticker, recursively (ground: polars_engine.rs can_vectorize).
func CanVectorize(node *FlowNode) bool {
	if node == nil {
		return true
	}
	switch node.Kind {
	case KindAltExit, KindCall:
		return false
	}
	if nodeReferencesBranch(node) {
		return false
	}
	for _, children := range node.Slots {
		for _, c := range children {
			if !CanVectorize(c) {
				return false
			}
		}
	}
	return true
}

func nodeReferencesBranch(node *FlowNode) bool {
	check := func(t string) bool {
		_, isBranch := ParseBranchRef(t)
		return isBranch
	}
	for _, t := range node.Tickers {
		if check(t) {
			return true
		}
	}
	for i := range node.Conditions {
		if check(node.Conditions[i].Ticker) || check(node.Conditions[i].RightTicker) {
			return true
		}
	}
	for _, item := range node.Items {
		for i := range item.Conditions {
			if check(item.Conditions[i].Ticker) || check(item.Conditions[i].RightTicker) {
				return true
			}
		}
	}
	if check(node.ScaleTicker) {
		return true
	}
	for i := range node.EntryConditions {
		if check(node.EntryConditions[i].Ticker) || check(node.EntryConditions[i].RightTicker) {
			return true
		}
	}
	for i := range node.ExitConditions {
		if check(node.ExitConditions[i].Ticker) || check(node.ExitConditions[i].RightTicker) {
			return true
		}
	}
	return false
}
