// Package engine implements the historical strategy backtester's evaluation
// core: the strategy tree, the ternary condition language, the indicator
// cache, the two execution engines (day-by-day walk and vectorized), and the
// metrics aggregator.
package engine

import "strings"

// BlockKind identifies the evaluation rule a FlowNode follows.
type BlockKind string

const (
	KindBasic     BlockKind = "basic"
	KindIndicator BlockKind = "indicator"
	KindFunction  BlockKind = "function"
	KindNumbered  BlockKind = "numbered"
	KindPosition  BlockKind = "position"
	KindScaling   BlockKind = "scaling"
	KindAltExit   BlockKind = "altExit"
	KindCall      BlockKind = "call"
)

// Comparator is the right-hand relation applied by a ConditionLine.
type Comparator string

const (
	CmpGt         Comparator = "Gt"
	CmpLt         Comparator = "Lt"
	CmpCrossAbove Comparator = "CrossAbove"
	CmpCrossBelow Comparator = "CrossBelow"
)

// ConditionType marks how a ConditionLine joins the running AND/OR chain.
type ConditionType string

const (
	CondIf  ConditionType = "If"
	CondAnd ConditionType = "And"
	CondOr  ConditionType = "Or"
)

// Quantifier selects the branch rule for a Numbered node.
type Quantifier string

const (
	QuantAny      Quantifier = "Any"
	QuantAll      Quantifier = "All"
	QuantNone     Quantifier = "None"
	QuantExactly  Quantifier = "Exactly"
	QuantAtLeast  Quantifier = "AtLeast"
	QuantAtMost   Quantifier = "AtMost"
	QuantLadder   Quantifier = "Ladder"
)

// RankDirection selects which end of the score ranking a Function node
// keeps.
type RankDirection string

const (
	RankTop    RankDirection = "Top"
	RankBottom RankDirection = "Bottom"
)

// DecisionPrice is which bar's price feeds indicator computation relative to
// the day a decision is realized.
type DecisionPrice int

const (
	DecisionClose DecisionPrice = iota
	DecisionOpen
)

// Mode is the four-letter decision/realization price encoding accepted at
// the external interface (§6). The engine's one required observable is the
// Open/Close split captured by DecisionPrice; the second letter (realization
// price) does not change the return formula in this engine, which always
// realizes against adj-close (documented in SPEC_FULL §4.7).
type Mode string

const (
	ModeCC Mode = "CC"
	ModeOO Mode = "OO"
	ModeOC Mode = "OC"
	ModeCO Mode = "CO"
)

// DecisionPriceOf returns the decision-price half of a Mode's encoding.
func DecisionPriceOf(m Mode) DecisionPrice {
	switch m {
	case ModeOO, ModeOC:
		return DecisionOpen
	default:
		return DecisionClose
	}
}

// EmptyTicker is the literal sentinel for "no ticker" in a Position list.
const EmptyTicker = "Empty"

// IsEmptyTicker reports whether t is one of the two "no ticker" sentinels.
func IsEmptyTicker(t string) bool {
	return t == "" || t == EmptyTicker
}

// WeightingMode selects how the Weighting Engine (C5) combines sibling
// allocations.
type WeightingMode string

const (
	WeightEqual    WeightingMode = "equal"
	WeightDefined  WeightingMode = "defined"
	WeightInverse  WeightingMode = "inverse"
	WeightPro      WeightingMode = "pro"
	WeightCapped   WeightingMode = "capped"
)

// ConditionLine is one line of a condition list (§3).
type ConditionLine struct {
	Type ConditionType `json:"type"`

	Metric string `json:"metric"`
	Window int    `json:"window"`
	Ticker string `json:"ticker"`

	Comparator Comparator `json:"comparator"`
	Threshold  float64    `json:"threshold"`

	RightTicker string `json:"right_ticker,omitempty"`
	RightMetric string `json:"right_metric,omitempty"`
	RightWindow int    `json:"right_window,omitempty"`

	ForDays int `json:"for_days,omitempty"`

	DateMonth int `json:"date_month,omitempty"`
	DateDay   int `json:"date_day,omitempty"`
	DateTo    *DateMD `json:"date_to,omitempty"`
}

// DateMD is a month/day pair used by the date predicate's expanded range
// form.
type DateMD struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Expanded reports whether the condition compares against another metric
// series rather than a constant threshold.
func (c *ConditionLine) Expanded() bool {
	return c.RightTicker != "" || c.RightMetric != ""
}

// NumberedItem is one entry of a Numbered node: its own condition list plus
// an optional group-logic override ("and"/"or").
type NumberedItem struct {
	Conditions []ConditionLine `json:"conditions"`
	Logic      string          `json:"logic,omitempty"`
}

// FlowNode is one node of the strategy tree (§3).
type FlowNode struct {
	ID   string    `json:"id"`
	Kind BlockKind `json:"kind"`

	// Children by slot: "next", "then", "else", "ladder-N".
	Slots map[string][]*FlowNode `json:"slots,omitempty"`

	// Position
	Tickers []string `json:"tickers,omitempty"`

	// Indicator
	Conditions []ConditionLine `json:"conditions,omitempty"`

	// Numbered
	Quantifier Quantifier     `json:"quantifier,omitempty"`
	N          int            `json:"n,omitempty"`
	Items      []NumberedItem `json:"items,omitempty"`

	// Function
	Metric string        `json:"metric,omitempty"`
	Window int           `json:"window,omitempty"`
	Pick   int           `json:"bottom,omitempty"`
	Rank   RankDirection `json:"rank,omitempty"`

	// Scaling
	ScaleTicker string  `json:"scale_ticker,omitempty"`
	ScaleMetric string  `json:"scale_metric,omitempty"`
	ScaleWindow int     `json:"scale_window,omitempty"`
	From        float64 `json:"from,omitempty"`
	To          float64 `json:"to,omitempty"`

	// AltExit
	EntryConditions []ConditionLine `json:"entry_conditions,omitempty"`
	ExitConditions  []ConditionLine `json:"exit_conditions,omitempty"`

	// Call
	CallRef string `json:"call_ref,omitempty"`

	// Weighting (applies to Basic/Function/Numbered/ladder composition)
	Weighting       WeightingMode `json:"weighting,omitempty"`
	WeightingThen   WeightingMode `json:"weighting_then,omitempty"`
	WeightingElse   WeightingMode `json:"weighting_else,omitempty"`
	VolWindow       int           `json:"vol_window,omitempty"`
	VolWindowThen   int           `json:"vol_window_then,omitempty"`
	VolWindowElse   int           `json:"vol_window_else,omitempty"`
	CappedFallback  string        `json:"capped_fallback,omitempty"`
}

// Slot returns the ordered children for the named slot, or nil.
func (n *FlowNode) Slot(name string) []*FlowNode {
	if n.Slots == nil {
		return nil
	}
	return n.Slots[name]
}

// EffectiveWeighting resolves the weighting mode for a given branch slot
// ("then"/"else"), falling back to the node's base Weighting when the
// branch-specific override is unset, defaulting to Equal.
func (n *FlowNode) EffectiveWeighting(slot string) WeightingMode {
	var override WeightingMode
	switch slot {
	case "then":
		override = n.WeightingThen
	case "else":
		override = n.WeightingElse
	}
	if override != "" {
		return override
	}
	if n.Weighting != "" {
		return n.Weighting
	}
	return WeightEqual
}

// EffectiveVolWindow resolves the volatility window for Inverse/Pro
// weighting, falling back to the branch-specific override, then the base
// VolWindow, then a default of 20.
func (n *FlowNode) EffectiveVolWindow(slot string) int {
	var override int
	switch slot {
	case "then":
		override = n.VolWindowThen
	case "else":
		override = n.VolWindowElse
	}
	if override > 0 {
		return override
	}
	if n.VolWindow > 0 {
		return n.VolWindow
	}
	return 20
}

// Allocation maps ticker to portfolio weight; an empty map means cash.
type Allocation map[string]float64

// Normalize scales the allocation so weights sum to 1, leaving it unchanged
// if the total is non-positive.
func (a Allocation) Normalize() Allocation {
	total := 0.0
	for _, w := range a {
		total += w
	}
	if total <= 0 {
		return a
	}
	out := make(Allocation, len(a))
	for t, w := range a {
		out[t] = w / total
	}
	return out
}

// ParseBranchRef reports whether ticker is a "branch:SLOT" reference and
// returns the slot name.
func ParseBranchRef(ticker string) (slot string, ok bool) {
	const prefix = "branch:"
	if !strings.HasPrefix(ticker, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ticker, prefix), true
}

// branchRefSlot maps a branch-ref slot name to the tree slot it resolves
// against ("then" or "else"), per §3.
func branchRefSlot(name string) (string, bool) {
	switch name {
	case "from", "then", "enter":
		return "then", true
	case "to", "else", "exit":
		return "else", true
	default:
		return "", false
	}
}

// ParseRatioTicker reports whether ticker is a "NUM/DEN" ratio expression.
func ParseRatioTicker(ticker string) (num, den string, ok bool) {
	idx := strings.IndexByte(ticker, '/')
	if idx <= 0 || idx == len(ticker)-1 {
		return "", "", false
	}
	return ticker[:idx], ticker[idx+1:], true
}
