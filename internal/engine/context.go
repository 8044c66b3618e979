package engine

// MaxBranchDepth bounds branch-equity recursion (§5, §4.6).
const MaxBranchDepth = 10

// BranchMetricFunc resolves a "branch:SLOT" metric query against the
// enclosing parent node. It is supplied by the Branch Equity component
// (C6) and invoked by the Condition Evaluator (C3) through this indirection
// so C3 carries no compile-time dependency on C6 (SPEC_FULL §9).
type BranchMetricFunc func(ctx *EvalContext, parent *FlowNode, slot, metric string, window, index int) (float64, bool)

// EvalContext is the per-day scratch space threaded through one walk-engine
// day (or one branch-equity sub-simulation day). It is request-scoped, not
// process-global (§5, §9).
type EvalContext struct {
	DB    *PriceTable
	Cache *IndicatorCache

	DecisionIndex  int
	IndicatorIndex int
	DecisionPrice  DecisionPrice

	// BranchParentNode is the node whose "then"/"else" slots a branch-ref
	// resolves against; saved and restored around each evaluate(node) call
	// (SPEC_FULL §9 "Parent-context threading").
	BranchParentNode *FlowNode

	BranchDepth int
	BranchCache map[string]*BranchEquity
	ResolveBranchMetric BranchMetricFunc

	// BranchCacheHits counts memoized branch-equity lookups served from
	// BranchCache; shared (like Warnings) across branch sub-contexts so the
	// request-level total survives the per-day context copies.
	BranchCacheHits *int

	AltExitState map[string]bool

	Warnings *[]string

	UsedScalingFallback bool

	// MaxDepth overrides MaxBranchDepth for this request (0 means use the
	// package default); threaded from WalkConfig.MaxBranchDepth so an
	// operator can tighten the recursion bound without recompiling (§5).
	MaxDepth int
}

// NewEvalContext builds a fresh request-scoped context over db/cache.
func NewEvalContext(db *PriceTable, cache *IndicatorCache, mode Mode) *EvalContext {
	warnings := make([]string, 0)
	return &EvalContext{
		DB:           db,
		Cache:        cache,
		DecisionPrice: DecisionPriceOf(mode),
		BranchCache:  make(map[string]*BranchEquity),
		BranchCacheHits: new(int),
		AltExitState: make(map[string]bool),
		Warnings:     &warnings,
	}
}

// SetDay advances the context to decision day i, deriving IndicatorIndex per
// the Open/Close decision-price rule (§4.7, §9 "Decision/realization lag").
func (ctx *EvalContext) SetDay(i int) {
	ctx.DecisionIndex = i
	if ctx.DecisionPrice == DecisionOpen {
		ctx.IndicatorIndex = i - 1
	} else {
		ctx.IndicatorIndex = i
	}
}

// Warn appends a warning to the request's accumulated warning list (§7).
func (ctx *EvalContext) Warn(msg string) {
	*ctx.Warnings = append(*ctx.Warnings, msg)
}

// CanRecurseBranch reports whether one more level of branch-equity
// recursion is permitted (§5: MAX_DEPTH = 10, overridable per request via
// EvalContext.MaxDepth).
func (ctx *EvalContext) CanRecurseBranch() bool {
	limit := MaxBranchDepth
	if ctx.MaxDepth > 0 {
		limit = ctx.MaxDepth
	}
	return ctx.BranchDepth < limit
}

// branchSubcontext creates a sub-context for one day of branch-equity
// simulation: it shares the cache, alt-exit state and branch cache with the
// parent (branch simulations don't need isolation from the parent's
// memoized state, only from its decision/indicator indices), but increments
// recursion depth.
func (ctx *EvalContext) branchSubcontext() *EvalContext {
	return &EvalContext{
		DB:                  ctx.DB,
		Cache:               ctx.Cache,
		DecisionPrice:       ctx.DecisionPrice,
		BranchDepth:         ctx.BranchDepth + 1,
		BranchCache:         ctx.BranchCache,
		BranchCacheHits:     ctx.BranchCacheHits,
		ResolveBranchMetric: ctx.ResolveBranchMetric,
		AltExitState:        ctx.AltExitState,
		Warnings:            ctx.Warnings,
		MaxDepth:            ctx.MaxDepth,
	}
}

// metricAt resolves a (ticker, metric, window) value at the indicator
// index, delegating branch-ref tickers to the injected BranchMetricFunc
// (§4.3 "Value lookup").
func (ctx *EvalContext) metricAt(ticker, metric string, window int) (float64, bool) {
	if slotName, isBranch := ParseBranchRef(ticker); isBranch {
		if ctx.ResolveBranchMetric == nil || ctx.BranchParentNode == nil {
			return 0, false
		}
		slot, ok := branchRefSlot(slotName)
		if !ok {
			return 0, false
		}
		return ctx.ResolveBranchMetric(ctx, ctx.BranchParentNode, slot, metric, window, ctx.IndicatorIndex)
	}
	return ctx.Cache.MetricAt(ticker, metric, window, ctx.IndicatorIndex)
}
