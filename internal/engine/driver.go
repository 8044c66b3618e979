package engine

// RunBacktest is the top-level entry point §6/§7 describe: try the
// Vectorized Engine (C8) when the tree is structurally eligible, and fall
// back to the Walk Engine (C7) transparently on any compilation failure,
// recording a warning either way (§7 "Unsupported constructs").
func RunBacktest(root *FlowNode, db *PriceTable, cfg WalkConfig) (*Result, error) {
	if !CanVectorize(root) {
		return RunWalk(root, db, cfg)
	}

	result, err := RunVectorized(root, db, cfg)
	if err == nil {
		return result, nil
	}

	fallback, walkErr := RunWalk(root, db, cfg)
	if walkErr != nil {
		return nil, walkErr
	}
	fallback.Warnings = append(fallback.Warnings, "vectorized engine fell back to walk engine: "+err.Error())
	return fallback, nil
}
