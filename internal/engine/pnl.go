package engine

import "github.com/shopspring/decimal"

// grossReturn computes Σ_t w_t · (adj_close(t,i)/adj_close(t,i-1) - 1) for
// the allocation decided the previous day, realized on day i (§4.7 step 5).
func grossReturn(db *PriceTable, alloc Allocation, i int) float64 {
	if len(alloc) == 0 || i <= 0 {
		return 0
	}
	total := 0.0
	for ticker, weight := range alloc {
		today, okT := db.AdjClose(ticker, i)
		yesterday, okY := db.AdjClose(ticker, i-1)
		if okT && okY && yesterday != 0 {
			total += weight * (today/yesterday - 1)
		}
	}
	return total
}

// turnoverBetween is half the L1 distance between two allocations over the
// union of their ticker keys (ground:
// original_source/rust-indicators/src/backtest/metrics.rs
// calculate_turnover), §8 P10 / GLOSSARY "Turnover".
func turnoverBetween(yesterday, today Allocation) float64 {
	keys := make(map[string]struct{}, len(yesterday)+len(today))
	for t := range yesterday {
		keys[t] = struct{}{}
	}
	for t := range today {
		keys[t] = struct{}{}
	}
	sum := 0.0
	for t := range keys {
		d := today[t] - yesterday[t]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / 2
}

// turnoverCost applies the flat basis-point cost to a turnover value using
// decimal.Decimal for the money-like multiply/divide, avoiding float
// basis-point drift over long backtests (SPEC_FULL §11 domain-stack wiring
// for shopspring/decimal). The result is converted back to float64 for the
// return series, which remains the engine's native numeric type throughout.
func turnoverCost(turnover, costBps float64) float64 {
	t := decimal.NewFromFloat(turnover)
	bps := decimal.NewFromFloat(costBps)
	cost := t.Mul(bps).Div(decimal.NewFromInt(10000))
	v, _ := cost.Float64()
	return v
}
