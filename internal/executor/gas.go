package executor

// GasPolicy turns a raw gas estimate into a submit limit: safety multiplier,
// then clamp to [Floor, Ceiling]. A failed estimate falls back to Fallback
// instead of failing the request.
type GasPolicy struct {
	Multiplier float64
	Floor      uint64
	Ceiling    uint64
	Fallback   uint64
}

// Default policies. Routing calls fan out into multi-step contract logic and
// get the wider band; refunds are a single transfer.
var (
	RoutingGas = GasPolicy{Multiplier: 1.3, Floor: 500_000, Ceiling: 8_000_000, Fallback: 2_000_000}
	RefundGas  = GasPolicy{Multiplier: 1.2, Floor: 100_000, Ceiling: 3_000_000, Fallback: 500_000}
)

// Limit computes the gas limit for a submit given the estimate outcome.
func (p GasPolicy) Limit(estimate uint64, err error) uint64 {
	if err != nil {
		return p.Fallback
	}
	limit := uint64(float64(estimate) * p.Multiplier)
	if limit < p.Floor {
		limit = p.Floor
	}
	if limit > p.Ceiling {
		limit = p.Ceiling
	}
	return limit
}
