package domain

import "errors"

// Sentinel errors forming the settlement error taxonomy. Callers classify
// outcomes with errors.Is rather than matching message strings: validation
// and configuration errors never reach the chain, simulation and liquidity
// failures recover into a refund flow, reverts and timeouts are terminal.
var (
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks a missing address, key, or endpoint. Fatal,
	// surfaced at startup or first use, never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks malformed caller input (bad address, non-positive
	// amount). Surfaced as HTTP 400.
	ErrValidation = errors.New("validation error")

	// ErrSimulationFailed marks a read-only call that would revert. No
	// transaction was submitted and no gas was spent.
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrNoLiquidity marks a route search that produced no positive quote.
	// Triggers the refund flow, not a bare failure.
	ErrNoLiquidity = errors.New("no liquidity available")

	// ErrReverted marks a transaction that was mined with status 0. Gas was
	// spent; logged distinctly from simulation failure.
	ErrReverted = errors.New("transaction reverted on-chain")

	// ErrConfirmTimeout marks a submitted transaction whose mined status is
	// still unknown after the wait budget. Must not be blindly resubmitted.
	ErrConfirmTimeout = errors.New("confirmation timeout")

	// ErrTransientRPC marks a provider failure during a read-only call. The
	// poll is safe to retry; the session cursor must not have advanced.
	ErrTransientRPC = errors.New("transient rpc error")

	ErrLockHeld = errors.New("lock already held")
)

// FailureKind tags a terminal settlement failure so callers can branch on it
// structurally.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureConfiguration FailureKind = "configuration"
	FailureValidation    FailureKind = "validation"
	FailureSimulation    FailureKind = "simulation"
	FailureNoLiquidity   FailureKind = "no_liquidity"
	FailureReverted      FailureKind = "reverted"
	FailureTimeout       FailureKind = "confirm_timeout"
	FailureTransient     FailureKind = "transient_rpc"
	FailureUnknown       FailureKind = "unknown"
)

// ClassifyFailure maps an error onto its FailureKind via the sentinel chain.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrConfiguration):
		return FailureConfiguration
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrSimulationFailed):
		return FailureSimulation
	case errors.Is(err, ErrNoLiquidity):
		return FailureNoLiquidity
	case errors.Is(err, ErrReverted):
		return FailureReverted
	case errors.Is(err, ErrConfirmTimeout):
		return FailureTimeout
	case errors.Is(err, ErrTransientRPC):
		return FailureTransient
	default:
		return FailureUnknown
	}
}
