// Package domain defines the core entities of the payment router: watch
// sessions, detected transfers, settlement attempts, transaction records,
// the error taxonomy, and the store interfaces that back them.
package domain

import "math/big"

// Session is a client-correlated watch request for one expected inbound
// transfer. StartBlock is the scan cursor; it is monotonically non-decreasing
// across polls for the same session id.
type Session struct {
	ID         string
	StartBlock uint64
	CreatedAt  int64 // unix seconds
}

// DetectionStatus classifies the outcome of one detector poll.
type DetectionStatus string

const (
	// DetectionNone means the scanned range held no relevant transfer.
	DetectionNone DetectionStatus = "none"
	// DetectionMatched means a transfer within tolerance of the expected
	// amount was found. At most one match is returned per poll.
	DetectionMatched DetectionStatus = "matched"
	// DetectionInvalid means a transfer arrived whose amount matches neither
	// the expected amount nor any accepted denomination; refund handling is
	// the caller's next step.
	DetectionInvalid DetectionStatus = "invalid"
	// DetectionExpired means the session outlived its watch window; the
	// range was not scanned.
	DetectionExpired DetectionStatus = "expired"
)

// DetectedTransfer is one on-chain Transfer log surfaced by the detector.
// A given (sessionID, txHash, amount) triple is surfaced at most once.
type DetectedTransfer struct {
	TxHash      string
	Amount      string   // human units, e.g. "7.5"
	AmountWei   *big.Int // raw token units
	BlockNumber uint64
}

// Detection is the terminal result of one detector poll.
type Detection struct {
	Status   DetectionStatus
	Transfer *DetectedTransfer // set for matched and invalid
}
