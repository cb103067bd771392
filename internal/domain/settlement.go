package domain

import "time"

// TransferMode selects the timing policy of the external hop-routing
// contract: "instant" settles in a single call, "secure" asks the contract
// for an extended multi-step schedule.
type TransferMode string

const (
	ModeInstant TransferMode = "instant"
	ModeSecure  TransferMode = "secure"
)

// Valid reports whether m is a recognised transfer mode.
func (m TransferMode) Valid() bool {
	return m == ModeInstant || m == ModeSecure
}

// SettlementState names a step of the execution state machine. Transitions
// are strictly forward: Validating → Simulating → GasEstimating → Submitting
// → Confirming → one of the terminal states.
type SettlementState string

const (
	StateValidating    SettlementState = "validating"
	StateSimulating    SettlementState = "simulating"
	StateGasEstimating SettlementState = "gas_estimating"
	StateSubmitting    SettlementState = "submitting"
	StateConfirming    SettlementState = "confirming"
	StateCompleted     SettlementState = "completed"
	StateReverted      SettlementState = "reverted"
	StateFailed        SettlementState = "failed"
)

// Terminal reports whether s is a terminal state.
func (s SettlementState) Terminal() bool {
	return s == StateCompleted || s == StateReverted || s == StateFailed
}

// SettlementAttempt tracks one settlement request through the state machine.
// It lives for the duration of a single request.
type SettlementAttempt struct {
	ID          string
	Mode        TransferMode
	State       SettlementState
	TxHash      string
	RouteID     string // opaque id emitted by the routing contract, may be empty
	BlockNumber uint64
	GasUsed     uint64
	Failure     FailureKind
}

// Transaction record lifecycle statuses.
const (
	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusCompleted  = "completed"
	TxStatusFailed     = "failed"
)

// TransactionRecord is the externally persisted lifecycle of one
// client-visible transfer attempt, keyed by a client-generated id. The core
// writes status transitions; storage lives in Postgres.
type TransactionRecord struct {
	ID           string
	Kind         string // "send", "swap", "refund"
	Status       string
	SessionID    string
	Sender       string
	Recipient    string
	TokenAddress string
	TokenSymbol  string
	Amount       string
	Mode         string
	TxHash       string
	RouteID      string
	FailureKind  string
	Error        string
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RouteStatus mirrors the hop-routing contract's per-route metadata, read
// back for progress reporting.
type RouteStatus struct {
	RouteID                   string `json:"routeId"`
	Amount                    string `json:"amount"`
	Sender                    string `json:"sender"`
	Receiver                  string `json:"receiver"`
	Token                     string `json:"token"`
	CreatedAt                 int64  `json:"createdAt"`
	NextStepTime              int64  `json:"nextStepTime"`
	TotalSteps                int64  `json:"totalSteps"`
	CompletedSteps            int64  `json:"completedSteps"`
	Completed                 bool   `json:"completed"`
	AvgDelay                  int64  `json:"avgDelay"`
	IsSecure                  bool   `json:"isSecure"`
	CompletedAt               int64  `json:"completedAt"`
	EstimatedRemainingSeconds int64  `json:"estimatedRemainingSeconds"`
}
