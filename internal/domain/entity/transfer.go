package entity

import "math/big"

// TransferRequest carries the raw user input of one submission attempt.
// It is validated before any provider call and discarded after a terminal outcome.
type TransferRequest struct {
	AssetSymbol string `json:"asset"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	// GasPriceGwei and GasLimit are optional overrides; empty means the
	// provider applies its own defaults.
	GasPriceGwei string `json:"gasPrice,omitempty"`
	GasLimit     string `json:"gasLimit,omitempty"`
}

// TransferPayload is the validated, asset-specific submission payload built
// from a TransferRequest. Exactly one of the two shapes is populated:
// native transfers carry the scaled amount as Value; token transfers carry it
// as TokenAmount together with the token's contract address.
type TransferPayload struct {
	Asset       Asset
	Recipient   string
	Value       *big.Int // native transfers only
	TokenAmount *big.Int // token transfers only
	GasPriceWei *big.Int // nil when no override
	GasLimit    uint64   // 0 when no override
}

// TrackerState is the submission tracker's state machine position.
type TrackerState int

const (
	// TrackerIdle means no submission is in flight; a new one may start.
	TrackerIdle TrackerState = iota
	// TrackerSubmitting means the payload is being sent to the provider.
	TrackerSubmitting
	// TrackerPending means the transaction was broadcast and awaits confirmation.
	TrackerPending
	// TrackerConfirmed is the success terminal state.
	TrackerConfirmed
	// TrackerFailed is the failure terminal state.
	TrackerFailed
)

// String returns the state name for logs and API snapshots.
func (s TrackerState) String() string {
	switch s {
	case TrackerSubmitting:
		return "submitting"
	case TrackerPending:
		return "pending"
	case TrackerConfirmed:
		return "confirmed"
	case TrackerFailed:
		return "failed"
	default:
		return "idle"
	}
}

// TransactionOutcome reports the current submission attempt to the consumer.
type TransactionOutcome struct {
	State   TrackerState `json:"-"`
	Hash    string       `json:"hash,omitempty"`
	Message string       `json:"message"`
}
