package models

import "time"

// SettlementStatus is the relay's view of a submitted bundle.
type SettlementStatus string

const (
	StatusPending SettlementStatus = "Pending"
	StatusLanded  SettlementStatus = "Landed"
	StatusFailed  SettlementStatus = "Failed"
	StatusUnknown SettlementStatus = "Unknown"
)

// ParseSettlementStatus maps a relay status string. Anything unrecognised,
// including "Invalid", is Unknown.
func ParseSettlementStatus(s string) SettlementStatus {
	switch SettlementStatus(s) {
	case StatusPending, StatusLanded, StatusFailed:
		return SettlementStatus(s)
	default:
		return StatusUnknown
	}
}

// Outcome is the terminal result of one swap request.
type Outcome string

const (
	OutcomeLanded  Outcome = "landed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// SettlementEvent is published once a swap request has finished.
type SettlementEvent struct {
	Strategy   string    `json:"strategy"`
	Label      string    `json:"label,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	InputMint  string    `json:"input_mint"`
	OutputMint string    `json:"output_mint"`
	Route      []string  `json:"route"`
	AmountIn   string    `json:"amount_in"`
	QuotedOut  string    `json:"quoted_out,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	BundleID   string    `json:"bundle_id,omitempty"`
	LandedSlot uint64    `json:"landed_slot,omitempty"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
