package bounty

import "time"

// PaymentConfidence grades how sure the monitor is that a balance increase
// corresponds to a bounty payout.
type PaymentConfidence string

const (
	PaymentConfidenceLow    PaymentConfidence = "low"
	PaymentConfidenceMedium PaymentConfidence = "medium"
	PaymentConfidenceHigh   PaymentConfidence = "high"
)

// UnknownBountyID marks a payment that could not be matched to a bounty.
const UnknownBountyID = "unknown"

// PaymentDetection is produced by diffing two successive wallet balance
// snapshots. Confidence is high only when the diff matches an outstanding
// bounty's reward within a small tolerance.
type PaymentDetection struct {
	BountyID   string            `json:"bounty_id"`
	Amount     uint64            `json:"amount"`
	Token      string            `json:"token"`
	Signature  string            `json:"signature,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Confidence PaymentConfidence `json:"confidence"`
}
