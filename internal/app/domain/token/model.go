package token

import "time"

// Kind classifies a token transaction.
type Kind string

const (
	KindReward     Kind = "reward"
	KindTransfer   Kind = "transfer"
	KindPurchase   Kind = "purchase"
	KindRedemption Kind = "redemption"
)

// Status is the settlement state of a token transaction. A transaction
// leaves pending exactly once, either synchronously or through
// reconciliation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction is a reward-ledger entry. ExternalRef is the idempotency key
// for reconciliation: once set to a value it is never reassigned.
// SubmissionID keys the one-reward-per-submission rule; it is empty for
// non-reward kinds.
type Transaction struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	Kind         Kind      `json:"kind"`
	Amount       float64   `json:"amount"`
	Metadata     string    `json:"metadata,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	ExternalRef  string    `json:"external_ref,omitempty"`
	Status       Status    `json:"status"`
	FailureNote  string    `json:"failure_note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
