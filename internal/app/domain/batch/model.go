package batch

import (
	"time"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
)

// Status tracks a batch through the processing pipeline. Transitions only
// move forward; stages may be skipped but never revisited.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusProcessed Status = "processed"
	StatusRecycled  Status = "recycled"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusVerified:  1,
	StatusProcessed: 2,
	StatusRecycled:  3,
}

// Rank returns the position of s in the fixed ordering, or -1 for unknown
// statuses.
func Rank(s Status) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvance reports whether to is strictly later than from.
func CanAdvance(from, to Status) bool {
	fr, tr := Rank(from), Rank(to)
	return fr >= 0 && tr >= 0 && tr > fr
}

// Batch is a producer-declared aggregation of material. Membership sets hold
// each actor at most once; ExternalRef is written once when the settlement
// backend reports the batch.
type Batch struct {
	ID            string              `json:"id"`
	ProducerID    string              `json:"producer_id"`
	Material      submission.Material `json:"material"`
	WeightKg      float64             `json:"weight_kg"`
	Status        Status              `json:"status"`
	SubmissionIDs []string            `json:"submission_ids,omitempty"`
	Consumers     []string            `json:"consumers,omitempty"`
	Recyclers     []string            `json:"recyclers,omitempty"`
	ExternalRef   string              `json:"external_ref,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
