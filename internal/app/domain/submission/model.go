package submission

import "time"

// Material is one of the seven tracked plastic resin classes.
type Material string

const (
	MaterialPET   Material = "PET"
	MaterialHDPE  Material = "HDPE"
	MaterialPVC   Material = "PVC"
	MaterialLDPE  Material = "LDPE"
	MaterialPP    Material = "PP"
	MaterialPS    Material = "PS"
	MaterialOther Material = "OTHER"
)

// Materials lists every accepted material class.
func Materials() []Material {
	return []Material{
		MaterialPET, MaterialHDPE, MaterialPVC, MaterialLDPE,
		MaterialPP, MaterialPS, MaterialOther,
	}
}

// Valid reports whether m is in the enumerated material set.
func (m Material) Valid() bool {
	for _, known := range Materials() {
		if m == known {
			return true
		}
	}
	return false
}

// Status is the verification state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// ClassifierResult is the image classifier's opinion of a submission,
// consumed as {type, confidence} and never produced here.
type ClassifierResult struct {
	Material   Material `json:"material"`
	Confidence float64  `json:"confidence"`
}

// Submission is a single claimed unit of plastic waste. RewardAmount is set
// exactly once, together with the verified status, and never changes again.
// BatchID, once set, is immutable: a submission belongs to one batch forever.
type Submission struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	Material     Material  `json:"material"`
	WeightKg     float64   `json:"weight_kg"`
	ImageRef     string    `json:"image_ref,omitempty"`
	Location     string    `json:"location,omitempty"`
	Status       Status    `json:"status"`
	Confidence   *float64  `json:"confidence,omitempty"`
	VerifiedBy   string    `json:"verified_by,omitempty"`
	VerifiedAt   time.Time `json:"verified_at"`
	RewardAmount *float64  `json:"reward_amount,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
