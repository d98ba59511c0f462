package reward

import (
	"testing"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
)

func TestPolicyDeterministic(t *testing.T) {
	policy := NewPolicy(nil)

	first := policy.Reward(submission.MaterialPET, 2.0)
	for i := 0; i < 100; i++ {
		if got := policy.Reward(submission.MaterialPET, 2.0); got != first {
			t.Fatalf("reward drifted on call %d: %v != %v", i, got, first)
		}
	}
	if want := policy.Rate(submission.MaterialPET) * 2.0; first != want {
		t.Fatalf("reward %v, want rate*weight %v", first, want)
	}
}

func TestPolicyRounding(t *testing.T) {
	policy := NewPolicy(map[submission.Material]float64{
		submission.MaterialPET: 3.33,
	})

	if got := policy.Reward(submission.MaterialPET, 0.1); got != 0.33 {
		t.Fatalf("expected 0.33, got %v", got)
	}
}

func TestPolicyUnknownMaterialFallsBack(t *testing.T) {
	policy := NewPolicy(nil)

	got := policy.Reward(submission.Material("CARBON_FIBRE"), 1)
	want := policy.Reward(submission.MaterialOther, 1)
	if got != want {
		t.Fatalf("unknown material reward %v, want lowest rate %v", got, want)
	}
}

func TestPolicyNonPositiveWeight(t *testing.T) {
	policy := NewPolicy(nil)

	if got := policy.Reward(submission.MaterialPET, 0); got != 0 {
		t.Fatalf("zero weight should earn nothing, got %v", got)
	}
	if got := policy.Reward(submission.MaterialPET, -2); got != 0 {
		t.Fatalf("negative weight should earn nothing, got %v", got)
	}
}
