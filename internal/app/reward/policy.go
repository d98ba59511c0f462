// Package reward maps verified material to token amounts. The policy is a
// pure function: reward amounts are stored once on the submission and must
// be reproducible for audit, so nothing here touches a clock, a store or a
// random source.
package reward

import (
	"math"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
)

// Policy computes token rewards from per-kilogram rates.
type Policy struct {
	rates       map[submission.Material]float64
	defaultRate float64
}

// DefaultRates returns the shipped token-per-kg table for the seven material
// classes.
func DefaultRates() map[submission.Material]float64 {
	return map[submission.Material]float64{
		submission.MaterialPET:   10,
		submission.MaterialHDPE:  8,
		submission.MaterialPVC:   4,
		submission.MaterialLDPE:  5,
		submission.MaterialPP:    6,
		submission.MaterialPS:    3,
		submission.MaterialOther: 2,
	}
}

// NewPolicy builds a policy from the given rate table. Nil or empty rates
// fall back to the default table. The lowest configured rate doubles as the
// fallback for unknown material types.
func NewPolicy(rates map[submission.Material]float64) *Policy {
	if len(rates) == 0 {
		rates = DefaultRates()
	}
	copied := make(map[submission.Material]float64, len(rates))
	lowest := math.MaxFloat64
	for material, rate := range rates {
		copied[material] = rate
		if rate < lowest {
			lowest = rate
		}
	}
	return &Policy{rates: copied, defaultRate: lowest}
}

// Reward returns the token amount for the given material and weight, rounded
// to two decimals. Unknown materials earn the lowest rate rather than
// failing: the submission was still verified.
func (p *Policy) Reward(material submission.Material, weightKg float64) float64 {
	if weightKg <= 0 {
		return 0
	}
	rate, ok := p.rates[material]
	if !ok {
		rate = p.defaultRate
	}
	return round2(rate * weightKg)
}

// Rate exposes the per-kg rate used for a material.
func (p *Policy) Rate(material submission.Material) float64 {
	if rate, ok := p.rates[material]; ok {
		return rate
	}
	return p.defaultRate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
