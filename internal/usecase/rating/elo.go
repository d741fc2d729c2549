package rating

import "math"

// KFactor is the fixed Elo K-factor applied to both sides.
const KFactor = 32

// EloUpdate computes the paired zero-sum rating deltas for a battle.
// The attacker's expected score follows the standard logistic curve;
// with the same K on both sides the deltas always sum to zero.
func EloUpdate(attackerRating, defenderRating float64, attackWon bool) (attackerDelta, defenderDelta float64) {
	expected := 1 / (1 + math.Pow(10, (defenderRating-attackerRating)/400))
	actual := 0.0
	if attackWon {
		actual = 1.0
	}
	attackerDelta = KFactor * (actual - expected)
	defenderDelta = KFactor * ((1 - actual) - (1 - expected))
	return attackerDelta, defenderDelta
}

// ApplyDelta folds a real-valued delta into an integer-stored rating.
// The delta is accumulated in floating point and rounded only here, at
// the point of writing back, so repeated battles drift by at most one
// unit per battle.
func ApplyDelta(rating int, delta float64) int {
	return int(math.Round(float64(rating) + delta))
}
