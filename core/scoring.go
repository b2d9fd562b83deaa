// core/scoring.go
//
// Quantitative risk scoring: R = e^W × P / Z, where W (impact) and
// P (probability) are categorical 1-3 ratings and Z (safeguard) rates
// control effectiveness in (0,1]. Better safeguards divide the score down.
package core

import "math"

// Severity bands for a risk score.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Band thresholds, inclusive on the lower edge.
const (
	mediumThreshold = 31.0
	highThreshold   = 221.0
)

// Score computes e^impact × probability / safeguard at full float64
// precision. Rounding for display is the caller's concern. Impact and
// probability must be whole numbers in {1,2,3}; safeguard must lie in (0,1].
// The UI constrains safeguard to {0.10, 0.25, 0.70, 0.95} but any positive
// value up to 1 is accepted here.
func Score(impact, probability, safeguard float64) (float64, error) {
	if err := checkRatings(impact, probability, safeguard); err != nil {
		return 0, err
	}
	return math.Exp(impact) * probability / safeguard, nil
}

// Residual applies the same formula to the target ratings describing the
// risk level expected after the planned treatment.
func Residual(targetImpact, targetProbability, targetSafeguard float64) (float64, error) {
	return Score(targetImpact, targetProbability, targetSafeguard)
}

// Classify maps a score to its severity band.
func Classify(score float64) string {
	switch {
	case score >= highThreshold:
		return SeverityHigh
	case score >= mediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ReductionPercent is the relative improvement the treatment plan promises,
// as a percentage of the current score. Deliberately not clamped: a negative
// result means the planned residual is worse than today and must be surfaced,
// not hidden.
func ReductionPercent(current, residual float64) float64 {
	if current <= 0 {
		return 0
	}
	return 100 * (1 - residual/current)
}

func checkRatings(impact, probability, safeguard float64) error {
	if !isWholeRating(impact) {
		return &InvalidRatingError{Field: "impact", Value: impact}
	}
	if !isWholeRating(probability) {
		return &InvalidRatingError{Field: "probability", Value: probability}
	}
	if math.IsNaN(safeguard) || math.IsInf(safeguard, 0) || safeguard <= 0 || safeguard > 1 {
		return &InvalidRatingError{Field: "safeguard", Value: safeguard}
	}
	return nil
}

func isWholeRating(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if v != math.Trunc(v) {
		return false
	}
	return v >= 1 && v <= 3
}
