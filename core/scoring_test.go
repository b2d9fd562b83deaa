package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreWorkedExamples(t *testing.T) {
	tests := []struct {
		name        string
		impact      float64
		probability float64
		safeguard   float64
		want        float64
		wantBand    string
	}{
		{"moderate scenario", 2, 2, 0.25, math.Exp(2) * 2 / 0.25, SeverityMedium},
		{"worst case weak safeguards", 3, 3, 0.10, math.Exp(3) * 3 / 0.10, SeverityHigh},
		{"best case strong safeguards", 1, 1, 0.95, math.Exp(1) / 0.95, SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.impact, tt.probability, tt.safeguard)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantBand, Classify(got))
		})
	}

	// Spot-check the magnitudes against hand-computed values.
	got, err := Score(2, 2, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 59.11, got, 0.01)

	got, err = Score(3, 3, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 602.57, got, 0.01)
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, SeverityLow, Classify(30.999))
	assert.Equal(t, SeverityMedium, Classify(31.0))
	assert.Equal(t, SeverityMedium, Classify(220.999))
	assert.Equal(t, SeverityHigh, Classify(221.0))
	assert.Equal(t, SeverityLow, Classify(0))
}

func TestScoreMonotonicity(t *testing.T) {
	// Strictly increasing in impact and probability, strictly decreasing in
	// safeguard, each with the other inputs held fixed.
	base, err := Score(2, 2, 0.25)
	require.NoError(t, err)

	higherImpact, err := Score(3, 2, 0.25)
	require.NoError(t, err)
	assert.Greater(t, higherImpact, base)

	higherProb, err := Score(2, 3, 0.25)
	require.NoError(t, err)
	assert.Greater(t, higherProb, base)

	betterSafeguard, err := Score(2, 2, 0.70)
	require.NoError(t, err)
	assert.Less(t, betterSafeguard, base)
}

func TestScoreRejectsInvalidRatings(t *testing.T) {
	tests := []struct {
		name        string
		impact      float64
		probability float64
		safeguard   float64
	}{
		{"fractional impact", 1.5, 2, 0.25},
		{"impact below range", 0, 2, 0.25},
		{"impact above range", 4, 2, 0.25},
		{"fractional probability", 2, 2.5, 0.25},
		{"zero safeguard", 2, 2, 0},
		{"negative safeguard", 2, 2, -0.25},
		{"safeguard above one", 2, 2, 1.01},
		{"NaN impact", math.NaN(), 2, 0.25},
		{"infinite safeguard", 2, 2, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(tt.impact, tt.probability, tt.safeguard)
			var ratingErr *InvalidRatingError
			require.ErrorAs(t, err, &ratingErr)
		})
	}
}

func TestResidualAndReduction(t *testing.T) {
	current, err := Score(2, 2, 0.25)
	require.NoError(t, err)

	residual, err := Residual(1, 1, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 2.86, residual, 0.01)

	pct := ReductionPercent(current, residual)
	assert.InDelta(t, 95.2, pct, 0.1)
}

func TestReductionPercentEdges(t *testing.T) {
	// Same current and residual means no reduction, for any triple.
	for _, triple := range [][3]float64{{1, 1, 0.10}, {2, 3, 0.25}, {3, 1, 0.95}} {
		s, err := Score(triple[0], triple[1], triple[2])
		require.NoError(t, err)
		assert.Zero(t, ReductionPercent(s, s))
	}

	// A residual worse than the current state goes negative, by design.
	assert.Negative(t, ReductionPercent(10, 20))

	// No current risk means nothing to reduce.
	assert.Zero(t, ReductionPercent(0, 5))
}
