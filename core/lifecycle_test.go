package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestRisk() *models.Risk {
	r := &models.Risk{
		ID:        primitive.NewObjectID(),
		AssetName: "customer database",
		Status:    RiskStatusInReview,
		CreatedAt: testNow.Add(-24 * time.Hour),
	}
	if err := ApplyRatings(r, 2, 2, 0.25); err != nil {
		panic(err)
	}
	return r
}

func TestApplyRatingsRecomputesScore(t *testing.T) {
	r := newTestRisk()
	assert.InDelta(t, 59.11, r.RiskScore, 0.01)
	assert.Equal(t, SeverityMedium, r.Severity)

	require.NoError(t, ApplyRatings(r, 3, 3, 0.10))
	assert.InDelta(t, 602.57, r.RiskScore, 0.01)
	assert.Equal(t, SeverityHigh, r.Severity)
}

func TestApplyRatingsRejectedOnClosedRisk(t *testing.T) {
	r := newTestRisk()
	require.NoError(t, CloseRisk(r, testNow))

	var vErr *ValidationError
	require.ErrorAs(t, ApplyRatings(r, 1, 1, 0.95), &vErr)
	require.ErrorAs(t, ApplyTargetRatings(r, 1, 1, 0.95), &vErr)
}

func TestApplyTargetRatingsSetsResidual(t *testing.T) {
	r := newTestRisk()
	require.NoError(t, ApplyTargetRatings(r, 1, 1, 0.95))
	assert.InDelta(t, 2.86, r.ResidualRisk, 0.01)
	assert.InDelta(t, 95.2, ReductionPercent(r.RiskScore, r.ResidualRisk), 0.1)
}

func TestAcceptRisk(t *testing.T) {
	r := newTestRisk()

	var vErr *ValidationError
	require.ErrorAs(t, AcceptRisk(r, "", "", testNow), &vErr)

	require.NoError(t, AcceptRisk(r, "cso@example.com", "residual risk within appetite", testNow))
	assert.True(t, r.Accepted())
	assert.Equal(t, "cso@example.com", r.AcceptedBy)
	require.NotNil(t, r.AcceptedAt)
	assert.Equal(t, testNow, *r.AcceptedAt)

	// Acceptance and status are orthogonal axes.
	assert.Equal(t, RiskStatusInReview, r.Status)

	// Re-accepting is the re-affirm action: it overwrites, never errors.
	later := testNow.Add(48 * time.Hour)
	require.NoError(t, AcceptRisk(r, "deputy@example.com", "re-affirmed after audit", later))
	assert.Equal(t, "deputy@example.com", r.AcceptedBy)
	assert.Equal(t, later, *r.AcceptedAt)
}

func TestCloseRiskIsTerminal(t *testing.T) {
	r := newTestRisk()
	require.NoError(t, CloseRisk(r, testNow))
	assert.Equal(t, RiskStatusClosed, r.Status)
	require.NotNil(t, r.ClosedAt)

	var vErr *ValidationError
	require.ErrorAs(t, CloseRisk(r, testNow), &vErr)
	require.ErrorAs(t, AcceptRisk(r, "cso@example.com", "", testNow), &vErr)
	require.ErrorAs(t, MarkRiskReviewed(r, testNow), &vErr)
}

func TestIsOverdueForReview(t *testing.T) {
	created := testNow.Add(-200 * 24 * time.Hour)

	// Never reviewed and old: overdue.
	assert.True(t, IsOverdueForReview(nil, created, testNow))

	// Never reviewed but newly created: not overdue yet.
	assert.False(t, IsOverdueForReview(nil, testNow.Add(-10*24*time.Hour), testNow))

	recent := testNow.Add(-10 * 24 * time.Hour)
	assert.False(t, IsOverdueForReview(&recent, created, testNow))

	stale := testNow.Add(-91 * 24 * time.Hour)
	assert.True(t, IsOverdueForReview(&stale, created, testNow))

	exactly := testNow.Add(-ReviewInterval)
	assert.False(t, IsOverdueForReview(&exactly, created, testNow))
}

func TestMarkRiskReviewed(t *testing.T) {
	r := newTestRisk()
	require.NoError(t, MarkRiskReviewed(r, testNow))
	require.NotNil(t, r.LastReviewAt)
	assert.Equal(t, testNow, *r.LastReviewAt)
	require.NotNil(t, r.NextReviewDate)
	assert.Equal(t, testNow.Add(ReviewInterval), *r.NextReviewDate)
	assert.False(t, IsOverdueForReview(r.LastReviewAt, r.CreatedAt, testNow))
}

func TestValidateExceptionWindow(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	var vErr *ValidationError

	// Exactly six months out is allowed.
	require.NoError(t, ValidateExceptionWindow(start, start.AddDate(0, 6, 0)))

	// Seven months is past the ceiling.
	require.ErrorAs(t, ValidateExceptionWindow(start, start.AddDate(0, 7, 0)), &vErr)

	// One day past the ceiling is still an error, not a clamp.
	require.ErrorAs(t, ValidateExceptionWindow(start, start.AddDate(0, 6, 1)), &vErr)

	// Expiry before start is nonsense.
	require.ErrorAs(t, ValidateExceptionWindow(start, start.AddDate(0, 0, -1)), &vErr)
}

func TestExceptionExpiryFlags(t *testing.T) {
	today := testNow

	assert.True(t, IsExceptionExpired(today.Add(-24*time.Hour), today))
	assert.False(t, IsExceptionExpired(today, today))
	assert.False(t, IsExceptionExpired(today.Add(24*time.Hour), today))

	assert.True(t, IsExceptionExpiringSoon(today, today))
	assert.True(t, IsExceptionExpiringSoon(today.Add(30*24*time.Hour), today))
	assert.False(t, IsExceptionExpiringSoon(today.Add(31*24*time.Hour), today))
	assert.False(t, IsExceptionExpiringSoon(today.Add(-24*time.Hour), today))
}

func validDraft() ExceptionDraft {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return ExceptionDraft{
		OrganizationID: primitive.NewObjectID(),
		PolicyID:       primitive.NewObjectID(),
		OrgUnitID:      primitive.NewObjectID(),
		Title:          "legacy TLS on payment gateway",
		RequestedBy:    "ops@example.com",
		StartDate:      start,
		ExpiryDate:     start.AddDate(0, 3, 0),
		AssetName:      "payment gateway",
		Impact:         2,
		Probability:    2,
		Safeguard:      0.25,
	}
}

func TestNewExceptionWithRisk(t *testing.T) {
	d := validDraft()
	exc, risk, err := NewExceptionWithRisk(d, testNow)
	require.NoError(t, err)

	assert.Equal(t, ExceptionStatusRequested, exc.Status)
	assert.Equal(t, risk.ID, exc.RiskID)
	assert.False(t, exc.RiskID.IsZero())
	assert.Equal(t, d.AssetName, risk.AssetName)
	assert.Equal(t, RiskStatusInReview, risk.Status)
	assert.InDelta(t, 59.11, risk.RiskScore, 0.01)
	assert.Equal(t, SeverityMedium, risk.Severity)
}

func TestNewExceptionWithRiskFailsAtomically(t *testing.T) {
	var vErr *ValidationError

	tests := []struct {
		name   string
		mutate func(*ExceptionDraft)
	}{
		{"missing asset name", func(d *ExceptionDraft) { d.AssetName = "" }},
		{"missing impact", func(d *ExceptionDraft) { d.Impact = 0 }},
		{"missing probability", func(d *ExceptionDraft) { d.Probability = 0 }},
		{"missing safeguard", func(d *ExceptionDraft) { d.Safeguard = 0 }},
		{"missing title", func(d *ExceptionDraft) { d.Title = "" }},
		{"missing requester", func(d *ExceptionDraft) { d.RequestedBy = "" }},
		{"expiry beyond ceiling", func(d *ExceptionDraft) { d.ExpiryDate = d.StartDate.AddDate(0, 7, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			exc, risk, err := NewExceptionWithRisk(d, testNow)
			require.ErrorAs(t, err, &vErr)
			// Nothing half-built comes back.
			assert.True(t, exc.ID.IsZero())
			assert.True(t, risk.ID.IsZero())
		})
	}
}

func TestExceptionTransitions(t *testing.T) {
	exc, _, err := NewExceptionWithRisk(validDraft(), testNow)
	require.NoError(t, err)

	var vErr *ValidationError

	// Cannot activate before approval.
	require.ErrorAs(t, ActivateException(&exc, testNow), &vErr)

	require.ErrorAs(t, ApproveException(&exc, "", testNow), &vErr)
	require.NoError(t, ApproveException(&exc, "ciso@example.com", testNow))
	assert.Equal(t, ExceptionStatusApproved, exc.Status)
	assert.Equal(t, "ciso@example.com", exc.ApprovedBy)

	// Approval is not repeatable.
	require.ErrorAs(t, ApproveException(&exc, "ciso@example.com", testNow), &vErr)

	require.NoError(t, ActivateException(&exc, testNow))
	assert.Equal(t, ExceptionStatusActive, exc.Status)

	require.NoError(t, ArchiveException(&exc, testNow))
	assert.Equal(t, ExceptionStatusArchived, exc.Status)
	require.NotNil(t, exc.ClosedAt)

	// Archived is terminal and immutable.
	require.ErrorAs(t, ArchiveException(&exc, testNow), &vErr)
	require.ErrorAs(t, RescheduleException(&exc, exc.StartDate, exc.ExpiryDate, testNow), &vErr)
}

func TestRescheduleException(t *testing.T) {
	exc, _, err := NewExceptionWithRisk(validDraft(), testNow)
	require.NoError(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, RescheduleException(&exc, exc.StartDate, exc.StartDate.AddDate(0, 7, 0), testNow), &vErr)

	shorter := exc.StartDate.AddDate(0, 1, 0)
	require.NoError(t, RescheduleException(&exc, exc.StartDate, shorter, testNow))
	assert.Equal(t, shorter, exc.ExpiryDate)
}
