// core/lifecycle.go
//
// Treatment-lifecycle rules for Risk and PolicyException records. Everything
// here is pure: the caller passes the current time in and persists whatever
// comes back. Closed and archived are terminal; there is no reopen.
package core

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/models"
)

// Risk statuses. Acceptance is tracked separately via AcceptedBy/AcceptedAt;
// a risk can be accepted while its status is still in_review.
const (
	RiskStatusDraft    = "draft"
	RiskStatusInReview = "in_review"
	RiskStatusAccepted = "accepted"
	RiskStatusClosed   = "closed"
)

// PolicyException statuses.
const (
	ExceptionStatusRequested = "requested"
	ExceptionStatusApproved  = "approved"
	ExceptionStatusActive    = "active"
	ExceptionStatusArchived  = "archived"
)

// ReviewInterval is how long a risk may go without review before it is
// flagged overdue.
const ReviewInterval = 90 * 24 * time.Hour

// ExpiringSoonWindow flags exceptions whose expiry is this close.
const ExpiringSoonWindow = 30 * 24 * time.Hour

// expiryCeilingMonths caps an exception's lifetime from its start date.
const expiryCeilingMonths = 6

// ApplyRatings sets the current-scenario ratings on a risk and recomputes
// RiskScore and Severity. Rejected once the risk is closed.
func ApplyRatings(r *models.Risk, impact, probability, safeguard float64) error {
	if r.Status == RiskStatusClosed {
		return validationErrorf("risk is closed; ratings can no longer be edited")
	}
	score, err := Score(impact, probability, safeguard)
	if err != nil {
		return err
	}
	r.ImpactLevel = int(impact)
	r.ProbabilityLevel = int(probability)
	r.SafeguardRating = safeguard
	r.RiskScore = score
	r.Severity = Classify(score)
	return nil
}

// ApplyTargetRatings sets the post-treatment target ratings and recomputes
// ResidualRisk. Same closed-risk rule as ApplyRatings.
func ApplyTargetRatings(r *models.Risk, impact, probability, safeguard float64) error {
	if r.Status == RiskStatusClosed {
		return validationErrorf("risk is closed; ratings can no longer be edited")
	}
	residual, err := Residual(impact, probability, safeguard)
	if err != nil {
		return err
	}
	r.TargetImpact = int(impact)
	r.TargetProbability = int(probability)
	r.TargetSafeguard = safeguard
	r.ResidualRisk = residual
	return nil
}

// AcceptRisk records a formal acceptance sign-off. Re-accepting simply
// overwrites the acceptor and timestamp; it is the re-affirm action, not an
// error. Acceptance does not touch Status.
func AcceptRisk(r *models.Risk, acceptedBy, justification string, now time.Time) error {
	if acceptedBy == "" {
		return validationErrorf("acceptedBy is required")
	}
	if r.Status == RiskStatusClosed {
		return validationErrorf("risk is closed and cannot be accepted")
	}
	r.AcceptedBy = acceptedBy
	r.AcceptanceJustification = justification
	r.AcceptedAt = &now
	return nil
}

// CloseRisk is one-directional; there is no reopen.
func CloseRisk(r *models.Risk, now time.Time) error {
	if r.Status == RiskStatusClosed {
		return validationErrorf("risk is already closed")
	}
	r.Status = RiskStatusClosed
	r.ClosedAt = &now
	return nil
}

// MarkRiskReviewed stamps a completed periodic review.
func MarkRiskReviewed(r *models.Risk, now time.Time) error {
	if r.Status == RiskStatusClosed {
		return validationErrorf("risk is closed and no longer under review")
	}
	r.LastReviewAt = &now
	next := now.Add(ReviewInterval)
	r.NextReviewDate = &next
	return nil
}

// IsOverdueForReview reports whether the risk has gone more than the review
// interval without a review. A nil lastReviewAt means never reviewed, which
// counts as overdue once the risk itself is older than the interval.
func IsOverdueForReview(lastReviewAt *time.Time, createdAt, now time.Time) bool {
	if lastReviewAt == nil {
		return now.Sub(createdAt) > ReviewInterval
	}
	return now.Sub(*lastReviewAt) > ReviewInterval
}

// ValidateExceptionWindow enforces the expiry ceiling: the exception must end
// after it starts and no later than six months after the start date. A date
// beyond the ceiling is an error, never silently clamped.
func ValidateExceptionWindow(start, expiry time.Time) error {
	if expiry.Before(start) {
		return validationErrorf("expiry date precedes start date")
	}
	ceiling := start.AddDate(0, expiryCeilingMonths, 0)
	if expiry.After(ceiling) {
		return validationErrorf("expiry date exceeds the %d-month ceiling", expiryCeilingMonths)
	}
	return nil
}

// IsExceptionExpired reports whether the exception has lapsed. Derived on
// read, never persisted.
func IsExceptionExpired(expiry, today time.Time) bool {
	return expiry.Before(today)
}

// IsExceptionExpiringSoon reports whether the exception lapses within the
// warning window (inclusive on both edges).
func IsExceptionExpiringSoon(expiry, today time.Time) bool {
	d := expiry.Sub(today)
	return d >= 0 && d <= ExpiringSoonWindow
}

// ExceptionDraft is the combined wizard payload: exception data plus the
// mandatory risk assessment it must be created with.
type ExceptionDraft struct {
	OrganizationID primitive.ObjectID
	PolicyID       primitive.ObjectID
	OrgUnitID      primitive.ObjectID
	Title          string
	Description    string
	RequestedBy    string
	StartDate      time.Time
	ExpiryDate     time.Time

	// Risk assessment portion.
	AssetName        string
	SecurityAreaID   primitive.ObjectID
	ThreatIDs        []primitive.ObjectID
	VulnerabilityIDs []primitive.ObjectID
	Impact           float64
	Probability      float64
	Safeguard        float64
	RiskOwner        string
}

// NewExceptionWithRisk builds an exception together with its risk assessment
// as one operation. If any part of the combined payload is invalid the whole
// creation fails; an exception can never exist without a risk.
func NewExceptionWithRisk(d ExceptionDraft, now time.Time) (models.PolicyException, models.Risk, error) {
	var exc models.PolicyException
	var risk models.Risk

	if d.Title == "" {
		return exc, risk, validationErrorf("exception title is required")
	}
	if d.RequestedBy == "" {
		return exc, risk, validationErrorf("requestedBy is required")
	}
	if d.PolicyID.IsZero() {
		return exc, risk, validationErrorf("policyId is required")
	}
	if err := ValidateExceptionWindow(d.StartDate, d.ExpiryDate); err != nil {
		return exc, risk, err
	}
	if d.AssetName == "" {
		return exc, risk, validationErrorf("risk assessment is incomplete: asset name is required")
	}
	if d.Impact == 0 || d.Probability == 0 || d.Safeguard == 0 {
		return exc, risk, validationErrorf("risk assessment is incomplete: impact, probability and safeguard are required")
	}

	risk = models.Risk{
		ID:               primitive.NewObjectID(),
		OrganizationID:   d.OrganizationID,
		OrgUnitID:        d.OrgUnitID,
		AssetName:        d.AssetName,
		SecurityAreaID:   d.SecurityAreaID,
		ThreatIDs:        d.ThreatIDs,
		VulnerabilityIDs: d.VulnerabilityIDs,
		Status:           RiskStatusInReview,
		Owner:            d.RiskOwner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := ApplyRatings(&risk, d.Impact, d.Probability, d.Safeguard); err != nil {
		return exc, models.Risk{}, err
	}

	exc = models.PolicyException{
		ID:             primitive.NewObjectID(),
		OrganizationID: d.OrganizationID,
		PolicyID:       d.PolicyID,
		OrgUnitID:      d.OrgUnitID,
		Title:          d.Title,
		Description:    d.Description,
		RequestedBy:    d.RequestedBy,
		StartDate:      d.StartDate,
		ExpiryDate:     d.ExpiryDate,
		Status:         ExceptionStatusRequested,
		RiskID:         risk.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return exc, risk, nil
}

// ApproveException moves a requested exception to approved.
func ApproveException(e *models.PolicyException, approvedBy string, now time.Time) error {
	if approvedBy == "" {
		return validationErrorf("approvedBy is required")
	}
	if e.Status != ExceptionStatusRequested {
		return validationErrorf("only requested exceptions can be approved (status is %s)", e.Status)
	}
	e.Status = ExceptionStatusApproved
	e.ApprovedBy = approvedBy
	e.UpdatedAt = now
	return nil
}

// ActivateException moves an approved exception into force.
func ActivateException(e *models.PolicyException, now time.Time) error {
	if e.Status != ExceptionStatusApproved {
		return validationErrorf("only approved exceptions can be activated (status is %s)", e.Status)
	}
	e.Status = ExceptionStatusActive
	e.UpdatedAt = now
	return nil
}

// ArchiveException soft-closes an exception. One-directional; the record and
// its linked risk and actions are kept.
func ArchiveException(e *models.PolicyException, now time.Time) error {
	if e.Status == ExceptionStatusArchived {
		return validationErrorf("exception is already archived")
	}
	e.Status = ExceptionStatusArchived
	e.ClosedAt = &now
	e.UpdatedAt = now
	return nil
}

// RescheduleException moves the exception window, re-checking the ceiling.
// Archived exceptions are immutable.
func RescheduleException(e *models.PolicyException, start, expiry time.Time, now time.Time) error {
	if e.Status == ExceptionStatusArchived {
		return validationErrorf("exception is archived and can no longer be edited")
	}
	if err := ValidateExceptionWindow(start, expiry); err != nil {
		return err
	}
	e.StartDate = start
	e.ExpiryDate = expiry
	e.UpdatedAt = now
	return nil
}
