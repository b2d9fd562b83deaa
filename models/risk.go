package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Risk struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	OrganizationID   primitive.ObjectID   `bson:"organizationId" json:"organizationId"`
	OrgUnitID        primitive.ObjectID   `bson:"orgUnitId,omitempty" json:"orgUnitId,omitempty"`
	AssetName        string               `bson:"assetName" json:"assetName"`
	SecurityAreaID   primitive.ObjectID   `bson:"securityAreaId,omitempty" json:"securityAreaId,omitempty"`
	ThreatIDs        []primitive.ObjectID `bson:"threatIds,omitempty" json:"threatIds,omitempty"`
	VulnerabilityIDs []primitive.ObjectID `bson:"vulnerabilityIds,omitempty" json:"vulnerabilityIds,omitempty"`

	// Current scenario ratings. RiskScore and Severity are derived from the
	// three ratings on every write and never edited directly.
	ImpactLevel      int     `bson:"impactLevel" json:"impactLevel"`
	ProbabilityLevel int     `bson:"probabilityLevel" json:"probabilityLevel"`
	SafeguardRating  float64 `bson:"safeguardRating" json:"safeguardRating"`
	RiskScore        float64 `bson:"riskScore" json:"riskScore"`
	Severity         string  `bson:"severity" json:"severity"`

	Status     string `bson:"status" json:"status"`
	StrategyID string `bson:"strategyId,omitempty" json:"strategyId,omitempty"`
	Owner      string `bson:"owner,omitempty" json:"owner,omitempty"`

	// Planned treatment and the projected post-treatment ratings.
	// ResidualRisk is derived from the three target ratings.
	TreatmentPlan     string     `bson:"treatmentPlan,omitempty" json:"treatmentPlan,omitempty"`
	TreatmentDeadline *time.Time `bson:"treatmentDeadline,omitempty" json:"treatmentDeadline,omitempty"`
	TargetImpact      int        `bson:"targetImpact,omitempty" json:"targetImpact,omitempty"`
	TargetProbability int        `bson:"targetProbability,omitempty" json:"targetProbability,omitempty"`
	TargetSafeguard   float64    `bson:"targetSafeguard,omitempty" json:"targetSafeguard,omitempty"`
	ResidualRisk      float64    `bson:"residualRisk,omitempty" json:"residualRisk,omitempty"`

	// Acceptance is orthogonal to Status: a risk can sit in_review while
	// already formally accepted.
	AcceptedBy              string     `bson:"acceptedBy,omitempty" json:"acceptedBy,omitempty"`
	AcceptedAt              *time.Time `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	AcceptanceJustification string     `bson:"acceptanceJustification,omitempty" json:"acceptanceJustification,omitempty"`

	NextReviewDate *time.Time `bson:"nextReviewDate,omitempty" json:"nextReviewDate,omitempty"`
	LastReviewAt   *time.Time `bson:"lastReviewAt,omitempty" json:"lastReviewAt,omitempty"`
	ClosedAt       *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`

	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	CreatedBy primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy primitive.ObjectID `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

func (r *Risk) Accepted() bool {
	return r.AcceptedBy != ""
}
