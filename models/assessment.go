package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssessmentItem is one benchmark control with its evaluation status.
// ImplementationGroup is the external IG1/IG2/IG3 classification tag.
type AssessmentItem struct {
	ControlID           string `bson:"controlId" json:"controlId"`
	Title               string `bson:"title" json:"title"`
	ImplementationGroup string `bson:"implementationGroup,omitempty" json:"implementationGroup,omitempty"`
	Status              string `bson:"status" json:"status"` // implemented, partial, not_implemented, not_applicable
	Notes               string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Assessment is a CIS-benchmark evaluation scoped to an org unit.
type Assessment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	OrgUnitID      primitive.ObjectID `bson:"orgUnitId,omitempty" json:"orgUnitId,omitempty"`
	BenchmarkName  string             `bson:"benchmarkName" json:"benchmarkName"`
	Items          []AssessmentItem   `bson:"items" json:"items"`
	AssessedBy     string             `bson:"assessedBy,omitempty" json:"assessedBy,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
