package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PolicyException is a time-boxed, approved deviation from a security policy.
// Every exception is created together with its risk assessment; RiskID is
// never empty on a persisted record.
type PolicyException struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	PolicyID       primitive.ObjectID `bson:"policyId" json:"policyId"`
	OrgUnitID      primitive.ObjectID `bson:"orgUnitId,omitempty" json:"orgUnitId,omitempty"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	RequestedBy    string             `bson:"requestedBy" json:"requestedBy"`
	ApprovedBy     string             `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	StartDate      time.Time          `bson:"startDate" json:"startDate"`
	ExpiryDate     time.Time          `bson:"expiryDate" json:"expiryDate"`
	Status         string             `bson:"status" json:"status"`
	RiskID         primitive.ObjectID `bson:"riskId" json:"riskId"`
	ClosedAt       *time.Time         `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
	CreatedBy      primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}
