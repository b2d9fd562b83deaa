package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntityRef identifies a record an Action is attached to. The Action's Links
// slice is the authoritative store for these associations; risk and exception
// "linked actions" views are queries over actions, not separate lists.
type EntityRef struct {
	EntityType string             `bson:"entityType" json:"entityType"` // risk, exception, asset
	EntityID   primitive.ObjectID `bson:"entityId" json:"entityId"`
}

type Action struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Owner          string             `bson:"owner,omitempty" json:"owner,omitempty"`
	Status         string             `bson:"status" json:"status"` // open, in_progress, completed, cancelled
	Priority       string             `bson:"priority,omitempty" json:"priority,omitempty"`
	DueDate        *time.Time         `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	Links          []EntityRef        `bson:"links" json:"links"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
	CreatedBy      primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}
