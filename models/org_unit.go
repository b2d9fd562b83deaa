// models/org_unit.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrgUnit is stored flat with a parent pointer; the tree is assembled in
// memory by core.BuildTree.
type OrgUnit struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID  `bson:"organizationId" json:"organizationId"`
	Name           string              `bson:"name" json:"name"`
	ParentID       *primitive.ObjectID `bson:"parentId,omitempty" json:"parentId,omitempty"`
	SortOrder      int                 `bson:"sortOrder" json:"sortOrder"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`

	// Children is populated in memory only, never persisted.
	Children []*OrgUnit `bson:"-" json:"children,omitempty"`
}
