package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	LastName       string             `bson:"lastName" json:"lastName"`
	Email          string             `bson:"email" json:"email"`
	JobTitle       string             `bson:"jobTitle,omitempty" json:"jobTitle,omitempty"`
	PasswordHash   string             `bson:"passwordHash" json:"-"`
	Role           string             `bson:"role" json:"role"` // admin, risk_manager, viewer
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
