// handlers/collections.go
package handlers

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pirog87/SecurePosture-sub000/database"
)

var (
	userCollection       *mongo.Collection
	riskCollection       *mongo.Collection
	exceptionCollection  *mongo.Collection
	actionCollection     *mongo.Collection
	orgUnitCollection    *mongo.Collection
	assessmentCollection *mongo.Collection
	auditCollection      *mongo.Collection
)

func InitCollections() {
	db := database.DB()
	userCollection = db.Collection("users")
	riskCollection = db.Collection("risks")
	exceptionCollection = db.Collection("policy_exceptions")
	actionCollection = db.Collection("actions")
	orgUnitCollection = db.Collection("org_units")
	assessmentCollection = db.Collection("assessments")
	auditCollection = db.Collection("audit_logs")
}
