package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pirog87/SecurePosture-sub000/core"
	"github.com/Pirog87/SecurePosture-sub000/models"
	"github.com/Pirog87/SecurePosture-sub000/utils"
)

// loadOrgUnits fetches the org's units in stored sibling order.
func loadOrgUnits(ctx context.Context, orgID primitive.ObjectID) ([]models.OrgUnit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := orgUnitCollection.Find(ctx, bson.M{"organizationId": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var units []models.OrgUnit
	if err = cursor.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// descendantUnitIDs resolves "this unit and everything beneath it" for
// register filters. An unknown unit yields just itself so the filter matches
// nothing rather than erroring.
func descendantUnitIDs(ctx context.Context, orgID, unitID primitive.ObjectID) ([]primitive.ObjectID, error) {
	units, err := loadOrgUnits(ctx, orgID)
	if err != nil {
		return nil, err
	}
	set := core.CollectDescendantIDs(core.BuildTree(units), unitID)
	if len(set) == 0 {
		return []primitive.ObjectID{unitID}, nil
	}
	ids := make([]primitive.ObjectID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

// GetOrgUnitTree returns the assembled forest.
func GetOrgUnitTree(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	units, err := loadOrgUnits(ctx, ident.OrgID)
	if err != nil {
		log.Printf("org units Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	roots := core.BuildTree(units)
	if roots == nil {
		roots = []*models.OrgUnit{}
	}
	utils.RespondWithJSON(w, http.StatusOK, roots)
}

// GetOrgUnitSelector returns the pre-order flattening used by
// indentation-aware unit pickers.
func GetOrgUnitSelector(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	units, err := loadOrgUnits(ctx, ident.OrgID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	flat := core.Flatten(core.BuildTree(units))
	if flat == nil {
		flat = []core.FlatUnit{}
	}
	utils.RespondWithJSON(w, http.StatusOK, flat)
}

// GetOrgUnitPaths returns the id → "Parent / Child" path map used for
// display and filter matching.
func GetOrgUnitPaths(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	units, err := loadOrgUnits(ctx, ident.OrgID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	paths := core.BuildPathMap(core.BuildTree(units))
	out := make(map[string]string, len(paths))
	for id, path := range paths {
		out[id.Hex()] = path
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

type createOrgUnitRequest struct {
	Name      string `json:"name"`
	ParentID  string `json:"parentId,omitempty"`
	SortOrder int    `json:"sortOrder,omitempty"`
}

func CreateOrgUnit(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if ident.Role != "admin" {
		utils.RespondWithError(w, http.StatusForbidden, "only admins manage the organizational structure")
		return
	}

	var req createOrgUnitRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if req.Name == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "unit name is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	now := nowFunc()
	unit := models.OrgUnit{
		ID:             primitive.NewObjectID(),
		OrganizationID: ident.OrgID,
		Name:           req.Name,
		SortOrder:      req.SortOrder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.ParentID != "" {
		parentID, err := primitive.ObjectIDFromHex(req.ParentID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid parent id")
			return
		}
		count, err := orgUnitCollection.CountDocuments(ctx, bson.M{"_id": parentID, "organizationId": ident.OrgID})
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "database error")
			return
		}
		if count == 0 {
			utils.RespondWithError(w, http.StatusNotFound, "parent unit not found")
			return
		}
		unit.ParentID = &parentID
	}

	if _, err := orgUnitCollection.InsertOne(ctx, unit); err != nil {
		log.Printf("org unit insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create org unit")
		return
	}

	recordAudit(ctx, ident, "create_org_unit", "org_unit", unit.ID, bson.M{"name": unit.Name})

	utils.RespondWithJSON(w, http.StatusCreated, unit)
}

type updateOrgUnitRequest struct {
	Name      *string `json:"name,omitempty"`
	ParentID  *string `json:"parentId,omitempty"`
	SortOrder *int    `json:"sortOrder,omitempty"`
}

// UpdateOrgUnit renames or moves a unit. Moves are rejected when the new
// parent lies inside the unit's own subtree, which would cut a cycle into
// the forest.
func UpdateOrgUnit(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if ident.Role != "admin" {
		utils.RespondWithError(w, http.StatusForbidden, "only admins manage the organizational structure")
		return
	}

	unitID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid unit id")
		return
	}

	var req updateOrgUnitRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var unit models.OrgUnit
	err = orgUnitCollection.FindOne(ctx, bson.M{"_id": unitID, "organizationId": ident.OrgID}).Decode(&unit)
	if err == mongo.ErrNoDocuments {
		utils.RespondWithError(w, http.StatusNotFound, "org unit not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "database error")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "unit name cannot be empty")
			return
		}
		unit.Name = *req.Name
	}
	if req.SortOrder != nil {
		unit.SortOrder = *req.SortOrder
	}

	if req.ParentID != nil {
		if *req.ParentID == "" {
			unit.ParentID = nil
		} else {
			parentID, err := primitive.ObjectIDFromHex(*req.ParentID)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "invalid parent id")
				return
			}
			units, err := loadOrgUnits(ctx, ident.OrgID)
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "database error")
				return
			}
			subtree := core.CollectDescendantIDs(core.BuildTree(units), unitID)
			if _, inSubtree := subtree[parentID]; inSubtree {
				utils.RespondWithError(w, http.StatusUnprocessableEntity, "cannot move a unit under its own subtree")
				return
			}
			count, err := orgUnitCollection.CountDocuments(ctx, bson.M{"_id": parentID, "organizationId": ident.OrgID})
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "database error")
				return
			}
			if count == 0 {
				utils.RespondWithError(w, http.StatusNotFound, "parent unit not found")
				return
			}
			unit.ParentID = &parentID
		}
	}

	unit.UpdatedAt = nowFunc()

	if _, err := orgUnitCollection.ReplaceOne(ctx, bson.M{"_id": unit.ID, "organizationId": ident.OrgID}, unit); err != nil {
		log.Printf("org unit update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update org unit")
		return
	}

	recordAudit(ctx, ident, "update_org_unit", "org_unit", unit.ID, bson.M{"name": unit.Name})

	utils.RespondWithJSON(w, http.StatusOK, unit)
}

// DeleteOrgUnit removes a childless unit.
func DeleteOrgUnit(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if ident.Role != "admin" {
		utils.RespondWithError(w, http.StatusForbidden, "only admins manage the organizational structure")
		return
	}

	unitID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid unit id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	children, err := orgUnitCollection.CountDocuments(ctx, bson.M{"organizationId": ident.OrgID, "parentId": unitID})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "database error")
		return
	}
	if children > 0 {
		utils.RespondWithError(w, http.StatusUnprocessableEntity, "unit still has sub-units")
		return
	}

	res, err := orgUnitCollection.DeleteOne(ctx, bson.M{"_id": unitID, "organizationId": ident.OrgID})
	if err != nil {
		log.Printf("org unit delete error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete org unit")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "org unit not found")
		return
	}

	recordAudit(ctx, ident, "delete_org_unit", "org_unit", unitID, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "org unit deleted"})
}
