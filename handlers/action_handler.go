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
	"github.com/Pirog87/SecurePosture-sub000/websocket"
)

// actionsLinkedTo queries the actions carrying the given (entityType,
// entityID) pair. This is the only way entity-side "linked actions" views
// are built; the pair list on the action is the single stored copy.
func actionsLinkedTo(ctx context.Context, orgID primitive.ObjectID, entityType string, entityID primitive.ObjectID) ([]models.Action, error) {
	filter := bson.M{
		"organizationId": orgID,
		"links": bson.M{
			"$elemMatch": bson.M{"entityType": entityType, "entityId": entityID},
		},
	}
	cursor, err := actionCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var actions []models.Action
	if err = cursor.All(ctx, &actions); err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []models.Action{}
	}
	return actions, nil
}

// ListActions returns the org's remediation actions.
func ListActions(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{"organizationId": ident.OrgID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		filter["owner"] = owner
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := actionCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("actions Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var actions []models.Action
	if err = cursor.All(ctx, &actions); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode actions")
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}

	utils.RespondWithJSON(w, http.StatusOK, actions)
}

type createActionRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	Status      string  `json:"status,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`

	// Set when the action is created inline from a risk or exception
	// editor: the origin pair is linked in the same insert, there is no
	// separate link step for the caller to forget.
	OriginType string `json:"originType,omitempty"`
	OriginID   string `json:"originId,omitempty"`
}

func CreateAction(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create action")
		return
	}

	var req createActionRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if req.Title == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Action title is required")
		return
	}

	status := req.Status
	if status == "" {
		status = "open"
	}

	now := nowFunc()
	action := models.Action{
		ID:             primitive.NewObjectID(),
		OrganizationID: ident.OrgID,
		Title:          req.Title,
		Description:    req.Description,
		Owner:          req.Owner,
		Status:         status,
		Priority:       req.Priority,
		Links:          []models.EntityRef{},
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      ident.UserID,
	}

	if action.DueDate, err = parseDatePointer(req.DueDate); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if req.OriginType != "" || req.OriginID != "" {
		originID, err := primitive.ObjectIDFromHex(req.OriginID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid origin id")
			return
		}
		if err := verifyLinkTarget(ctx, ident.OrgID, req.OriginType, originID); err != nil {
			respondCoreError(w, err)
			return
		}
		if _, err := core.Link(&action, req.OriginType, originID); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	if _, err := actionCollection.InsertOne(ctx, action); err != nil {
		log.Printf("action insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}

	recordAudit(ctx, ident, "create_action", "action", action.ID, bson.M{"title": action.Title, "links": action.Links})
	websocket.SendEntityUpdate(ident.OrgID, "ACTION_CREATED", "action", action.ID, action, ident.UserName)

	utils.RespondWithJSON(w, http.StatusCreated, action)
}

// verifyLinkTarget checks that the record an action is being linked to
// actually exists in the caller's org.
func verifyLinkTarget(ctx context.Context, orgID primitive.ObjectID, entityType string, entityID primitive.ObjectID) error {
	var coll *mongo.Collection
	switch entityType {
	case core.EntityRisk:
		coll = riskCollection
	case core.EntityException:
		coll = exceptionCollection
	case core.EntityAsset:
		// Assets are register rows managed elsewhere; links to them are
		// accepted as-is.
		return nil
	default:
		return &core.ValidationError{Msg: "unknown entity type " + entityType}
	}

	count, err := coll.CountDocuments(ctx, bson.M{"_id": entityID, "organizationId": orgID})
	if err != nil {
		return err
	}
	if count == 0 {
		return &core.NotFoundError{Entity: entityType, ID: entityID.Hex()}
	}
	return nil
}

func loadOrgAction(ctx context.Context, orgID primitive.ObjectID, idHex string) (models.Action, error) {
	var action models.Action
	actionID, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return action, &core.ValidationError{Msg: "invalid action id format"}
	}
	err = actionCollection.FindOne(ctx, bson.M{"_id": actionID, "organizationId": orgID}).Decode(&action)
	if err == mongo.ErrNoDocuments {
		return action, &core.NotFoundError{Entity: "action", ID: idHex}
	}
	return action, err
}

func GetAction(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	action, err := loadOrgAction(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, action)
}

type updateActionRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Owner       *string `json:"owner,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

func UpdateAction(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update action")
		return
	}

	var req updateActionRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	action, err := loadOrgAction(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	oldStatus := action.Status

	if req.Title != nil {
		if *req.Title == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		action.Title = *req.Title
	}
	if req.Description != nil {
		action.Description = *req.Description
	}
	if req.Owner != nil {
		action.Owner = *req.Owner
	}
	if req.Status != nil {
		action.Status = *req.Status
	}
	if req.Priority != nil {
		action.Priority = *req.Priority
	}
	if req.DueDate != nil {
		if action.DueDate, err = parseDatePointer(req.DueDate); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	action.UpdatedAt = nowFunc()

	if _, err := actionCollection.ReplaceOne(ctx, bson.M{"_id": action.ID, "organizationId": ident.OrgID}, action); err != nil {
		log.Printf("action update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}

	recordAudit(ctx, ident, "update_action", "action", action.ID, bson.M{"status": action.Status})
	if oldStatus != action.Status {
		websocket.SendEntityUpdate(ident.OrgID, "ACTION_STATUS_CHANGE", "action", action.ID,
			map[string]string{"oldStatus": oldStatus, "newStatus": action.Status}, ident.UserName)
	} else {
		websocket.SendEntityUpdate(ident.OrgID, "ACTION_UPDATED", "action", action.ID, action, ident.UserName)
	}

	utils.RespondWithJSON(w, http.StatusOK, action)
}

func DeleteAction(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if ident.Role != "admin" {
		utils.RespondWithError(w, http.StatusForbidden, "only admins can delete actions")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	action, err := loadOrgAction(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if _, err := actionCollection.DeleteOne(ctx, bson.M{"_id": action.ID, "organizationId": ident.OrgID}); err != nil {
		log.Printf("action delete error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}

	recordAudit(ctx, ident, "delete_action", "action", action.ID, nil)
	websocket.SendEntityUpdate(ident.OrgID, "ACTION_DELETED", "action", action.ID, nil, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "action deleted"})
}

type linkRequest struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

// LinkAction attaches an action to a risk, exception or asset. Linking an
// already-linked pair is a no-op.
func LinkAction(w http.ResponseWriter, r *http.Request) {
	mutateActionLinks(w, r, true)
}

// UnlinkAction removes the pair; removing an absent pair is a no-op.
func UnlinkAction(w http.ResponseWriter, r *http.Request) {
	mutateActionLinks(w, r, false)
}

func mutateActionLinks(w http.ResponseWriter, r *http.Request, link bool) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to change action links")
		return
	}

	var req linkRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	entityID, err := primitive.ObjectIDFromHex(req.EntityID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	action, err := loadOrgAction(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	var changed bool
	var auditAction, updateType string
	if link {
		if err := verifyLinkTarget(ctx, ident.OrgID, req.EntityType, entityID); err != nil {
			respondCoreError(w, err)
			return
		}
		changed, err = core.Link(&action, req.EntityType, entityID)
		auditAction, updateType = "link_action", "ACTION_LINKED"
	} else {
		changed, err = core.Unlink(&action, req.EntityType, entityID)
		auditAction, updateType = "unlink_action", "ACTION_UNLINKED"
	}
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if changed {
		action.UpdatedAt = nowFunc()
		update := bson.M{"$set": bson.M{"links": action.Links, "updatedAt": action.UpdatedAt}}
		if _, err := actionCollection.UpdateOne(ctx, bson.M{"_id": action.ID, "organizationId": ident.OrgID}, update); err != nil {
			log.Printf("action link update error: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update action links")
			return
		}
		recordAudit(ctx, ident, auditAction, "action", action.ID, bson.M{"entityType": req.EntityType, "entityId": entityID})
		websocket.SendEntityUpdate(ident.OrgID, updateType, "action", action.ID, action.Links, ident.UserName)
	}

	utils.RespondWithJSON(w, http.StatusOK, action)
}

// GetEntityActions returns the actions linked to an arbitrary entity; used
// by asset views which have no dedicated handler here.
func GetEntityActions(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	vars := mux.Vars(r)
	entityType := vars["entityType"]
	if entityType != core.EntityRisk && entityType != core.EntityException && entityType != core.EntityAsset {
		utils.RespondWithError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	entityID, err := primitive.ObjectIDFromHex(vars["entityId"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	actions, err := actionsLinkedTo(ctx, ident.OrgID, entityType, entityID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load linked actions")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, actions)
}
