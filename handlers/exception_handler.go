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

// exceptionView adds the expiry flags that are recomputed on every read.
type exceptionView struct {
	models.PolicyException
	IsExpired      bool `json:"isExpired"`
	IsExpiringSoon bool `json:"isExpiringSoon"`
}

func newExceptionView(e models.PolicyException, now time.Time) exceptionView {
	today := startOfDay(now)
	return exceptionView{
		PolicyException: e,
		IsExpired:       core.IsExceptionExpired(e.ExpiryDate, today),
		IsExpiringSoon:  core.IsExceptionExpiringSoon(e.ExpiryDate, today),
	}
}

// exceptionRiskPayload renders the risk half of an exception detail response.
// A missing risk yields nil so the JSON carries "risk": null.
func exceptionRiskPayload(risk models.Risk, found bool, now time.Time) interface{} {
	if !found {
		return nil
	}
	return newRiskView(risk, now)
}

// ListExceptions returns the org's policy exceptions with derived expiry
// flags.
func ListExceptions(w http.ResponseWriter, r *http.Request) {
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
	if policyID := r.URL.Query().Get("policyId"); policyID != "" {
		oid, err := primitive.ObjectIDFromHex(policyID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid policy id")
			return
		}
		filter["policyId"] = oid
	}

	opts := options.Find().SetSort(bson.D{{Key: "expiryDate", Value: 1}})
	cursor, err := exceptionCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("exceptions Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var exceptions []models.PolicyException
	if err = cursor.All(ctx, &exceptions); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode exceptions")
		return
	}

	now := nowFunc()
	expiringOnly := r.URL.Query().Get("expiringSoon") == "true"

	views := make([]exceptionView, 0, len(exceptions))
	for _, e := range exceptions {
		v := newExceptionView(e, now)
		if expiringOnly && !v.IsExpiringSoon {
			continue
		}
		views = append(views, v)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

// createExceptionRequest is the combined wizard payload: exception data plus
// the mandatory risk assessment.
type createExceptionRequest struct {
	PolicyID    string `json:"policyId"`
	OrgUnitID   string `json:"orgUnitId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RequestedBy string `json:"requestedBy"`
	StartDate   string `json:"startDate"`
	ExpiryDate  string `json:"expiryDate"`

	RiskAssessment struct {
		AssetName        string   `json:"assetName"`
		SecurityAreaID   string   `json:"securityAreaId,omitempty"`
		ThreatIDs        []string `json:"threatIds,omitempty"`
		VulnerabilityIDs []string `json:"vulnerabilityIds,omitempty"`
		ImpactLevel      float64  `json:"impactLevel"`
		ProbabilityLevel float64  `json:"probabilityLevel"`
		SafeguardRating  float64  `json:"safeguardRating"`
		Owner            string   `json:"owner,omitempty"`
	} `json:"riskAssessment"`
}

// CreateException creates a policy exception together with its risk
// assessment as one operation. If the exception insert fails after the risk
// was stored, the risk is removed again; no orphan of either kind survives.
func CreateException(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create exception")
		return
	}

	var req createExceptionRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	draft := core.ExceptionDraft{
		OrganizationID: ident.OrgID,
		Title:          req.Title,
		Description:    req.Description,
		RequestedBy:    req.RequestedBy,
		AssetName:      req.RiskAssessment.AssetName,
		Impact:         req.RiskAssessment.ImpactLevel,
		Probability:    req.RiskAssessment.ProbabilityLevel,
		Safeguard:      req.RiskAssessment.SafeguardRating,
		RiskOwner:      req.RiskAssessment.Owner,
	}

	if req.PolicyID != "" {
		policyID, err := primitive.ObjectIDFromHex(req.PolicyID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid policy id")
			return
		}
		draft.PolicyID = policyID
	}
	if req.OrgUnitID != "" {
		unitID, err := primitive.ObjectIDFromHex(req.OrgUnitID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid org unit id")
			return
		}
		draft.OrgUnitID = unitID
	}
	if req.RiskAssessment.SecurityAreaID != "" {
		areaID, err := primitive.ObjectIDFromHex(req.RiskAssessment.SecurityAreaID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid security area id")
			return
		}
		draft.SecurityAreaID = areaID
	}
	if draft.ThreatIDs, err = parseObjectIDList(req.RiskAssessment.ThreatIDs); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid threat id")
		return
	}
	if draft.VulnerabilityIDs, err = parseObjectIDList(req.RiskAssessment.VulnerabilityIDs); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid vulnerability id")
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid start date, expected YYYY-MM-DD")
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid expiry date, expected YYYY-MM-DD")
		return
	}
	draft.StartDate = start
	draft.ExpiryDate = expiry

	now := nowFunc()
	exc, risk, err := core.NewExceptionWithRisk(draft, now)
	if err != nil {
		respondCoreError(w, err)
		return
	}
	risk.CreatedBy = ident.UserID
	risk.UpdatedBy = ident.UserID
	exc.CreatedBy = ident.UserID

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if _, err := riskCollection.InsertOne(ctx, risk); err != nil {
		log.Printf("exception risk insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create risk assessment")
		return
	}
	if _, err := exceptionCollection.InsertOne(ctx, exc); err != nil {
		// Roll the risk back; an exception must never exist without its
		// risk, and vice versa.
		if _, delErr := riskCollection.DeleteOne(ctx, bson.M{"_id": risk.ID}); delErr != nil {
			log.Printf("orphan risk cleanup failed for %s: %v", risk.ID.Hex(), delErr)
		}
		log.Printf("exception insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create exception")
		return
	}

	recordAudit(ctx, ident, "create_exception", core.EntityException, exc.ID, bson.M{"riskId": risk.ID, "expiryDate": exc.ExpiryDate})
	websocket.SendEntityUpdate(ident.OrgID, "EXCEPTION_CREATED", core.EntityException, exc.ID, exc, ident.UserName)

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"exception": newExceptionView(exc, now),
		"risk":      newRiskView(risk, now),
	})
}

func loadOrgException(ctx context.Context, orgID primitive.ObjectID, idHex string) (models.PolicyException, error) {
	var exc models.PolicyException
	excID, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return exc, &core.ValidationError{Msg: "invalid exception id format"}
	}
	err = exceptionCollection.FindOne(ctx, bson.M{"_id": excID, "organizationId": orgID}).Decode(&exc)
	if err == mongo.ErrNoDocuments {
		return exc, &core.NotFoundError{Entity: "exception", ID: idHex}
	}
	return exc, err
}

// GetException returns one exception with its risk assessment and linked
// actions.
func GetException(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	exc, err := loadOrgException(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	now := nowFunc()

	var risk models.Risk
	riskFound := true
	if err := riskCollection.FindOne(ctx, bson.M{"_id": exc.RiskID}).Decode(&risk); err != nil {
		// A dangling RiskID means the pairing invariant was broken outside
		// this API. Surface it as an explicit null, never as a zero-valued
		// risk record.
		log.Printf("exception %s references missing risk %s", exc.ID.Hex(), exc.RiskID.Hex())
		riskFound = false
	}

	actions, err := actionsLinkedTo(ctx, ident.OrgID, core.EntityException, exc.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load linked actions")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"exception":     newExceptionView(exc, now),
		"risk":          exceptionRiskPayload(risk, riskFound, now),
		"linkedActions": actions,
	})
}

type updateExceptionRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	ExpiryDate  *string `json:"expiryDate,omitempty"`
}

// UpdateException edits exception fields. Window changes go back through the
// six-month ceiling check; violations are errors, never clamps.
func UpdateException(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update exception")
		return
	}

	var req updateExceptionRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	exc, err := loadOrgException(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	now := nowFunc()

	if req.Title != nil {
		if *req.Title == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		exc.Title = *req.Title
	}
	if req.Description != nil {
		exc.Description = *req.Description
	}

	if req.StartDate != nil || req.ExpiryDate != nil {
		start := exc.StartDate
		expiry := exc.ExpiryDate
		if req.StartDate != nil {
			if start, err = time.Parse("2006-01-02", *req.StartDate); err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "invalid start date, expected YYYY-MM-DD")
				return
			}
		}
		if req.ExpiryDate != nil {
			if expiry, err = time.Parse("2006-01-02", *req.ExpiryDate); err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "invalid expiry date, expected YYYY-MM-DD")
				return
			}
		}
		if err := core.RescheduleException(&exc, start, expiry, now); err != nil {
			respondCoreError(w, err)
			return
		}
	} else {
		exc.UpdatedAt = now
	}

	if _, err := exceptionCollection.ReplaceOne(ctx, bson.M{"_id": exc.ID, "organizationId": ident.OrgID}, exc); err != nil {
		log.Printf("exception update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update exception")
		return
	}

	recordAudit(ctx, ident, "update_exception", core.EntityException, exc.ID, bson.M{"expiryDate": exc.ExpiryDate})
	websocket.SendEntityUpdate(ident.OrgID, "EXCEPTION_UPDATED", core.EntityException, exc.ID, exc, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newExceptionView(exc, now))
}

type approveExceptionRequest struct {
	ApprovedBy string `json:"approvedBy"`
	Activate   bool   `json:"activate,omitempty"`
}

// ApproveException moves a requested exception to approved and, if asked,
// straight into force.
func ApproveException(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to approve exception")
		return
	}

	var req approveExceptionRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	exc, err := loadOrgException(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	now := nowFunc()
	if err := core.ApproveException(&exc, req.ApprovedBy, now); err != nil {
		respondCoreError(w, err)
		return
	}
	if req.Activate {
		if err := core.ActivateException(&exc, now); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	if _, err := exceptionCollection.ReplaceOne(ctx, bson.M{"_id": exc.ID, "organizationId": ident.OrgID}, exc); err != nil {
		log.Printf("exception approve error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to approve exception")
		return
	}

	recordAudit(ctx, ident, "approve_exception", core.EntityException, exc.ID, bson.M{"approvedBy": exc.ApprovedBy, "status": exc.Status})
	websocket.SendEntityUpdate(ident.OrgID, "EXCEPTION_APPROVED", core.EntityException, exc.ID, exc, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newExceptionView(exc, now))
}

// ArchiveException soft-closes an exception. The record, its risk and its
// linked actions all remain.
func ArchiveException(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to archive exception")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	exc, err := loadOrgException(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	now := nowFunc()
	if err := core.ArchiveException(&exc, now); err != nil {
		respondCoreError(w, err)
		return
	}

	if _, err := exceptionCollection.ReplaceOne(ctx, bson.M{"_id": exc.ID, "organizationId": ident.OrgID}, exc); err != nil {
		log.Printf("exception archive error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to archive exception")
		return
	}

	recordAudit(ctx, ident, "archive_exception", core.EntityException, exc.ID, nil)
	websocket.SendEntityUpdate(ident.OrgID, "EXCEPTION_ARCHIVED", core.EntityException, exc.ID, exc, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newExceptionView(exc, now))
}
