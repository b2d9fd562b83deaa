package handlers

import (
	"context"
	"errors"
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

// riskView is the read shape: the stored record plus flags that are derived
// on every read and never persisted.
type riskView struct {
	models.Risk
	OverdueForReview bool    `json:"overdueForReview"`
	ReductionPercent float64 `json:"reductionPercent"`
}

func newRiskView(r models.Risk, now time.Time) riskView {
	v := riskView{Risk: r}
	v.OverdueForReview = r.Status != core.RiskStatusClosed &&
		core.IsOverdueForReview(r.LastReviewAt, r.CreatedAt, now)
	if r.ResidualRisk > 0 {
		v.ReductionPercent = core.ReductionPercent(r.RiskScore, r.ResidualRisk)
	}
	return v
}

// respondCoreError maps the typed core errors onto HTTP statuses.
func respondCoreError(w http.ResponseWriter, err error) {
	var ratingErr *core.InvalidRatingError
	var validationErr *core.ValidationError
	var notFoundErr *core.NotFoundError
	switch {
	case errors.As(err, &ratingErr):
		utils.RespondWithError(w, http.StatusBadRequest, ratingErr.Error())
	case errors.As(err, &validationErr):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.As(err, &notFoundErr):
		utils.RespondWithError(w, http.StatusNotFound, notFoundErr.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "unexpected error")
	}
}

// ListRisks returns the org's risks, filtered by status, severity and
// organizational unit. The orgUnit filter includes the unit's whole subtree.
func ListRisks(w http.ResponseWriter, r *http.Request) {
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
	if severity := r.URL.Query().Get("severity"); severity != "" {
		filter["severity"] = severity
	}

	if orgUnit := r.URL.Query().Get("orgUnit"); orgUnit != "" {
		unitID, err := primitive.ObjectIDFromHex(orgUnit)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid org unit id")
			return
		}
		unitIDs, err := descendantUnitIDs(ctx, ident.OrgID, unitID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to resolve org units")
			return
		}
		filter["orgUnitId"] = bson.M{"$in": unitIDs}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := riskCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("risks Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var risks []models.Risk
	if err = cursor.All(ctx, &risks); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode risks")
		return
	}

	now := nowFunc()
	overdueOnly := r.URL.Query().Get("overdueOnly") == "true"

	views := make([]riskView, 0, len(risks))
	for _, risk := range risks {
		v := newRiskView(risk, now)
		if overdueOnly && !v.OverdueForReview {
			continue
		}
		views = append(views, v)
	}

	utils.RespondWithJSON(w, http.StatusOK, views)
}

type createRiskRequest struct {
	OrgUnitID         string   `json:"orgUnitId,omitempty"`
	AssetName         string   `json:"assetName"`
	SecurityAreaID    string   `json:"securityAreaId,omitempty"`
	ThreatIDs         []string `json:"threatIds,omitempty"`
	VulnerabilityIDs  []string `json:"vulnerabilityIds,omitempty"`
	ImpactLevel       float64  `json:"impactLevel"`
	ProbabilityLevel  float64  `json:"probabilityLevel"`
	SafeguardRating   float64  `json:"safeguardRating"`
	Status            string   `json:"status,omitempty"`
	StrategyID        string   `json:"strategyId,omitempty"`
	Owner             string   `json:"owner,omitempty"`
	TreatmentPlan     string   `json:"treatmentPlan,omitempty"`
	TreatmentDeadline *string  `json:"treatmentDeadline,omitempty"`
	TargetImpact      float64  `json:"targetImpact,omitempty"`
	TargetProbability float64  `json:"targetProbability,omitempty"`
	TargetSafeguard   float64  `json:"targetSafeguard,omitempty"`
}

func parseObjectIDList(hexes []string) ([]primitive.ObjectID, error) {
	if len(hexes) == 0 {
		return nil, nil
	}
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func CreateRisk(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create risk")
		return
	}

	var req createRiskRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if req.AssetName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "asset name is required")
		return
	}

	status := req.Status
	if status == "" {
		status = core.RiskStatusDraft
	}
	if status != core.RiskStatusDraft && status != core.RiskStatusInReview {
		utils.RespondWithError(w, http.StatusBadRequest, "new risks must start as draft or in_review")
		return
	}

	now := nowFunc()
	risk := models.Risk{
		ID:             primitive.NewObjectID(),
		OrganizationID: ident.OrgID,
		AssetName:      req.AssetName,
		Status:         status,
		StrategyID:     req.StrategyID,
		Owner:          req.Owner,
		TreatmentPlan:  req.TreatmentPlan,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      ident.UserID,
		UpdatedBy:      ident.UserID,
	}

	if req.OrgUnitID != "" {
		unitID, err := primitive.ObjectIDFromHex(req.OrgUnitID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid org unit id")
			return
		}
		risk.OrgUnitID = unitID
	}
	if req.SecurityAreaID != "" {
		areaID, err := primitive.ObjectIDFromHex(req.SecurityAreaID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid security area id")
			return
		}
		risk.SecurityAreaID = areaID
	}
	if risk.ThreatIDs, err = parseObjectIDList(req.ThreatIDs); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid threat id")
		return
	}
	if risk.VulnerabilityIDs, err = parseObjectIDList(req.VulnerabilityIDs); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid vulnerability id")
		return
	}
	if risk.TreatmentDeadline, err = parseDatePointer(req.TreatmentDeadline); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Score is always derived from the ratings, never taken from the payload.
	if err := core.ApplyRatings(&risk, req.ImpactLevel, req.ProbabilityLevel, req.SafeguardRating); err != nil {
		respondCoreError(w, err)
		return
	}
	if req.TargetImpact != 0 || req.TargetProbability != 0 || req.TargetSafeguard != 0 {
		if err := core.ApplyTargetRatings(&risk, req.TargetImpact, req.TargetProbability, req.TargetSafeguard); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := riskCollection.InsertOne(ctx, risk); err != nil {
		log.Printf("risk insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create risk")
		return
	}

	recordAudit(ctx, ident, "create_risk", core.EntityRisk, risk.ID, bson.M{"assetName": risk.AssetName, "severity": risk.Severity})
	websocket.SendEntityUpdate(ident.OrgID, "RISK_CREATED", core.EntityRisk, risk.ID, risk, ident.UserName)

	utils.RespondWithJSON(w, http.StatusCreated, newRiskView(risk, nowFunc()))
}

// loadOrgRisk fetches a risk scoped to the caller's org.
func loadOrgRisk(ctx context.Context, orgID primitive.ObjectID, idHex string) (models.Risk, error) {
	var risk models.Risk
	riskID, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return risk, &core.ValidationError{Msg: "invalid risk id format"}
	}
	err = riskCollection.FindOne(ctx, bson.M{"_id": riskID, "organizationId": orgID}).Decode(&risk)
	if err == mongo.ErrNoDocuments {
		return risk, &core.NotFoundError{Entity: "risk", ID: idHex}
	}
	return risk, err
}

// GetRisk returns one risk with its derived flags and linked actions. The
// linked-actions view is a query over the actions collection; the action's
// link set is the only stored copy.
func GetRisk(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	actions, err := actionsLinkedTo(ctx, ident.OrgID, core.EntityRisk, risk.ID)
	if err != nil {
		log.Printf("linked actions query error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load linked actions")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"risk":          newRiskView(risk, nowFunc()),
		"linkedActions": actions,
	})
}

type updateRiskRequest struct {
	OrgUnitID         *string  `json:"orgUnitId,omitempty"`
	AssetName         *string  `json:"assetName,omitempty"`
	Status            *string  `json:"status,omitempty"`
	StrategyID        *string  `json:"strategyId,omitempty"`
	Owner             *string  `json:"owner,omitempty"`
	TreatmentPlan     *string  `json:"treatmentPlan,omitempty"`
	TreatmentDeadline *string  `json:"treatmentDeadline,omitempty"`
	ImpactLevel       *float64 `json:"impactLevel,omitempty"`
	ProbabilityLevel  *float64 `json:"probabilityLevel,omitempty"`
	SafeguardRating   *float64 `json:"safeguardRating,omitempty"`
	TargetImpact      *float64 `json:"targetImpact,omitempty"`
	TargetProbability *float64 `json:"targetProbability,omitempty"`
	TargetSafeguard   *float64 `json:"targetSafeguard,omitempty"`
}

// UpdateRisk edits a risk. Any change to a rating field recomputes the score
// and severity; the closed status freezes all of it.
func UpdateRisk(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update risk")
		return
	}

	var req updateRiskRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if risk.Status == core.RiskStatusClosed {
		utils.RespondWithError(w, http.StatusUnprocessableEntity, "risk is closed and can no longer be edited")
		return
	}

	if req.AssetName != nil {
		if *req.AssetName == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "asset name cannot be empty")
			return
		}
		risk.AssetName = *req.AssetName
	}
	if req.Status != nil {
		switch *req.Status {
		case core.RiskStatusDraft, core.RiskStatusInReview, core.RiskStatusAccepted:
			risk.Status = *req.Status
		case core.RiskStatusClosed:
			utils.RespondWithError(w, http.StatusUnprocessableEntity, "use the close endpoint to close a risk")
			return
		default:
			utils.RespondWithError(w, http.StatusBadRequest, "unknown risk status")
			return
		}
	}
	if req.StrategyID != nil {
		risk.StrategyID = *req.StrategyID
	}
	if req.Owner != nil {
		risk.Owner = *req.Owner
	}
	if req.TreatmentPlan != nil {
		risk.TreatmentPlan = *req.TreatmentPlan
	}
	if req.TreatmentDeadline != nil {
		if risk.TreatmentDeadline, err = parseDatePointer(req.TreatmentDeadline); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.OrgUnitID != nil {
		if *req.OrgUnitID == "" {
			risk.OrgUnitID = primitive.NilObjectID
		} else {
			unitID, err := primitive.ObjectIDFromHex(*req.OrgUnitID)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "invalid org unit id")
				return
			}
			risk.OrgUnitID = unitID
		}
	}

	if req.ImpactLevel != nil || req.ProbabilityLevel != nil || req.SafeguardRating != nil {
		impact := float64(risk.ImpactLevel)
		probability := float64(risk.ProbabilityLevel)
		safeguard := risk.SafeguardRating
		if req.ImpactLevel != nil {
			impact = *req.ImpactLevel
		}
		if req.ProbabilityLevel != nil {
			probability = *req.ProbabilityLevel
		}
		if req.SafeguardRating != nil {
			safeguard = *req.SafeguardRating
		}
		if err := core.ApplyRatings(&risk, impact, probability, safeguard); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	if req.TargetImpact != nil || req.TargetProbability != nil || req.TargetSafeguard != nil {
		impact := float64(risk.TargetImpact)
		probability := float64(risk.TargetProbability)
		safeguard := risk.TargetSafeguard
		if req.TargetImpact != nil {
			impact = *req.TargetImpact
		}
		if req.TargetProbability != nil {
			probability = *req.TargetProbability
		}
		if req.TargetSafeguard != nil {
			safeguard = *req.TargetSafeguard
		}
		if err := core.ApplyTargetRatings(&risk, impact, probability, safeguard); err != nil {
			respondCoreError(w, err)
			return
		}
	}

	risk.UpdatedAt = nowFunc()
	risk.UpdatedBy = ident.UserID

	if _, err := riskCollection.ReplaceOne(ctx, bson.M{"_id": risk.ID, "organizationId": ident.OrgID}, risk); err != nil {
		log.Printf("risk update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update risk")
		return
	}

	recordAudit(ctx, ident, "update_risk", core.EntityRisk, risk.ID, bson.M{"severity": risk.Severity, "riskScore": risk.RiskScore})
	websocket.SendEntityUpdate(ident.OrgID, "RISK_UPDATED", core.EntityRisk, risk.ID, risk, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newRiskView(risk, nowFunc()))
}

type acceptRiskRequest struct {
	AcceptedBy    string `json:"acceptedBy"`
	Justification string `json:"justification,omitempty"`
}

// AcceptRisk records a formal acceptance sign-off. Re-accepting re-affirms:
// it overwrites the acceptor and timestamp without erroring.
func AcceptRisk(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to accept risk")
		return
	}

	var req acceptRiskRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if err := core.AcceptRisk(&risk, req.AcceptedBy, req.Justification, nowFunc()); err != nil {
		respondCoreError(w, err)
		return
	}
	risk.UpdatedAt = nowFunc()
	risk.UpdatedBy = ident.UserID

	if _, err := riskCollection.ReplaceOne(ctx, bson.M{"_id": risk.ID, "organizationId": ident.OrgID}, risk); err != nil {
		log.Printf("risk accept update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to record acceptance")
		return
	}

	recordAudit(ctx, ident, "accept_risk", core.EntityRisk, risk.ID, bson.M{"acceptedBy": risk.AcceptedBy})
	websocket.SendEntityUpdate(ident.OrgID, "RISK_ACCEPTED", core.EntityRisk, risk.ID, risk, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newRiskView(risk, nowFunc()))
}

// CloseRisk closes a risk permanently. There is no reopen.
func CloseRisk(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to close risk")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if err := core.CloseRisk(&risk, nowFunc()); err != nil {
		respondCoreError(w, err)
		return
	}
	risk.UpdatedAt = nowFunc()
	risk.UpdatedBy = ident.UserID

	if _, err := riskCollection.ReplaceOne(ctx, bson.M{"_id": risk.ID, "organizationId": ident.OrgID}, risk); err != nil {
		log.Printf("risk close update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to close risk")
		return
	}

	recordAudit(ctx, ident, "close_risk", core.EntityRisk, risk.ID, nil)
	websocket.SendEntityUpdate(ident.OrgID, "RISK_CLOSED", core.EntityRisk, risk.ID, risk, ident.UserName)

	utils.RespondWithJSON(w, http.StatusOK, newRiskView(risk, nowFunc()))
}

// MarkRiskReviewed stamps a completed periodic review and schedules the next
// one.
func MarkRiskReviewed(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to review risk")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	if err := core.MarkRiskReviewed(&risk, nowFunc()); err != nil {
		respondCoreError(w, err)
		return
	}
	risk.UpdatedAt = nowFunc()
	risk.UpdatedBy = ident.UserID

	if _, err := riskCollection.ReplaceOne(ctx, bson.M{"_id": risk.ID, "organizationId": ident.OrgID}, risk); err != nil {
		log.Printf("risk review update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to record review")
		return
	}

	recordAudit(ctx, ident, "review_risk", core.EntityRisk, risk.ID, nil)

	utils.RespondWithJSON(w, http.StatusOK, newRiskView(risk, nowFunc()))
}

// GetRiskActions returns the actions linked to a risk.
func GetRiskActions(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	risk, err := loadOrgRisk(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondCoreError(w, err)
		return
	}

	actions, err := actionsLinkedTo(ctx, ident.OrgID, core.EntityRisk, risk.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to load linked actions")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, actions)
}
