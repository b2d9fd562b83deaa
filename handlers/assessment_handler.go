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

	"github.com/Pirog87/SecurePosture-sub000/models"
	"github.com/Pirog87/SecurePosture-sub000/utils"
)

// ListAssessments returns the org's benchmark assessments.
func ListAssessments(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{"organizationId": ident.OrgID}
	if benchmark := r.URL.Query().Get("benchmark"); benchmark != "" {
		filter["benchmarkName"] = benchmark
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := assessmentCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("assessments Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var assessments []models.Assessment
	if err = cursor.All(ctx, &assessments); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode assessments")
		return
	}
	if assessments == nil {
		assessments = []models.Assessment{}
	}

	utils.RespondWithJSON(w, http.StatusOK, assessments)
}

type createAssessmentRequest struct {
	BenchmarkName string                  `json:"benchmarkName"`
	OrgUnitID     string                  `json:"orgUnitId,omitempty"`
	AssessedBy    string                  `json:"assessedBy,omitempty"`
	Items         []models.AssessmentItem `json:"items"`
}

func CreateAssessment(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create assessment")
		return
	}

	var req createAssessmentRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if req.BenchmarkName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "benchmark name is required")
		return
	}
	for _, item := range req.Items {
		if item.ControlID == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "every item needs a control id")
			return
		}
	}

	now := nowFunc()
	assessment := models.Assessment{
		ID:             primitive.NewObjectID(),
		OrganizationID: ident.OrgID,
		BenchmarkName:  req.BenchmarkName,
		Items:          req.Items,
		AssessedBy:     req.AssessedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if assessment.Items == nil {
		assessment.Items = []models.AssessmentItem{}
	}

	if req.OrgUnitID != "" {
		unitID, err := primitive.ObjectIDFromHex(req.OrgUnitID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid org unit id")
			return
		}
		assessment.OrgUnitID = unitID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := assessmentCollection.InsertOne(ctx, assessment); err != nil {
		log.Printf("assessment insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create assessment")
		return
	}

	recordAudit(ctx, ident, "create_assessment", "assessment", assessment.ID, bson.M{"benchmark": assessment.BenchmarkName})

	utils.RespondWithJSON(w, http.StatusCreated, assessment)
}

func loadOrgAssessment(ctx context.Context, orgID primitive.ObjectID, idHex string) (models.Assessment, bool, error) {
	var assessment models.Assessment
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return assessment, false, err
	}
	err = assessmentCollection.FindOne(ctx, bson.M{"_id": id, "organizationId": orgID}).Decode(&assessment)
	if err == mongo.ErrNoDocuments {
		return assessment, false, nil
	}
	return assessment, err == nil, err
}

func GetAssessment(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	assessment, found, err := loadOrgAssessment(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assessment id")
		return
	}
	if !found {
		utils.RespondWithError(w, http.StatusNotFound, "assessment not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, assessment)
}

type updateAssessmentItemsRequest struct {
	Items []models.AssessmentItem `json:"items"`
}

// UpdateAssessmentItems replaces the item statuses wholesale; the grid edits
// client-side and submits the full list.
func UpdateAssessmentItems(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !canEditRegisters(ident.Role) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update assessment")
		return
	}

	var req updateAssessmentItemsRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	for _, item := range req.Items {
		if item.ControlID == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "every item needs a control id")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	assessment, found, err := loadOrgAssessment(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assessment id")
		return
	}
	if !found {
		utils.RespondWithError(w, http.StatusNotFound, "assessment not found")
		return
	}

	assessment.Items = req.Items
	if assessment.Items == nil {
		assessment.Items = []models.AssessmentItem{}
	}
	assessment.UpdatedAt = nowFunc()

	if _, err := assessmentCollection.ReplaceOne(ctx, bson.M{"_id": assessment.ID, "organizationId": ident.OrgID}, assessment); err != nil {
		log.Printf("assessment update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update assessment")
		return
	}

	recordAudit(ctx, ident, "update_assessment", "assessment", assessment.ID, bson.M{"items": len(assessment.Items)})

	utils.RespondWithJSON(w, http.StatusOK, assessment)
}

func DeleteAssessment(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if ident.Role != "admin" {
		utils.RespondWithError(w, http.StatusForbidden, "only admins can delete assessments")
		return
	}

	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assessment id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := assessmentCollection.DeleteOne(ctx, bson.M{"_id": id, "organizationId": ident.OrgID})
	if err != nil {
		log.Printf("assessment delete error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete assessment")
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "assessment not found")
		return
	}

	recordAudit(ctx, ident, "delete_assessment", "assessment", id, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "assessment deleted"})
}

// GetAssessmentSummary aggregates item statuses per implementation group.
func GetAssessmentSummary(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	assessment, found, err := loadOrgAssessment(ctx, ident.OrgID, mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assessment id")
		return
	}
	if !found {
		utils.RespondWithError(w, http.StatusNotFound, "assessment not found")
		return
	}

	type groupSummary struct {
		Total          int     `json:"total"`
		Implemented    int     `json:"implemented"`
		Partial        int     `json:"partial"`
		NotImplemented int     `json:"notImplemented"`
		NotApplicable  int     `json:"notApplicable"`
		Coverage       float64 `json:"coverage"`
	}

	groups := make(map[string]*groupSummary)
	for _, item := range assessment.Items {
		ig := item.ImplementationGroup
		if ig == "" {
			ig = "ungrouped"
		}
		g, ok := groups[ig]
		if !ok {
			g = &groupSummary{}
			groups[ig] = g
		}
		g.Total++
		switch item.Status {
		case "implemented":
			g.Implemented++
		case "partial":
			g.Partial++
		case "not_applicable":
			g.NotApplicable++
		default:
			g.NotImplemented++
		}
	}
	for _, g := range groups {
		applicable := g.Total - g.NotApplicable
		if applicable > 0 {
			g.Coverage = 100 * float64(g.Implemented) / float64(applicable)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"benchmarkName": assessment.BenchmarkName,
		"byGroup":       groups,
	})
}
