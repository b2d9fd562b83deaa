package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Pirog87/SecurePosture-sub000/core"
	"github.com/Pirog87/SecurePosture-sub000/models"
	"github.com/Pirog87/SecurePosture-sub000/utils"
)

// GetDashboardOverview aggregates the register state for the landing
// dashboard: severity bands, overdue reviews, expiring exceptions and open
// actions. Severity and expiry flags are recomputed here, not read from
// stored fields, so the dashboard can never drift from the scoring rules.
func GetDashboardOverview(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	now := nowFunc()

	// Risks.
	riskCursor, err := riskCollection.Find(ctx, bson.M{"organizationId": ident.OrgID})
	if err != nil {
		log.Printf("dashboard risks error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var risks []models.Risk
	if err = riskCursor.All(ctx, &risks); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode risks")
		return
	}

	severityCounts := map[string]int{core.SeverityLow: 0, core.SeverityMedium: 0, core.SeverityHigh: 0}
	var open, closed, accepted, overdue int
	for _, risk := range risks {
		if risk.Status == core.RiskStatusClosed {
			closed++
			continue
		}
		open++
		severityCounts[core.Classify(risk.RiskScore)]++
		if risk.Accepted() {
			accepted++
		}
		if core.IsOverdueForReview(risk.LastReviewAt, risk.CreatedAt, now) {
			overdue++
		}
	}

	// Exceptions.
	excCursor, err := exceptionCollection.Find(ctx, bson.M{"organizationId": ident.OrgID})
	if err != nil {
		log.Printf("dashboard exceptions error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var exceptions []models.PolicyException
	if err = excCursor.All(ctx, &exceptions); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode exceptions")
		return
	}

	today := startOfDay(now)
	var activeExceptions, expiredExceptions, expiringSoon int
	for _, exc := range exceptions {
		if exc.Status == core.ExceptionStatusArchived {
			continue
		}
		switch {
		case core.IsExceptionExpired(exc.ExpiryDate, today):
			expiredExceptions++
		case core.IsExceptionExpiringSoon(exc.ExpiryDate, today):
			expiringSoon++
			activeExceptions++
		default:
			activeExceptions++
		}
	}

	// Actions, grouped server-side.
	pipeline := []bson.M{
		{"$match": bson.M{"organizationId": ident.OrgID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	actionCursor, err := actionCollection.Aggregate(ctx, pipeline)
	if err != nil {
		log.Printf("dashboard actions error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var actionRows []bson.M
	if err = actionCursor.All(ctx, &actionRows); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode action stats")
		return
	}
	actionCounts := make(map[string]int64, len(actionRows))
	for _, row := range actionRows {
		status, _ := row["_id"].(string)
		actionCounts[status] = toInt64(row["count"])
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"risks": map[string]interface{}{
			"open":             open,
			"closed":           closed,
			"accepted":         accepted,
			"overdueForReview": overdue,
			"bySeverity":       severityCounts,
		},
		"exceptions": map[string]interface{}{
			"active":       activeExceptions,
			"expired":      expiredExceptions,
			"expiringSoon": expiringSoon,
		},
		"actions":     actionCounts,
		"generatedAt": now,
	})
}
