package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pirog87/SecurePosture-sub000/models"
	"github.com/Pirog87/SecurePosture-sub000/utils"
	"github.com/Pirog87/SecurePosture-sub000/websocket"
)

// recordAudit writes an audit entry and pushes it to connected clients.
// Audit failures are logged, never surfaced to the caller: the mutation that
// triggered them has already succeeded.
func recordAudit(ctx context.Context, ident requestIdentity, action, entityType string, entityID primitive.ObjectID, details bson.M) {
	entry := models.AuditLog{
		ID:             primitive.NewObjectID(),
		OrganizationID: ident.OrgID,
		UserID:         ident.UserID,
		UserName:       ident.UserName,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		Details:        details,
		CreatedAt:      nowFunc(),
	}

	if _, err := auditCollection.InsertOne(ctx, entry); err != nil {
		log.Printf("audit insert failed for %s %s: %v", action, entityID.Hex(), err)
		return
	}

	websocket.SendEntityUpdate(ident.OrgID, "AUDIT_"+action, entityType, entityID, entry, ident.UserName)
}

// ListAuditLogs returns the newest audit entries for the org, optionally
// filtered by entity type, action or entity id.
func ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{"organizationId": ident.OrgID}
	if entityType := r.URL.Query().Get("entityType"); entityType != "" {
		filter["entityType"] = entityType
	}
	if action := r.URL.Query().Get("action"); action != "" {
		filter["action"] = action
	}
	if entityID := r.URL.Query().Get("entityId"); entityID != "" {
		oid, err := primitive.ObjectIDFromHex(entityID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid entity id")
			return
		}
		filter["entityId"] = oid
	}

	limit := int64(100)
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.ParseInt(l, 10, 64); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := auditCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("audit Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var logs []models.AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode audit logs")
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	utils.RespondWithJSON(w, http.StatusOK, logs)
}

// GetAuditStats returns per-action counts for the org.
func GetAuditStats(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"organizationId": ident.OrgID}},
		{"$group": bson.M{"_id": "$action", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := auditCollection.Aggregate(ctx, pipeline)
	if err != nil {
		log.Printf("audit aggregate error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err = cursor.All(ctx, &rows); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode stats")
		return
	}

	stats := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		action, _ := row["_id"].(string)
		count := toInt64(row["count"])
		stats[action] = count
		total += count
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"total":    total,
		"byAction": stats,
	})
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
