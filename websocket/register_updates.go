package websocket

import (
	"encoding/json"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegisterUpdate is a real-time notification about a register mutation.
type RegisterUpdate struct {
	Type       string      `json:"type"` // e.g. RISK_UPDATED, EXCEPTION_ARCHIVED, ACTION_LINKED
	EntityType string      `json:"entityType"`
	EntityID   string      `json:"entityId,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	UserName   string      `json:"userName,omitempty"`
}

// BroadcastRegisterUpdate sends the update to every client of the org.
func BroadcastRegisterUpdate(orgID primitive.ObjectID, update RegisterUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("Failed to marshal register update: %v", err)
		return
	}
	hub.broadcast <- broadcastMessage{orgID: orgID.Hex(), payload: data}
}

// SendEntityUpdate is the shorthand used by handlers after a mutation.
func SendEntityUpdate(orgID primitive.ObjectID, updateType, entityType string, entityID primitive.ObjectID, data interface{}, userName string) {
	BroadcastRegisterUpdate(orgID, RegisterUpdate{
		Type:       updateType,
		EntityType: entityType,
		EntityID:   entityID.Hex(),
		Data:       data,
		UserName:   userName,
	})
}
