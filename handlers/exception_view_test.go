package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Pirog87/SecurePosture-sub000/core"
	"github.com/Pirog87/SecurePosture-sub000/models"
)

func TestExceptionExpiryFlagsAreDayGranular(t *testing.T) {
	expiry := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	exc := models.PolicyException{
		ID:         primitive.NewObjectID(),
		Status:     core.ExceptionStatusActive,
		ExpiryDate: expiry,
	}

	// An exception expiring today is still in force for the whole day, no
	// matter what time of day the register is read.
	midday := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	v := newExceptionView(exc, midday)
	assert.False(t, v.IsExpired, "exception expiring today must not be flagged expired at midday")
	assert.True(t, v.IsExpiringSoon)

	almostMidnight := time.Date(2025, 6, 15, 23, 59, 59, 0, time.UTC)
	v = newExceptionView(exc, almostMidnight)
	assert.False(t, v.IsExpired)

	nextMorning := time.Date(2025, 6, 16, 8, 30, 0, 0, time.UTC)
	v = newExceptionView(exc, nextMorning)
	assert.True(t, v.IsExpired)
	assert.False(t, v.IsExpiringSoon)
}

func TestExceptionWarningWindowIgnoresTimeOfDay(t *testing.T) {
	// Expiry exactly 30 days out stays inside the warning window even when
	// read late in the evening.
	expiry := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	exc := models.PolicyException{ExpiryDate: expiry}

	lateEvening := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	v := newExceptionView(exc, lateEvening)
	assert.True(t, v.IsExpiringSoon)
	assert.False(t, v.IsExpired)

	// 31 days out is outside the window regardless of the hour.
	dayBefore := time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC)
	v = newExceptionView(exc, dayBefore)
	assert.False(t, v.IsExpiringSoon)
}

func TestExceptionRiskPayloadNilWhenRiskMissing(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	payload := exceptionRiskPayload(models.Risk{}, false, now)
	assert.Nil(t, payload, "a dangling risk reference must render as null, not a zero-valued risk")

	risk := models.Risk{
		ID:        primitive.NewObjectID(),
		AssetName: "crm database",
		Status:    core.RiskStatusInReview,
		CreatedAt: now,
	}
	payload = exceptionRiskPayload(risk, true, now)
	view, ok := payload.(riskView)
	assert.True(t, ok)
	assert.Equal(t, risk.ID, view.ID)
}
