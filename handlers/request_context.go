// handlers/request_context.go
//
// Helpers shared by every handler: identity extraction from the request
// context set by the auth middleware, and the substitutable clock feeding
// the overdue/expiry predicates.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// nowFunc is swapped out in tests to pin time.
var nowFunc = func() time.Time { return time.Now().UTC() }

type requestIdentity struct {
	OrgID    primitive.ObjectID
	UserID   primitive.ObjectID
	UserName string
	Role     string
}

func identityFromRequest(r *http.Request) (requestIdentity, error) {
	var ident requestIdentity

	orgIDStr, ok := r.Context().Value("orgID").(string)
	if !ok || orgIDStr == "" {
		return ident, fmt.Errorf("organization id required")
	}
	orgID, err := primitive.ObjectIDFromHex(orgIDStr)
	if err != nil {
		return ident, fmt.Errorf("invalid organization id format")
	}

	userIDStr, ok := r.Context().Value("userID").(string)
	if !ok || userIDStr == "" {
		return ident, fmt.Errorf("user id required")
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		return ident, fmt.Errorf("invalid user id format")
	}

	ident.OrgID = orgID
	ident.UserID = userID
	ident.UserName, _ = r.Context().Value("userName").(string)
	ident.Role, _ = r.Context().Value("userRole").(string)
	return ident, nil
}

func canEditRegisters(role string) bool {
	return role == "admin" || role == "risk_manager"
}

// startOfDay truncates to midnight UTC. Exception expiry dates are stored as
// midnight UTC, so the expiry predicates compare calendar days, not
// timestamps: an exception expiring today is still in force all day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDatePointer parses an optional YYYY-MM-DD value.
func parseDatePointer(dateStr *string) (*time.Time, error) {
	if dateStr == nil || *dateStr == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date format, expected YYYY-MM-DD")
	}
	return &t, nil
}
