package routes

import (
	"github.com/gorilla/mux"

	"github.com/Pirog87/SecurePosture-sub000/handlers"
	"github.com/Pirog87/SecurePosture-sub000/middleware"
	"github.com/Pirog87/SecurePosture-sub000/websocket"
)

// HTTP method constants for better maintainability
var (
	MethodsGetOnly    = []string{"GET", "OPTIONS"}
	MethodsPostOnly   = []string{"POST", "OPTIONS"}
	MethodsPutOnly    = []string{"PUT", "OPTIONS"}
	MethodsDeleteOnly = []string{"DELETE", "OPTIONS"}
)

const (
	PathAPI    = "/api"
	PathHealth = "/health"
)

func RegisterRoutes(r *mux.Router) {
	// ====================
	// HEALTH CHECK (Public)
	// ====================
	r.HandleFunc(PathHealth, handlers.HealthCheck).Methods(MethodsGetOnly...)

	// ====================
	// AUTHENTICATION (Public)
	// ====================
	r.HandleFunc("/api/auth/login", handlers.Login).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/auth/logout", handlers.Logout).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/auth/validate", handlers.ValidateToken).Methods(MethodsGetOnly...)

	// ====================
	// REAL-TIME STREAM (token-authenticated in the handler)
	// ====================
	r.HandleFunc("/api/stream", websocket.HandleStream)

	// ====================
	// PROTECTED API ROUTES
	// ====================
	apiRouter := r.PathPrefix(PathAPI).Subrouter()
	apiRouter.Use(middleware.AuthMiddleware)

	// ====================
	// USER
	// ====================
	apiRouter.HandleFunc("/user/me", handlers.GetCurrentUser).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/user/change-password", handlers.ChangePassword).Methods(MethodsPostOnly...)

	// ====================
	// RISK REGISTER
	// ====================
	apiRouter.HandleFunc("/risks", handlers.ListRisks).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/risks", handlers.CreateRisk).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/risks/{id}", handlers.GetRisk).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/risks/{id}", handlers.UpdateRisk).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/risks/{id}/accept", handlers.AcceptRisk).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/risks/{id}/close", handlers.CloseRisk).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/risks/{id}/review", handlers.MarkRiskReviewed).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/risks/{id}/actions", handlers.GetRiskActions).Methods(MethodsGetOnly...)

	// ====================
	// POLICY EXCEPTIONS
	// ====================
	apiRouter.HandleFunc("/exceptions", handlers.ListExceptions).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/exceptions", handlers.CreateException).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/exceptions/{id}", handlers.GetException).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/exceptions/{id}", handlers.UpdateException).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/exceptions/{id}/approve", handlers.ApproveException).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/exceptions/{id}/archive", handlers.ArchiveException).Methods(MethodsPostOnly...)

	// ====================
	// REMEDIATION ACTIONS
	// ====================
	apiRouter.HandleFunc("/actions", handlers.ListActions).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/actions", handlers.CreateAction).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/actions/{id}", handlers.GetAction).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/actions/{id}", handlers.UpdateAction).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/actions/{id}", handlers.DeleteAction).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/actions/{id}/link", handlers.LinkAction).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/actions/{id}/unlink", handlers.UnlinkAction).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/entities/{entityType}/{entityId}/actions", handlers.GetEntityActions).Methods(MethodsGetOnly...)

	// ====================
	// ORGANIZATIONAL STRUCTURE
	// ====================
	apiRouter.HandleFunc("/org-units/tree", handlers.GetOrgUnitTree).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/org-units/selector", handlers.GetOrgUnitSelector).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/org-units/paths", handlers.GetOrgUnitPaths).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/org-units", handlers.CreateOrgUnit).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/org-units/{id}", handlers.UpdateOrgUnit).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/org-units/{id}", handlers.DeleteOrgUnit).Methods(MethodsDeleteOnly...)

	// ====================
	// BENCHMARK ASSESSMENTS
	// ====================
	apiRouter.HandleFunc("/assessments", handlers.ListAssessments).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/assessments", handlers.CreateAssessment).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/assessments/{id}", handlers.GetAssessment).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/assessments/{id}", handlers.UpdateAssessmentItems).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/assessments/{id}", handlers.DeleteAssessment).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/assessments/{id}/summary", handlers.GetAssessmentSummary).Methods(MethodsGetOnly...)

	// ====================
	// DASHBOARD & AUDIT
	// ====================
	apiRouter.HandleFunc("/dashboard/overview", handlers.GetDashboardOverview).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/audit", handlers.ListAuditLogs).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/audit/stats", handlers.GetAuditStats).Methods(MethodsGetOnly...)
}
