package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pirog87/SecurePosture-sub000/models"
	"github.com/Pirog87/SecurePosture-sub000/utils"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	err := userCollection.FindOne(ctx, bson.M{"email": strings.ToLower(req.Email)}).Decode(&user)
	if err == mongo.ErrNoDocuments || (err == nil && !utils.CheckPasswordHash(req.Password, user.PasswordHash)) {
		utils.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		log.Printf("login lookup error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database error")
		return
	}

	token, err := utils.GenerateJWT(
		user.ID.Hex(),
		user.FirstName+" "+user.LastName,
		user.Role,
		user.OrganizationID.Hex(),
	)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"id":    user.ID.Hex(),
			"name":  user.FirstName + " " + user.LastName,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Logout is stateless on the server; clients discard the token.
func Logout(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ValidateToken confirms a bearer token is still good.
func ValidateToken(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	claims, err := utils.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"user": map[string]string{
			"id":   claims.UserID,
			"name": claims.Name,
			"role": claims.Role,
		},
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req changePasswordRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload format")
		return
	}
	if len(req.NewPassword) < 8 {
		utils.RespondWithError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": ident.UserID}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		utils.RespondWithError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	update := bson.M{"$set": bson.M{"passwordHash": hash}}
	if _, err := userCollection.UpdateOne(ctx, bson.M{"_id": ident.UserID}, update); err != nil {
		log.Printf("password update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	recordAudit(ctx, ident, "change_password", "user", ident.UserID, nil)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// GetCurrentUser returns the authenticated user's profile.
func GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromRequest(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": ident.UserID}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, user)
}
