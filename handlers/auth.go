package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"AttendanceBot/database"
	"AttendanceBot/middleware"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Login exchanges the admin credentials for a bearer token.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var login LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if login.Username == "" || login.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(login.Username), []byte(a.adminUser)) == 1
	// bcrypt runs on every attempt, known username or not.
	passErr := bcrypt.CompareHashAndPassword(a.adminHash, []byte(login.Password))
	if !userOK || passErr != nil {
		a.log.Warn("login rejected", zap.String("username", login.Username))
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.auth.GenerateToken(a.adminUser, middleware.RoleAdmin)
	if err != nil {
		a.log.Error("generate token", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Error generating token")
		return
	}
	respondWithJSON(w, http.StatusOK, AuthResponse{
		Token:  token,
		UserID: a.adminUser,
		Role:   middleware.RoleAdmin,
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithStoreError answers 503 when the store itself is unreachable and
// 500 with message otherwise.
func respondWithStoreError(w http.ResponseWriter, err error, message string) {
	if database.IsStorageError(err) {
		respondWithError(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}
	respondWithError(w, http.StatusInternalServerError, message)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
