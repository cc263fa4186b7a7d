package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"worklog/services"
)

// AuthHandler handles authentication-related endpoints. The login flow
// itself belongs to the external identity provider; this handler only
// verifies tokens and, in development mode, mints them.
type AuthHandler struct {
	authService *services.AuthService
	devTokens   bool
	log         *zap.SugaredLogger
}

func NewAuthHandler(authService *services.AuthService, devTokens bool, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		devTokens:   devTokens,
		log:         log,
	}
}

// VerifyToken checks if a JWT token is valid.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	authParts := strings.Split(authHeader, " ")
	if len(authParts) != 2 || authParts[0] != "Bearer" {
		writeError(w, http.StatusUnauthorized, "invalid authorization format")
		return
	}

	email, err := h.authService.VerifyJWT(authParts[1])
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":  email,
		"status": "valid",
	})
}

// IssueToken mints a JWT for the given email. Only available when dev
// tokens are enabled in config.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if !h.devTokens {
		writeError(w, http.StatusForbidden, "dev tokens are disabled")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	token, err := h.authService.CreateJWT(req.Email)
	if err != nil {
		h.log.Errorf("Error creating JWT: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"token":  token,
	})
}
