package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ukydev/garage/internal/auth"
	"github.com/ukydev/garage/internal/middleware"
	"github.com/ukydev/garage/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	log         logrus.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Login handles operator login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.authService == nil {
		http.Error(w, "Authentication is disabled", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Validate input
	if loginReq.Username == "" || loginReq.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	resp, err := h.authService.Login(loginReq)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.log.WithField("username", loginReq.Username).Warn("Failed login")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to generate token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.log.WithFields(logrus.Fields{"username": resp.Operator.Username, "role": resp.Operator.Role}).Info("Operator logged in")
	writeJSON(w, http.StatusOK, resp)
}

// GetProfile returns the operator behind the request token
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetOperatorFromContext(r.Context())
	if !ok {
		http.Error(w, "Operator context not found", http.StatusUnauthorized)
		return
	}
	if h.authService == nil {
		writeJSON(w, http.StatusOK, models.Operator{Username: claims.Username, Role: claims.Role})
		return
	}
	op, err := h.authService.Operator(claims.Username)
	if err != nil {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, op)
}
