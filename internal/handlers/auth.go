package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/metrics"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse represents the registration response.
type RegisterResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token issued on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !isValidUsername(req.Username) {
		h.Error(w, http.StatusBadRequest, "username must be 3-32 characters, alphanumeric with hyphens and underscores only")
		return
	}
	if !auth.ValidPassword(req.Password) {
		h.Error(w, http.StatusBadRequest, "password must be 8-72 characters")
		return
	}

	// Check username not taken
	existing, err := h.data.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.data.CreateUser(r.Context(), req.Username, hash)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	metrics.UsersRegistered.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:         user.ID.String(),
		Username:   user.Username,
		ProfileURL: fmt.Sprintf("/users/%s", user.ID.String()),
	})
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.data.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		// Identical response for unknown user and bad password.
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    user.ID.String(),
		Username:  user.Username,
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
	})
}
