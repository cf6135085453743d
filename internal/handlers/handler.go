package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/relay"
	"github.com/relaykit/relay/internal/store"
)

// usernameRegex validates usernames: alphanumeric, hyphens, underscores, 3-32 chars.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// roomNameRegex validates room names: alphanumeric, hyphens, underscores, 1-50 chars.
var roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	data     store.DataStore
	log      store.MessageLog
	tokens   *auth.TokenManager
	presence *relay.PresenceTable

	// HistoryLimit caps GET /rooms/{id}/messages responses.
	HistoryLimit int
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(data store.DataStore, log store.MessageLog, tokens *auth.TokenManager, presence *relay.PresenceTable) *Handler {
	return &Handler{
		data:         data,
		log:          log,
		tokens:       tokens,
		presence:     presence,
		HistoryLimit: 50,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// isValidUsername reports whether a username is acceptable for registration.
func isValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}
