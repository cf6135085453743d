package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/relaykit/relay/internal/api/middleware"
)

// CreateRoomRequest represents the room creation request.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateRoomResponse represents the room creation response.
type CreateRoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoomInfo represents a room in the list response.
type RoomInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MessageCount int64  `json:"message_count"`
	OnlineCount  int    `json:"online_count"`
	LastActive   string `json:"last_active"`
}

// RoomListResponse represents the rooms list response.
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

// CreateRoom handles room creation (authenticated).
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentityFromContext(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !roomNameRegex.MatchString(req.Name) {
		h.Error(w, http.StatusBadRequest, "name must be 1-50 characters, alphanumeric with hyphens and underscores only")
		return
	}
	if len(req.Description) > 200 {
		h.Error(w, http.StatusBadRequest, "description too long (max 200 characters)")
		return
	}

	room, err := h.data.CreateRoom(r.Context(), req.Name, req.Description, &ident.UserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.JSON(w, http.StatusCreated, CreateRoomResponse{
		ID:          room.ID.String(),
		Name:        room.Name,
		Description: room.Description,
	})
}

// ListRooms handles listing rooms, most recently active first.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 20
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	rooms, total, err := h.data.ListRooms(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	infos := make([]RoomInfo, len(rooms))
	for i, room := range rooms {
		infos[i] = RoomInfo{
			ID:           room.ID.String(),
			Name:         room.Name,
			Description:  room.Description,
			MessageCount: room.MessageCount,
			OnlineCount:  len(h.presence.MembersOf(room.ID.String())),
			LastActive:   room.LastActiveAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	h.JSON(w, http.StatusOK, RoomListResponse{
		Rooms: infos,
		Total: total,
	})
}
