package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relaykit/relay/internal/models"
)

// RoomMessagesResponse represents the room history response. Message
// entries carry the same shape as the load_messages WebSocket payload.
type RoomMessagesResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []models.Message `json:"messages"`
}

// GetRoomMessages returns up to 50 of the newest messages for a room,
// ordered oldest-first — the same semantics as the history handed to a
// joining connection, usable without an active connection.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomIDStr := chi.URLParam(r, "id")

	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	room, err := h.data.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	limit := h.HistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < limit {
			limit = l
		}
	}

	messages, err := h.log.Recent(r.Context(), roomIDStr, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, RoomMessagesResponse{
		RoomID:   roomIDStr,
		Messages: messages,
	})
}
