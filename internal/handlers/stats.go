package handlers

import (
	"net/http"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers        int64  `json:"total_users"`
	TotalRooms        int64  `json:"total_rooms"`
	TotalMessages     int64  `json:"total_messages"`
	ConnectionsOnline int    `json:"connections_online"`
	RoomsOccupied     int    `json:"rooms_occupied"`
	Timestamp         string `json:"timestamp"`
}

// Stats returns platform statistics: durable aggregate counts plus live
// presence figures from the relay.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.data.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalRooms, err := h.data.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.data.SumMessageCount(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sum messages")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:        totalUsers,
		TotalRooms:        totalRooms,
		TotalMessages:     totalMessages,
		ConnectionsOnline: h.presence.SessionCount(),
		RoomsOccupied:     h.presence.RoomCount(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	})
}
