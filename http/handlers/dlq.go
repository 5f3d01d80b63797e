package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/grumming/grumming-app-sub004/http/response"
)

// GetDLQMessages retrieves unresolved DLQ messages
// GET /api/dlq/messages?limit=50
func (h *Handler) GetDLQMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	messages, err := h.DLQ.Unresolved(r.Context(), limit)
	if err != nil {
		h.Log.Error("Error fetching DLQ messages: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch DLQ messages")
		return
	}

	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(messages),
		"data":  messages,
	})
}

// RetryDLQMessage retries processing of a specific DLQ message
// POST /api/dlq/messages/{id}/retry
func (h *Handler) RetryDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	if h.DLQRetry == nil {
		response.ErrorResponse(w, http.StatusServiceUnavailable, "Message retry is unavailable")
		return
	}

	ok, err := h.DLQ.RetryOne(r.Context(), messageID, h.DLQRetry)
	if err != nil {
		h.fail(w, err)
		return
	}

	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"messageId": messageID,
		"resolved":  ok,
	})
}

// ResolveDLQMessage marks a DLQ message as resolved
// POST /api/dlq/messages/{id}/resolve
func (h *Handler) ResolveDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Notes == "" {
		req.Notes = "Manually resolved"
	}

	if err := h.DLQ.Resolve(r.Context(), messageID, req.Notes); err != nil {
		h.fail(w, err)
		return
	}

	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"messageId": messageID,
		"resolved":  true,
	})
}

// GetDLQStats
// GET /api/dlq/stats
func (h *Handler) GetDLQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.DLQ.Stats(r.Context())
	if err != nil {
		h.Log.Error("Error fetching DLQ statistics: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch DLQ statistics")
		return
	}
	response.SendJSON(w, http.StatusOK, stats)
}
