package handlers

import (
	"net/http"

	"github.com/grumming/grumming-app-sub004/http/response"
)

// FirebaseAuth exchanges a Firebase phone login for a local user.
// POST /firebase-auth
func (h *Handler) FirebaseAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"firebaseIdToken"`
		Phone   string `json:"phone"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Auth.FirebaseLogin(r.Context(), req.IDToken, req.Phone)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"isNewUser":       res.IsNewUser,
		"userId":          res.UserID,
		"verificationUrl": res.VerificationURL,
	})
}

// Healthz reports whether the database is reachable.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Error("Health check failed: %v", err)
			response.SendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	response.SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
