package handlers

import (
	"net/http"

	"github.com/grumming/grumming-app-sub004/http/response"
)

// SendSMSOTP
// POST /send-sms-otp
func (h *Handler) SendSMSOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.OTP.SendSMSOTP(r.Context(), req.Phone, clientIP(r)); err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "OTP sent successfully"})
}

// VerifySMSOTP signs the user in with a phone code.
// POST /verify-sms-otp
func (h *Handler) VerifySMSOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.OTP.VerifySMSOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		h.fail(w, err)
		return
	}
	body := map[string]interface{}{
		"success":   true,
		"isNewUser": res.IsNewUser,
		"userId":    res.UserID,
	}
	if res.Token != "" {
		body["token"] = res.Token
	}
	response.SendJSON(w, http.StatusOK, body)
}

// SendEmailOTP
// POST /send-email-otp
func (h *Handler) SendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.OTP.SendEmailOTP(r.Context(), req.UserID, req.Email); err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Verification code sent"})
}

// VerifyEmailOTP
// POST /verify-email-otp
func (h *Handler) VerifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		OTP    string `json:"otp"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.OTP.VerifyEmailOTP(r.Context(), req.UserID, req.Email, req.OTP); err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Email verified"})
}
