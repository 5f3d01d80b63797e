package handlers

import (
	"net/http"
	"strconv"

	"github.com/grumming/grumming-app-sub004/http/response"
)

// SyncSettlements pulls settlements from the gateway.
// POST /sync-settlements
func (h *Handler) SyncSettlements(w http.ResponseWriter, r *http.Request) {
	res, err := h.Settlements.Sync(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"synced_settlements": res.SyncedSettlements,
		"updated_payments":   res.UpdatedPayments,
	})
}

// SettlementReport downloads the latest settlements as an XLSX workbook.
// GET /settlements/report.xlsx?limit=50
func (h *Handler) SettlementReport(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	data, err := h.Reports.SettlementReport(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="settlements.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Log.Error("Error writing settlement report: %v", err)
	}
}
