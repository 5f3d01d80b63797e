package handlers

import (
	"net/http"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/http/response"
)

// ReverseGeocode
// POST /reverse-geocode
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		response.SendJSON(w, http.StatusBadRequest, response.ErrorBody{Error: "latitude and longitude are required", Code: "missing_fields"})
		return
	}

	res, err := h.Geo.ReverseGeocode(r.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, res)
}

// PlacesAutocomplete answers 200 even when geocoding is unconfigured, with the reason in "error".
// POST /places-autocomplete
func (h *Handler) PlacesAutocomplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string `json:"query"`
		Country string `json:"country"`
		Limit   int    `json:"limit"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Geo.Autocomplete(r.Context(), req.Query, req.Country, req.Limit)
	if err != nil {
		if errors.KindOf(err) == errors.Config && res != nil {
			h.Log.Warn("Autocomplete unavailable: %v", err)
			response.SendJSON(w, http.StatusOK, map[string]interface{}{
				"suggestions": res.Suggestions,
				"grouped":     res.Grouped,
				"error":       "Geocoding service not configured",
			})
			return
		}
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, res)
}
