package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"impound-lot-finder/internal/models"
)

// FacilityListResponse represents the list response
type FacilityListResponse struct {
	Facilities []models.Facility `json:"facilities"`
	Total      int               `json:"total"`
}

// HandleListFacilities handles GET /api/v1/facilities
func (h *Handler) HandleListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.DB.Facilities().List(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FacilityListResponse{
		Facilities: facilities,
		Total:      len(facilities),
	})
}

// HandleGetFacility handles GET /api/v1/facilities/{id}
func (h *Handler) HandleGetFacility(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/facilities/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.handleValidationError(w, "Invalid facility ID")
		return
	}

	facility, err := h.DB.Facilities().GetByID(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Facility not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, facility)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"sessions": h.Sessions.Len(),
	})
}
