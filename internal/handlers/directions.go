package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/session"
)

// DirectionsResponse is the response of POST /api/v1/sessions/{id}/open-directions
type DirectionsResponse struct {
	URL string `json:"url"`
}

// DirectionsURL builds a Google Maps driving directions link from origin to
// the facility
func DirectionsURL(origin models.Coordinates, f models.Facility) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lng))
	q.Set("destination", fmt.Sprintf("%.6f,%.6f", f.Lat, f.Lng))
	q.Set("travelmode", "driving")
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

// HandleOpenDirections handles POST /api/v1/sessions/{id}/open-directions.
// The body names the facility; without one the selected facility is used.
// The link is handed to the system browser.
func (h *Handler) HandleOpenDirections(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req FacilityRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.FacilityID < 0 {
		h.handleValidationError(w, "facility_id must be positive")
		return
	}

	origin, f, err := s.Destination(req.FacilityID)
	switch {
	case errors.Is(err, session.ErrNoReference):
		h.writeError(w, http.StatusConflict, "PRECONDITION_FAILED", "Defina sua localização antes de abrir a rota.", nil)
		return
	case errors.Is(err, session.ErrNoFacility):
		h.handleValidationError(w, "facility_id is required")
		return
	case errors.Is(err, session.ErrUnknownFacility):
		h.handleNotFound(w, "Facility not found")
		return
	case err != nil:
		h.handleInternalError(w, err)
		return
	}

	link := DirectionsURL(origin, f)
	if h.Opener == nil {
		h.handleInternalError(w, errors.New("no browser opener configured"))
		return
	}
	if err := h.Opener(link); err != nil {
		h.handleInternalError(w, fmt.Errorf("failed to open directions: %w", err))
		return
	}

	log.Printf("[HTTP] POST open-directions: session=%s facility=%d", s.ID(), f.ID)
	h.writeJSON(w, http.StatusOK, DirectionsResponse{URL: link})
}
