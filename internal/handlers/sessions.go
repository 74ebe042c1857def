package handlers

import (
	"log"
	"net/http"

	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/positioning"
	"impound-lot-finder/internal/sequence"
	"impound-lot-finder/internal/session"
)

// SearchRequest is the body of POST /api/v1/sessions/{id}/search
type SearchRequest struct {
	Query string `json:"query"`
}

// DeviceLocationStarted is the response of
// POST /api/v1/sessions/{id}/begin-device-location
type DeviceLocationStarted struct {
	Token   sequence.Token  `json:"token"`
	Session models.Snapshot `json:"session"`
}

// DeviceLocationRequest is the optional body of
// POST /api/v1/sessions/{id}/device-location. It carries the fix, or the
// failure code, the renderer got from the platform geolocation API together
// with the token from begin-device-location. An empty body asks the
// server-side positioner instead.
type DeviceLocationRequest struct {
	Token     sequence.Token `json:"token"`
	Lat       *float64       `json:"lat"`
	Lng       *float64       `json:"lng"`
	Accuracy  float64        `json:"accuracy"`
	ErrorCode int            `json:"error_code"`
	Message   string         `json:"message"`
}

// positioner returns nil when the request carries neither a fix nor a failure
func (req DeviceLocationRequest) positioner() positioning.Positioner {
	if req.ErrorCode != 0 {
		return positioning.Reported{Code: req.ErrorCode, Message: req.Message}
	}
	if req.Lat == nil || req.Lng == nil {
		return nil
	}
	return positioning.Reported{
		Coords:         models.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
		AccuracyMeters: req.Accuracy,
	}
}

// FacilityRequest is the body of the select, focus and route actions
type FacilityRequest struct {
	FacilityID int64 `json:"facility_id"`
}

// HandleCreateSession handles POST /api/v1/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create()
	log.Printf("[HTTP] POST /api/v1/sessions: id=%s", s.ID())
	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

// HandleSession dispatches /api/v1/sessions/{id} and its actions
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	_, action := sessionPath(r.URL.Path)

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			h.HandleGetSession(w, r)
		case http.MethodDelete:
			h.HandleDeleteSession(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if action == "stream" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleStream(w, r)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "search":
		h.HandleSearch(w, r)
	case "begin-device-location":
		h.HandleBeginDeviceLocation(w, r)
	case "device-location":
		h.HandleDeviceLocation(w, r)
	case "select":
		h.HandleSelectFacility(w, r)
	case "focus":
		h.HandleFocusFacility(w, r)
	case "route":
		h.HandleRequestRoute(w, r)
	case "clear-route":
		h.HandleClearRoute(w, r)
	case "reset":
		h.HandleReset(w, r)
	case "open-directions":
		h.HandleOpenDirections(w, r)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// HandleGetSession handles GET /api/v1/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, _ := sessionPath(r.URL.Path)
	if !h.Sessions.Delete(id) {
		h.handleNotFound(w, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch handles POST /api/v1/sessions/{id}/search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	log.Printf("[HTTP] POST search: session=%s query=%q", s.ID(), req.Query)
	h.writeJSON(w, http.StatusOK, s.SearchAddress(r.Context(), req.Query))
}

// HandleDeviceLocation handles POST /api/v1/sessions/{id}/device-location
func (h *Handler) HandleDeviceLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req DeviceLocationRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		h.handleValidationError(w, "lat and lng must be given together")
		return
	}

	p := req.positioner()
	if (p != nil) != (req.Token != 0) {
		h.handleValidationError(w, "a reported fix needs the token from begin-device-location")
		return
	}

	log.Printf("[HTTP] POST device-location: session=%s token=%d error_code=%d", s.ID(), req.Token, req.ErrorCode)
	if p == nil {
		h.writeJSON(w, http.StatusOK, s.UseDeviceLocation(r.Context(), nil))
		return
	}
	h.writeJSON(w, http.StatusOK, s.CompleteDeviceLocation(r.Context(), req.Token, p))
}

// HandleBeginDeviceLocation handles
// POST /api/v1/sessions/{id}/begin-device-location
func (h *Handler) HandleBeginDeviceLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	token, snap := s.BeginDeviceLocation()
	log.Printf("[HTTP] POST begin-device-location: session=%s token=%d", s.ID(), token)
	h.writeJSON(w, http.StatusOK, DeviceLocationStarted{Token: token, Session: snap})
}

// HandleSelectFacility handles POST /api/v1/sessions/{id}/select
func (h *Handler) HandleSelectFacility(w http.ResponseWriter, r *http.Request) {
	h.withFacility(w, r, func(s *session.Session, id int64) models.Snapshot {
		return s.SelectFacility(id)
	})
}

// HandleFocusFacility handles POST /api/v1/sessions/{id}/focus
func (h *Handler) HandleFocusFacility(w http.ResponseWriter, r *http.Request) {
	h.withFacility(w, r, func(s *session.Session, id int64) models.Snapshot {
		return s.FocusFacility(id)
	})
}

// HandleRequestRoute handles POST /api/v1/sessions/{id}/route
func (h *Handler) HandleRequestRoute(w http.ResponseWriter, r *http.Request) {
	h.withFacility(w, r, func(s *session.Session, id int64) models.Snapshot {
		return s.RequestRoute(r.Context(), id)
	})
}

// HandleClearRoute handles POST /api/v1/sessions/{id}/clear-route
func (h *Handler) HandleClearRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.ClearRoute())
}

// HandleReset handles POST /api/v1/sessions/{id}/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Reset())
}

func (h *Handler) withFacility(w http.ResponseWriter, r *http.Request, op func(*session.Session, int64) models.Snapshot) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req FacilityRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.FacilityID <= 0 {
		h.handleValidationError(w, "facility_id is required")
		return
	}

	h.writeJSON(w, http.StatusOK, op(s, req.FacilityID))
}
