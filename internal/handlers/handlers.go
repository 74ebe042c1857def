package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/session"
)

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB       database.DataStore
	Sessions *session.Store

	// Opener hands a URL to the system browser
	Opener func(rawURL string) error
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// sessionPath splits /api/v1/sessions/{id}/{action} into id and action.
// Action is empty for the bare session resource.
func sessionPath(path string) (id, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, SessionsPrefix), "/")
	id, action, _ = strings.Cut(rest, "/")
	return id, action
}

// SessionsPrefix is the path under which session resources live
const SessionsPrefix = "/api/v1/sessions/"

// lookupSession resolves the session named in the request path, writing a
// 404 when it does not exist.
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, _ := sessionPath(r.URL.Path)
	if id == "" {
		h.handleNotFound(w, "Session not found")
		return nil, false
	}
	s := h.Sessions.Get(id)
	if s == nil {
		h.handleNotFound(w, "Session not found")
		return nil, false
	}
	return s, true
}
