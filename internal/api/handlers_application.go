package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
)

// applicationNumberFromPath rebuilds the canonical application number from
// the number and year path segments.
func applicationNumberFromPath(r *http.Request) (string, bool) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil || number < 1 {
		return "", false
	}
	year, err := strconv.Atoi(vars["year"])
	if err != nil || year < 0 || year > 99 {
		return "", false
	}
	return models.ApplicationID(number, year), true
}

// handleGetApplication handles GET /api/applications/{number}/{year}
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	applicationNumber, ok := applicationNumberFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid application number", nil)
		return
	}

	app, err := s.applications.GetByNumber(r.Context(), applicationNumber)
	if err != nil {
		statusCode, code, message := mapStorageError(err)
		if statusCode == http.StatusInternalServerError {
			logging.FromContext(r.Context()).ErrorWithErr("get application failed", err)
		}
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

// handleGetEvents handles GET /api/applications/{number}/{year}/events
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	applicationNumber, ok := applicationNumberFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid application number", nil)
		return
	}

	app, err := s.applications.GetByNumber(r.Context(), applicationNumber)
	if err != nil {
		statusCode, code, message := mapStorageError(err)
		if statusCode == http.StatusInternalServerError {
			logging.FromContext(r.Context()).ErrorWithErr("get application failed", err)
		}
		respondError(w, statusCode, code, message, nil)
		return
	}

	events, err := s.applications.GetEvents(r.Context(), app.ID)
	if err != nil {
		logging.FromContext(r.Context()).ErrorWithErr("get events failed", err)
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"applicationNumber": applicationNumber,
		"events":            events,
	})
}
