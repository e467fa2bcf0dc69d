package api

import (
	"net/http"

	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
)

// handleCreateSubscription handles POST /api/subscriptions
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicationNumber string `json:"applicationNumber"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if _, _, err := models.ParseApplicationID(req.ApplicationNumber); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid application number", nil)
		return
	}

	sub, err := s.subscriptions.Create(r.Context(), req.ApplicationNumber)
	if err != nil {
		statusCode, code, message := mapStorageError(err)
		if statusCode == http.StatusInternalServerError {
			logging.FromContext(r.Context()).ErrorWithErr("create subscription failed", err)
		}
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

// handleDeactivateSubscription handles DELETE /api/subscriptions/{number}/{year}
func (s *Server) handleDeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	applicationNumber, ok := applicationNumberFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid application number", nil)
		return
	}

	if err := s.subscriptions.Deactivate(r.Context(), applicationNumber); err != nil {
		statusCode, code, message := mapStorageError(err)
		if statusCode == http.StatusInternalServerError {
			logging.FromContext(r.Context()).ErrorWithErr("deactivate subscription failed", err)
		}
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"applicationNumber": applicationNumber,
		"status":            "inactive",
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"running": false,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running": true,
		"run":     s.stats.Snapshot(),
	})
}
