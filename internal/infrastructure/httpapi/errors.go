package httpapi

import (
	"errors"
	"net/http"

	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// errorResponse is the JSON error body. Details carries structured context
// for errors the client acts on, like the missing evidence fields.
type errorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeServiceError maps domain errors onto HTTP statuses. Everything the
// domain classifies as locally recoverable maps below 500; only unknown
// failures surface as internal errors.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var missingErr *task.MissingEvidenceError
	var geoErr *task.GeofenceError
	var capErr *device.CapabilityError

	switch {
	case errors.Is(err, task.ErrInstanceNotFound):
		status = http.StatusNotFound

	case errors.As(err, &missingErr):
		status = http.StatusUnprocessableEntity
		resp.Details = map[string]interface{}{"missing": missingErr.Missing}

	case errors.As(err, &geoErr):
		status = http.StatusUnprocessableEntity
		resp.Details = map[string]interface{}{
			"distance_meters": geoErr.DistanceMeters,
			"max_meters":      geoErr.MaxDistanceMeters,
		}

	case errors.Is(err, task.ErrInvalidTransition):
		status = http.StatusConflict

	case errors.Is(err, task.ErrPositionUnavailable):
		status = http.StatusUnprocessableEntity

	case errors.As(err, &capErr):
		// Device capability failures are the client's to remediate.
		status = http.StatusFailedDependency
		if capErr.Remediation != "" {
			resp.Details = map[string]interface{}{"remediation": capErr.Remediation}
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal error"
	} else {
		s.logger.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.logger.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", msg)
	s.writeJSON(w, status, errorResponse{Error: msg})
}
