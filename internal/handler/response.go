package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

// ErrorResponse is the single error envelope of the API
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a lifecycle operation
type MessageResponse struct {
	Message     string        `json:"message"`
	ComplaintID string        `json:"complaintId,omitempty"`
	Status      domain.Status `json:"status,omitempty"`
}

// CreatedResponse carries the id of a new complaint
type CreatedResponse struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// respondError maps a lifecycle error onto a status code. Store failures are
// logged and reported generically.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrComplaintNotFound):
		writeError(w, http.StatusNotFound, "Complaint not found")
	case errors.Is(err, domain.ErrSubjectNotFound):
		writeError(w, http.StatusNotFound, "No user found with that email")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case tenant.IsResolutionError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context(), log).Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into dst. Strict decoding rejects unknown
// fields.
func decodeJSON(r *http.Request, dst interface{}, strict bool) error {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("body", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Invalid("body", "request body too large")
		}
		return domain.Invalid("body", fmt.Sprintf("invalid request body: %s", err.Error()))
	}
	return nil
}
