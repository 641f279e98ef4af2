package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error. Line is the source line of a quiz
// diagnostic.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newMeta(ctx context.Context) *APIMeta {
	return &APIMeta{
		RequestID: logging.GetRequestID(ctx),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data, Meta: newMeta(r.Context())})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    newMeta(r.Context()),
	})
}

// diagnostic maps a conversion error to a status and an API error.
// Errors that are not about the submitted document are reported without
// their detail.
func diagnostic(err error) (int, *APIError) {
	e := &APIError{Message: err.Error(), Line: errors.Line(err)}
	switch {
	case errors.Is(err, errors.ErrSyntax):
		e.Code = "SYNTAX_ERROR"
		return http.StatusUnprocessableEntity, e
	case errors.Is(err, errors.ErrSemantic):
		e.Code = "SEMANTIC_ERROR"
		return http.StatusUnprocessableEntity, e
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, &APIError{Code: "TIMEOUT", Message: "Conversion timed out"}
	case errors.Is(err, errors.ErrCollaborator):
		e.Code = "RENDER_ERROR"
		return http.StatusUnprocessableEntity, e
	case errors.Is(err, errors.ErrInvalidInput):
		e.Code = "INVALID_INPUT"
		return http.StatusUnprocessableEntity, e
	case errors.Is(err, errors.ErrUnsupported):
		e.Code = "UNSUPPORTED"
		return http.StatusUnprocessableEntity, e
	}
	return http.StatusInternalServerError, &APIError{Code: "INTERNAL_ERROR", Message: "Internal server error"}
}

func respondDiagnostic(w http.ResponseWriter, r *http.Request, err error) {
	status, e := diagnostic(err)
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "conversion failed", "error", err)
	} else {
		logging.Rejected(r.Context(), e.Code, e.Line)
	}
	writeJSON(w, status, APIResponse{Success: false, Error: e, Meta: newMeta(r.Context())})
}
