package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/cashbook/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }
func unauthorized(w http.ResponseWriter) {
	writeErr(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
}
func conflict(w http.ResponseWriter, msg, code string) { writeErr(w, http.StatusConflict, msg, code) }
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// validationCode maps domain validation errors to an API code. ok is false
// for errors that are not validation failures.
func validationCode(err error) (code string, ok bool) {
	switch {
	case errors.Is(err, errs.ErrInvalidAmount), errors.Is(err, errs.ErrInvalidBalance):
		return "invalid_amount", true
	case errors.Is(err, errs.ErrEmptyCategory):
		return "empty_category", true
	case errors.Is(err, errs.ErrDuplicateCategory):
		return "duplicate_category", true
	case errors.Is(err, errs.ErrSameCategoryName):
		return "same_category_name", true
	case errors.Is(err, errs.ErrInvalidKind):
		return "invalid_kind", true
	case errors.Is(err, errs.ErrInvalidDate):
		return "invalid_date", true
	case errors.Is(err, errs.ErrInvalidMonth):
		return "invalid_month", true
	case errors.Is(err, errs.ErrInvalidCurrency):
		return "invalid_currency", true
	}
	return "", false
}

// writeServiceErr translates a service error into a response. Unknown errors
// are logged and reported as "could not <action>".
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error, action string) {
	if code, ok := validationCode(err); ok {
		unprocessable(w, err.Error(), code)
		return
	}
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		unauthorized(w)
	case errors.Is(err, errs.ErrEntryNotFound):
		writeErr(w, http.StatusNotFound, "entry not found", "entry_not_found")
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "not_found")
	case errors.Is(err, errs.ErrConflict):
		conflict(w, "concurrent update, retry", "conflict")
	default:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "action", action, "err", err)
		writeErr(w, http.StatusInternalServerError, "could not "+action, "internal")
	}
}
