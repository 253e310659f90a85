package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
	"telecloud/internal/resolver"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusServiceUnavailable, "rate_limited"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// upstreamMessages replace the error text for failures of the remote store,
// whose causes may carry provider URLs.
var upstreamMessages = map[int]string{
	http.StatusBadGateway:         "remote storage is unavailable, try again later",
	http.StatusServiceUnavailable: "remote storage is busy, try again later",
}

// WriteError answers with the status matching err. Internal and upstream
// errors are logged and their text is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		log.Error().Err(resolver.Redact(err)).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	case upstreamMessages[status] != "":
		log.Warn().Err(resolver.Redact(err)).Str("path", r.URL.Path).Int("status", status).Msg("upstream failure")
		message = upstreamMessages[status]
	default:
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, errorResponse{Error: code, Message: message, Code: status})
}

// StreamError handles a failed byte relay. Nothing is written when the
// client has already gone away.
func StreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("client went away")
		return
	}
	if errors.Is(err, domain.ErrRangeNotSatisfiable) {
		w.Header().Set("Content-Range", "bytes */*")
	}
	WriteError(w, r, err)
}

func badRequest(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return domain.ErrValidation }

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

// UUIDParam parses a file id path parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}

func kindQuery(r *http.Request) (domain.Kind, error) {
	kind := domain.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		return "", badRequest("unknown kind " + string(kind))
	}
	return kind, nil
}
