// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
	"github.com/Shivanand-hulikatti/event-reservations/internal/service"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps service and repository errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrCapacityExhausted),
		errors.Is(err, repository.ErrDuplicateReservation),
		errors.Is(err, repository.ErrPastEvent),
		errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, repository.ErrCapacityBelowReserved):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrTransactionConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Unexpected errors are logged and
// hidden behind a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		requestLogger(r).WithError(err).Error(fallback)
		writeError(w, status, fallback)
		return
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, rootMessage(err))
}

// rootMessage returns the message of the sentinel or validation error inside
// err, dropping wrapping context meant for logs.
func rootMessage(err error) string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, sentinel := range []error{
		repository.ErrNotFound, repository.ErrUserNotFound, repository.ErrReservationNotFound,
		repository.ErrCapacityExhausted, repository.ErrDuplicateReservation, repository.ErrPastEvent,
		repository.ErrEmailTaken, repository.ErrCapacityBelowReserved, repository.ErrTransactionConflict,
		service.ErrInvalidCredentials, service.ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func badBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

func requestLogger(r *http.Request) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
