package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// ReservationService is what ReservationHandler needs from the service layer.
type ReservationService interface {
	Reserve(ctx context.Context, caller auth.Identity, eventID string) (*model.Reservation, error)
	Cancel(ctx context.Context, caller auth.Identity, eventID string) (*model.Cancellation, error)
	ClearEventReservations(ctx context.Context, caller auth.Identity, eventID string) (int64, error)
	IsReserved(ctx context.Context, caller auth.Identity, eventID string) (*model.ReservationStatus, error)
	AllReservations(ctx context.Context, caller auth.Identity) ([]model.Reservation, error)
	EventReservations(ctx context.Context, eventID string) ([]model.Reservation, error)
	Attendees(ctx context.Context, eventID string) (*model.Attendees, error)
	UserReservations(ctx context.Context, caller auth.Identity, userID string) (*model.UserReservations, error)
	ReservationCount(ctx context.Context, caller auth.Identity, userID string) (int, error)
	ReservedEvents(ctx context.Context, caller auth.Identity, userID string) ([]model.Event, error)
}

// ReservationHandler serves the reservation endpoints.
type ReservationHandler struct {
	svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// Reserve handles POST /events/{id}/reservation
// Books one slot for the caller; safe against concurrent callers.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reserve(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to create reservation")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Cancel handles DELETE /events/{id}/reservation
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to cancel reservation")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Status handles GET /events/{id}/reservation
func (h *ReservationHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.IsReserved(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to check reservation")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListAll handles GET /reservations
func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AllReservations(r.Context(), identity(r))
	if err != nil {
		fail(w, r, err, "failed to list reservations")
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListForEvent handles GET /events/{id}/reservations
func (h *ReservationHandler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.EventReservations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to list reservations")
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ClearForEvent handles DELETE /events/{id}/reservations
func (h *ReservationHandler) ClearForEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	removed, err := h.svc.ClearEventReservations(r.Context(), identity(r), eventID)
	if err != nil {
		fail(w, r, err, "failed to clear reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "removed": removed})
}

// Attendees handles GET /events/{id}/attendees
func (h *ReservationHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Attendees(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to list attendees")
		return
	}
	if out.Users == nil {
		out.Users = []model.User{}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListForUser handles GET /users/{id}/reservations
func (h *ReservationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.UserReservations(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to list reservations")
		return
	}
	if out.Reservations == nil {
		out.Reservations = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, out)
}

// CountForUser handles GET /users/{id}/reservations/count
func (h *ReservationHandler) CountForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	n, err := h.svc.ReservationCount(r.Context(), identity(r), userID)
	if err != nil {
		fail(w, r, err, "failed to count reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "count": n})
}

// ReservedEvents handles GET /users/{id}/reserved-events
func (h *ReservationHandler) ReservedEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ReservedEvents(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to list reserved events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
