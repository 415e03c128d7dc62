package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// EventService is what EventHandler needs from the service layer.
type EventService interface {
	CreateEvent(ctx context.Context, caller auth.Identity, req model.CreateEventRequest) (*model.Event, error)
	ListEvents(ctx context.Context, month, query string) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, caller auth.Identity, id string, req model.UpdateEventRequest) (*model.Event, error)
	DeleteEvent(ctx context.Context, caller auth.Identity, id string) error
}

// EventHandler serves the event endpoints.
type EventHandler struct {
	svc EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), identity(r), req)
	if err != nil {
		fail(w, r, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?month=YYYY-MM&q=text
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.svc.ListEvents(r.Context(), q.Get("month"), q.Get("q"))
	if err != nil {
		fail(w, r, err, "failed to list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, err, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
