package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/cache"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// EventService orchestrates event-related business operations.
type EventService struct {
	events    EventStore
	cache     cache.EventCache
	publisher notify.Publisher
	now       func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, c cache.EventCache, p notify.Publisher) *EventService {
	return &EventService{events: events, cache: c, publisher: p, now: time.Now}
}

// CreateEvent validates the request and stores a new event owned by the caller.
func (s *EventService) CreateEvent(ctx context.Context, caller auth.Identity, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	event, err := s.events.Create(ctx, caller.UserID, req)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"event_id": event.ID, "creator_id": caller.UserID, "capacity": event.Capacity,
	}).Info("event created")
	return event, nil
}

// ListEvents returns events ordered by date. month ("YYYY-MM") and query are
// optional filters.
func (s *EventService) ListEvents(ctx context.Context, month, query string) ([]model.Event, error) {
	from, to, err := ParseMonth(strings.TrimSpace(month))
	if err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx, model.EventFilter{From: from, To: to, Query: strings.TrimSpace(query)})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID, served from the cache when possible.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	e, version, ok := s.cache.Get(ctx, id)
	if ok {
		return e, nil
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	s.cache.Set(ctx, event, version)
	return event, nil
}

// UpdateEvent applies an edit by the event's creator or an admin.
func (s *EventService) UpdateEvent(ctx context.Context, caller auth.Identity, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, id); err != nil {
		return nil, err
	}

	event, err := s.events.Update(ctx, id, req)
	s.cache.Invalidate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrCapacityBelowReserved) ||
			errors.Is(err, repository.ErrTransactionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"event_id": id, "by": caller.UserID, "capacity": event.Capacity, "capacity_left": event.CapacityLeft,
	}).Info("event updated")
	return event, nil
}

// DeleteEvent removes an event; its reservations go with it.
func (s *EventService) DeleteEvent(ctx context.Context, caller auth.Identity, id string) error {
	if err := s.authorize(ctx, caller, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	s.publisher.Publish(ctx, notify.Activity{Type: notify.EventDeleted, EventID: id, UserID: caller.UserID, At: s.now().UTC()})
	logrus.WithFields(logrus.Fields{"event_id": id, "by": caller.UserID}).Info("event deleted")
	return nil
}

// authorize loads the event uncached and checks the caller may manage it.
func (s *EventService) authorize(ctx context.Context, caller auth.Identity, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("get event: %w", err)
	}
	if !canManage(caller, event.CreatorID) {
		return ErrForbidden
	}
	return nil
}
