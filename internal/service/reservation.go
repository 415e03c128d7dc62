package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/cache"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// ReservationService validates reservation requests and delegates the
// concurrency-safe work to the reservation core. Every successful mutation
// drops the event from the cache and is published after commit.
type ReservationService struct {
	reservations ReservationStore
	events       EventStore
	cache        cache.EventCache
	publisher    notify.Publisher
	now          func() time.Time
}

func NewReservationService(reservations ReservationStore, events EventStore, c cache.EventCache, p notify.Publisher) *ReservationService {
	return &ReservationService{reservations: reservations, events: events, cache: c, publisher: p, now: time.Now}
}

// domainErr keeps the reservation core's sentinels intact and wraps anything
// else with op.
func domainErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrCapacityExhausted),
		errors.Is(err, repository.ErrDuplicateReservation),
		errors.Is(err, repository.ErrPastEvent),
		errors.Is(err, repository.ErrTransactionConflict):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Reserve books one slot of eventID for the caller.
func (s *ReservationService) Reserve(ctx context.Context, caller auth.Identity, eventID string) (*model.Reservation, error) {
	if !validID(eventID) {
		return nil, repository.ErrNotFound
	}
	res, err := s.reservations.Create(ctx, caller.UserID, eventID)
	if err != nil {
		return nil, domainErr("create reservation", err)
	}
	s.cache.Invalidate(ctx, eventID)
	s.publisher.Publish(ctx, notify.Activity{
		Type: notify.ReservationCreated, EventID: eventID, UserID: caller.UserID, At: res.CreatedAt,
	})
	logrus.WithFields(logrus.Fields{"event_id": eventID, "user_id": caller.UserID}).Info("reservation created")
	return res, nil
}

// Cancel releases the caller's reservation for eventID.
func (s *ReservationService) Cancel(ctx context.Context, caller auth.Identity, eventID string) (*model.Cancellation, error) {
	if !validID(eventID) {
		return nil, repository.ErrNotFound
	}
	out, err := s.reservations.Cancel(ctx, caller.UserID, eventID)
	if err != nil {
		return nil, domainErr("cancel reservation", err)
	}
	s.cache.Invalidate(ctx, eventID)
	left := out.CapacityLeft
	s.publisher.Publish(ctx, notify.Activity{
		Type: notify.ReservationCancelled, EventID: eventID, UserID: caller.UserID,
		CapacityLeft: &left, At: s.now().UTC(),
	})
	logrus.WithFields(logrus.Fields{
		"event_id": eventID, "user_id": caller.UserID, "capacity_left": left,
	}).Info("reservation cancelled")
	return out, nil
}

// ClearEventReservations removes every reservation of an event and restores
// its full capacity. Only the creator or an admin may do this.
func (s *ReservationService) ClearEventReservations(ctx context.Context, caller auth.Identity, eventID string) (int64, error) {
	if !validID(eventID) {
		return 0, repository.ErrNotFound
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, domainErr("get event", err)
	}
	if !canManage(caller, event.CreatorID) {
		return 0, ErrForbidden
	}

	removed, err := s.reservations.ClearEvent(ctx, eventID)
	if err != nil {
		return 0, domainErr("clear reservations", err)
	}
	s.cache.Invalidate(ctx, eventID)
	full := event.Capacity
	s.publisher.Publish(ctx, notify.Activity{
		Type: notify.ReservationsCleared, EventID: eventID, UserID: caller.UserID,
		CapacityLeft: &full, At: s.now().UTC(),
	})
	logrus.WithFields(logrus.Fields{"event_id": eventID, "by": caller.UserID, "removed": removed}).Info("reservations cleared")
	return removed, nil
}

// IsReserved reports whether the caller holds a reservation for eventID.
func (s *ReservationService) IsReserved(ctx context.Context, caller auth.Identity, eventID string) (*model.ReservationStatus, error) {
	if !validID(eventID) {
		return nil, repository.ErrNotFound
	}
	ok, err := s.reservations.Exists(ctx, caller.UserID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check reservation: %w", err)
	}
	return &model.ReservationStatus{EventID: eventID, UserID: caller.UserID, Reserved: ok}, nil
}

// EventReservations lists the reservations held against an event.
func (s *ReservationService) EventReservations(ctx context.Context, eventID string) ([]model.Reservation, error) {
	if !validID(eventID) {
		return nil, repository.ErrNotFound
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, domainErr("get event", err)
	}
	list, err := s.reservations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event reservations: %w", err)
	}
	return list, nil
}

// AllReservations lists every reservation. Admin only.
func (s *ReservationService) AllReservations(ctx context.Context, caller auth.Identity) ([]model.Reservation, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	list, err := s.reservations.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// Attendees returns the users holding a reservation for an event.
func (s *ReservationService) Attendees(ctx context.Context, eventID string) (*model.Attendees, error) {
	if !validID(eventID) {
		return nil, repository.ErrNotFound
	}
	out, err := s.reservations.Attendees(ctx, eventID)
	if err != nil {
		return nil, domainErr("list attendees", err)
	}
	return out, nil
}

// UserReservations lists a user's reservations. Callers see their own; admins
// see anyone's.
func (s *ReservationService) UserReservations(ctx context.Context, caller auth.Identity, userID string) (*model.UserReservations, error) {
	if err := checkSelf(caller, userID); err != nil {
		return nil, err
	}
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user reservations: %w", err)
	}
	return &model.UserReservations{UserID: userID, Count: len(list), Reservations: list}, nil
}

// ReservationCount returns how many reservations a user holds.
func (s *ReservationService) ReservationCount(ctx context.Context, caller auth.Identity, userID string) (int, error) {
	if err := checkSelf(caller, userID); err != nil {
		return 0, err
	}
	n, err := s.reservations.CountByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

// ReservedEvents returns the events a user reserved, soonest first.
func (s *ReservationService) ReservedEvents(ctx context.Context, caller auth.Identity, userID string) ([]model.Event, error) {
	if err := checkSelf(caller, userID); err != nil {
		return nil, err
	}
	events, err := s.reservations.ReservedEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reserved events: %w", err)
	}
	return events, nil
}

// checkSelf allows a caller to act on their own user id; admins on any.
func checkSelf(caller auth.Identity, userID string) error {
	if !canManage(caller, userID) {
		return ErrForbidden
	}
	if !validID(userID) {
		return repository.ErrUserNotFound
	}
	return nil
}
