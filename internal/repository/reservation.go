package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// ReservationRepository is the transactional reservation core. Each mutating
// method is one all-or-nothing unit of work over the event capacity counter
// and the reservation ledger, so that for every event
//
//	capacity_left = capacity - count(reservations)
//
// holds after every commit.
//
// Concurrency: the event row is locked with SELECT ... FOR UPDATE before any
// capacity check, so two transactions can never both observe the last free
// slot. Duplicate pairs are rejected by the (user_id, event_id) unique
// constraint; the in-transaction existence check only lets us fail early.
type ReservationRepository struct {
	db       DB
	tx       *Transactor
	capacity CapacityStore
	ledger   Ledger
	now      func() time.Time
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db DB, tx *Transactor) *ReservationRepository {
	return &ReservationRepository{
		db:  db,
		tx:  tx,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used for timestamps and the past-event
// check.
func (r *ReservationRepository) WithClock(now func() time.Time) *ReservationRepository {
	r.now = now
	return r
}

// Create reserves one slot of eventID for userID.
func (r *ReservationRepository) Create(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	var res *model.Reservation
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		c, err := r.capacity.Lock(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if c.IsFull() {
			return ErrCapacityExhausted
		}

		exists, err := r.ledger.Exists(ctx, tx, userID, eventID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateReservation
		}

		res, err = r.ledger.Insert(ctx, tx, userID, eventID, r.now())
		if err != nil {
			return err
		}
		_, err = r.capacity.DecrementIfPositive(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel removes userID's reservation for eventID and releases its slot.
// Reservations for events whose date has passed cannot be cancelled.
func (r *ReservationRepository) Cancel(ctx context.Context, userID, eventID string) (*model.Cancellation, error) {
	var out *model.Cancellation
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		c, err := r.capacity.Lock(ctx, tx, eventID)
		if err != nil {
			return err
		}

		exists, err := r.ledger.Exists(ctx, tx, userID, eventID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrReservationNotFound
		}
		if c.IsPast(r.now()) {
			return ErrPastEvent
		}

		if err := r.ledger.Delete(ctx, tx, userID, eventID); err != nil {
			return err
		}
		left, err := r.capacity.IncrementCapped(ctx, tx, eventID, 1)
		if err != nil {
			return err
		}
		out = &model.Cancellation{EventID: eventID, CapacityLeft: left}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearEvent deletes every reservation of an event that stays in place and
// resets capacity_left to full capacity. It returns the number removed.
func (r *ReservationRepository) ClearEvent(ctx context.Context, eventID string) (int64, error) {
	var removed int64
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if _, err := r.capacity.Lock(ctx, tx, eventID); err != nil {
			return err
		}
		var err error
		if removed, err = r.ledger.DeleteByEvent(ctx, tx, eventID); err != nil {
			return err
		}
		return r.capacity.ResetToFull(ctx, tx, eventID)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// AccountDeletion reports what DeleteAccount removed or released.
type AccountDeletion struct {
	UserID         string
	DeletedEvents  []string
	ReleasedEvents []string
}

// DeleteAccount removes a user together with their reservations and the events
// they created, in one transaction. Events created by others get one slot back
// per removed reservation.
//
// Locking the user row first blocks concurrent reservation inserts for this
// user (their foreign key check needs a share lock on it). Event rows are
// updated in id order; a deadlock with a concurrent cancellation is retried by
// the Transactor.
func (r *ReservationRepository) DeleteAccount(ctx context.Context, userID string) (*AccountDeletion, error) {
	var out *AccountDeletion
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user row: %w", err)
		}

		freed, err := r.ledger.DeleteByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, f := range freed {
			if f.creatorID != userID {
				counts[f.eventID]++
			}
		}
		releasedIDs := make([]string, 0, len(counts))
		for eventID := range counts {
			releasedIDs = append(releasedIDs, eventID)
		}
		slices.Sort(releasedIDs)
		for _, eventID := range releasedIDs {
			if _, err := r.capacity.IncrementCapped(ctx, tx, eventID, counts[eventID]); err != nil {
				return err
			}
		}

		deleted, err := deleteCreatedEvents(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		out = &AccountDeletion{UserID: userID, DeletedEvents: deleted, ReleasedEvents: releasedIDs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func deleteCreatedEvents(ctx context.Context, q DBTX, creatorID string) ([]string, error) {
	rows, err := q.Query(ctx, `DELETE FROM events WHERE creator_id = $1 RETURNING id`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("delete user events: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted event: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// ListByUser returns all reservations held by a user.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return r.ledger.ListByUser(ctx, r.db, userID)
}

// ListAll returns every reservation in the system.
func (r *ReservationRepository) ListAll(ctx context.Context) ([]model.Reservation, error) {
	return r.ledger.ListAll(ctx, r.db)
}

// ListByEvent returns all reservations for an event.
func (r *ReservationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	return r.ledger.ListByEvent(ctx, r.db, eventID)
}

// CountByUser returns how many reservations a user holds.
func (r *ReservationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	return r.ledger.CountByUser(ctx, r.db, userID)
}

// Exists reports whether the user reserved the event.
func (r *ReservationRepository) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	return r.ledger.Exists(ctx, r.db, userID, eventID)
}

// ReservedEvents returns the events a user reserved, soonest first.
func (r *ReservationRepository) ReservedEvents(ctx context.Context, userID string) ([]model.Event, error) {
	return r.ledger.ReservedEvents(ctx, r.db, userID)
}

// Attendees returns the users holding a reservation for an event. Unknown
// events yield ErrNotFound; events without reservations an empty list.
func (r *ReservationRepository) Attendees(ctx context.Context, eventID string) (*model.Attendees, error) {
	users, err := r.ledger.Attendees(ctx, r.db, eventID)
	if err != nil {
		return nil, err
	}
	return &model.Attendees{EventID: eventID, Count: len(users), Users: users}, nil
}
