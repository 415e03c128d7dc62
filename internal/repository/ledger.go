package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const (
	reservationKey     = "reservations_user_event_key"
	reservationUserFK  = "reservations_user_id_fkey"
	reservationEventFK = "reservations_event_id_fkey"
)

// Ledger stores reservation records, at most one per (user, event).
type Ledger struct{}

// Insert records a reservation unless the pair already has one. The unique
// constraint is the authoritative duplicate check: a conflicting row yields
// ErrDuplicateReservation whether it was committed before or races with us.
func (Ledger) Insert(ctx context.Context, q DBTX, userID, eventID string, at time.Time) (*model.Reservation, error) {
	var r model.Reservation
	err := q.QueryRow(ctx,
		`INSERT INTO reservations (id, user_id, event_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ON CONSTRAINT reservations_user_event_key DO NOTHING
		 RETURNING id, user_id, event_id, created_at`,
		uuid.New().String(), userID, eventID, at,
	).Scan(&r.ID, &r.UserID, &r.EventID, &r.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err, reservationKey):
			return nil, ErrDuplicateReservation
		case isForeignKeyViolation(err, reservationUserFK):
			return nil, ErrUserNotFound
		case isForeignKeyViolation(err, reservationEventFK):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	return &r, nil
}

// Exists reports whether the pair holds a reservation.
func (Ledger) Exists(ctx context.Context, q DBTX, userID, eventID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reservations WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reservation: %w", err)
	}
	return exists, nil
}

// Delete removes the pair's reservation. It returns ErrReservationNotFound when
// there was none.
func (Ledger) Delete(ctx context.Context, q DBTX, userID, eventID string) error {
	tag, err := q.Exec(ctx,
		`DELETE FROM reservations WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// DeleteByEvent removes every reservation of an event and returns how many
// were removed. It does not touch capacity_left.
func (Ledger) DeleteByEvent(ctx context.Context, q DBTX, eventID string) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM reservations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// released is one event whose slots were freed by DeleteByUser.
type released struct {
	eventID   string
	creatorID string
}

// DeleteByUser removes every reservation held by the user and reports the
// events they pointed at. Rows removed concurrently by someone else are not
// reported, so the caller only releases capacity it actually freed.
func (Ledger) DeleteByUser(ctx context.Context, q DBTX, userID string) ([]released, error) {
	rows, err := q.Query(ctx,
		`DELETE FROM reservations r
		 USING events e
		 WHERE r.user_id = $1 AND e.id = r.event_id
		 RETURNING r.event_id, e.creator_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("delete user reservations: %w", err)
	}
	defer rows.Close()

	var out []released
	for rows.Next() {
		var r released
		if err := rows.Scan(&r.eventID, &r.creatorID); err != nil {
			return nil, fmt.Errorf("scan released reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByUser returns a user's reservations, oldest first.
func (Ledger) ListByUser(ctx context.Context, q DBTX, userID string) ([]model.Reservation, error) {
	return listReservations(ctx, q,
		`SELECT id, user_id, event_id, created_at
		 FROM reservations
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
}

// ListAll returns every reservation, oldest first.
func (Ledger) ListAll(ctx context.Context, q DBTX) ([]model.Reservation, error) {
	return listReservations(ctx, q,
		`SELECT id, user_id, event_id, created_at
		 FROM reservations
		 ORDER BY created_at ASC, id ASC`,
	)
}

// ListByEvent returns an event's reservations, oldest first.
func (Ledger) ListByEvent(ctx context.Context, q DBTX, eventID string) ([]model.Reservation, error) {
	return listReservations(ctx, q,
		`SELECT id, user_id, event_id, created_at
		 FROM reservations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
}

// CountByUser returns how many reservations the user holds.
func (Ledger) CountByUser(ctx context.Context, q DBTX, userID string) (int, error) {
	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

// ReservedEvents returns the events the user reserved, by event date ascending.
func (Ledger) ReservedEvents(ctx context.Context, q DBTX, userID string) ([]model.Event, error) {
	rows, err := q.Query(ctx,
		`SELECT `+eventColumnsQualified+`
		 FROM events e
		 JOIN reservations r ON r.event_id = e.id
		 WHERE r.user_id = $1
		 ORDER BY e.date ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reserved events: %w", err)
	}
	return collectEvents(rows)
}

// Attendees returns the users holding a reservation for the event in
// reservation order. The event row anchors the join, so an unknown event
// yields ErrNotFound and an event without reservations an empty slice, both
// from a single snapshot.
func (Ledger) Attendees(ctx context.Context, q DBTX, eventID string) ([]model.User, error) {
	rows, err := q.Query(ctx,
		`SELECT u.id, u.name, u.email, u.is_admin, u.is_premium, u.created_at
		 FROM events e
		 LEFT JOIN reservations r ON r.event_id = e.id
		 LEFT JOIN users u ON u.id = r.user_id
		 WHERE e.id = $1
		 ORDER BY r.created_at ASC NULLS LAST`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	found := false
	users := []model.User{}
	for rows.Next() {
		found = true
		var (
			id, name, email *string
			admin, premium  *bool
			createdAt       *time.Time
		)
		if err := rows.Scan(&id, &name, &email, &admin, &premium, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		if id == nil {
			continue
		}
		users = append(users, model.User{
			ID: *id, Name: *name, Email: *email,
			IsAdmin: *admin, IsPremium: *premium, CreatedAt: *createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return users, nil
}

func listReservations(ctx context.Context, q DBTX, sql string, args ...any) ([]model.Reservation, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	regs := []model.Reservation{}
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.UserID, &r.EventID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}
