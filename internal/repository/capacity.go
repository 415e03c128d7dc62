package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// CapacityStore reads and mutates an event's capacity_left counter. Every
// method runs on the caller's transaction; nothing outside the reservation
// core and event administration calls it.
type CapacityStore struct{}

// Lock acquires an exclusive row lock on the event and returns its capacity
// view. Concurrent Lock calls on the same event block until the holder
// commits or rolls back, which serialises check-then-decrement sequences.
func (CapacityStore) Lock(ctx context.Context, q DBTX, eventID string) (*model.Capacity, error) {
	var c model.Capacity
	err := q.QueryRow(ctx,
		`SELECT id, creator_id, date, capacity, capacity_left
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&c.EventID, &c.CreatorID, &c.Date, &c.Capacity, &c.CapacityLeft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return &c, nil
}

// DecrementIfPositive takes one slot and returns the remaining capacity. The
// guard in the WHERE clause makes the decrement safe even without a prior Lock.
func (CapacityStore) DecrementIfPositive(ctx context.Context, q DBTX, eventID string) (int, error) {
	var left int
	err := q.QueryRow(ctx,
		`UPDATE events
		 SET capacity_left = capacity_left - 1
		 WHERE id = $1 AND capacity_left > 0
		 RETURNING capacity_left`,
		eventID,
	).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCapacityExhausted
		}
		return 0, fmt.Errorf("decrement capacity_left: %w", err)
	}
	return left, nil
}

// IncrementCapped releases n slots, never exceeding the event's capacity.
func (CapacityStore) IncrementCapped(ctx context.Context, q DBTX, eventID string, n int) (int, error) {
	var left int
	err := q.QueryRow(ctx,
		`UPDATE events
		 SET capacity_left = LEAST(capacity, capacity_left + $2)
		 WHERE id = $1
		 RETURNING capacity_left`,
		eventID, n,
	).Scan(&left)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment capacity_left: %w", err)
	}
	return left, nil
}

// ResetToFull sets capacity_left back to capacity.
func (CapacityStore) ResetToFull(ctx context.Context, q DBTX, eventID string) error {
	tag, err := q.Exec(ctx, `UPDATE events SET capacity_left = capacity WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("reset capacity_left: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Resize changes the total capacity of a locked event and recomputes
// capacity_left from the reservations it already holds.
func (CapacityStore) Resize(ctx context.Context, q DBTX, c *model.Capacity, newCapacity int) error {
	reserved := c.Reserved()
	if newCapacity < reserved {
		return ErrCapacityBelowReserved
	}
	_, err := q.Exec(ctx,
		`UPDATE events SET capacity = $2, capacity_left = $3 WHERE id = $1`,
		c.EventID, newCapacity, newCapacity-reserved,
	)
	if err != nil {
		return fmt.Errorf("resize event: %w", err)
	}
	c.Capacity = newCapacity
	c.CapacityLeft = newCapacity - reserved
	return nil
}
