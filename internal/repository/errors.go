package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrUserNotFound is returned when a requested user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrReservationNotFound is returned when the (user, event) pair holds no reservation.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrCapacityExhausted is returned when an event has no remaining capacity.
var ErrCapacityExhausted = errors.New("event is fully booked")

// ErrDuplicateReservation is returned when the user already reserved the event.
var ErrDuplicateReservation = errors.New("user already holds a reservation for this event")

// ErrPastEvent is returned when cancelling a reservation for an event that
// already took place.
var ErrPastEvent = errors.New("event date is in the past")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrCapacityBelowReserved is returned when an edit would shrink an event's
// capacity below its number of reservations.
var ErrCapacityBelowReserved = errors.New("capacity cannot be lower than the number of reservations")

// ErrTransactionConflict is returned when a transaction kept failing to
// serialize after all retries.
var ErrTransactionConflict = errors.New("transaction conflict, try again")

// PostgreSQL error codes the repository reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeForeignKeyViolation {
		return false
	}
	return pgErr.ConstraintName == constraint
}

func isConflict(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}
