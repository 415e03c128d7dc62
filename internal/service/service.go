// Package service implements business logic, validation, authorization and
// orchestration between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// ErrForbidden is returned when the caller may not act on a resource.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidCredentials is returned by Login for an unknown email and for a
// wrong password alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// EventStore is the event persistence the services need.
type EventStore interface {
	Create(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]model.Event, error)
	Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// ReservationStore is the transactional reservation core.
type ReservationStore interface {
	Create(ctx context.Context, userID, eventID string) (*model.Reservation, error)
	Cancel(ctx context.Context, userID, eventID string) (*model.Cancellation, error)
	ClearEvent(ctx context.Context, eventID string) (int64, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	ReservedEvents(ctx context.Context, userID string) ([]model.Event, error)
	Attendees(ctx context.Context, eventID string) (*model.Attendees, error)
}

// AccountStore removes a user and everything hanging off it.
type AccountStore interface {
	DeleteAccount(ctx context.Context, userID string) (*repository.AccountDeletion, error)
}

// UserStore is the user persistence the services need.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct converts the first validator failure into a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "email":
		return invalid(fe.Field(), "must be a valid email address")
	case "min":
		return invalid(fe.Field(), "must be at least "+fe.Param()+" characters")
	case "max":
		return invalid(fe.Field(), "must be at most "+fe.Param()+" characters")
	case "gte":
		return invalid(fe.Field(), "must be at least "+fe.Param())
	case "lte":
		return invalid(fe.Field(), "must be at most "+fe.Param())
	default:
		return invalid(fe.Field(), "is invalid")
	}
}

// validID reports whether id is a well-formed UUID. Malformed ids can never
// match a row, so callers map them to the relevant not-found error instead of
// sending them to PostgreSQL.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// canManage reports whether caller may administer something owned by ownerID.
func canManage(caller auth.Identity, ownerID string) bool {
	return caller.Admin || caller.UserID == ownerID
}

// ParseMonth turns "YYYY-MM" into the half-open UTC range [first day, first
// day of next month). An empty string means no month filter.
func ParseMonth(month string) (from, to time.Time, err error) {
	if month == "" {
		return time.Time{}, time.Time{}, nil
	}
	from, err = time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("month", "must have the form YYYY-MM")
	}
	return from, from.AddDate(0, 1, 0), nil
}
