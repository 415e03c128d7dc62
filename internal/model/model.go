// Package model defines the core domain types for the event reservation system.
package model

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event represents a reservable event created by a user.
type Event struct {
	ID           string    `json:"id"`
	CreatorID    string    `json:"creator_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	Capacity     int       `json:"capacity"`
	CapacityLeft int       `json:"capacity_left"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reservation is one user's claim on one slot of one event.
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Capacity is the locked view of an event the reservation core works with.
type Capacity struct {
	EventID      string
	CreatorID    string
	Date         time.Time
	Capacity     int
	CapacityLeft int
}

// Reserved returns the number of reservations held against the event.
func (c *Capacity) Reserved() int {
	return c.Capacity - c.CapacityLeft
}

// IsFull returns true when no slots remain.
func (c *Capacity) IsFull() bool {
	return c.CapacityLeft <= 0
}

// IsPast reports whether the event date lies before now.
func (c *Capacity) IsPast(now time.Time) bool {
	return c.Date.Before(now)
}

// Cancellation acknowledges a cancelled reservation.
type Cancellation struct {
	EventID      string `json:"event_id"`
	CapacityLeft int    `json:"capacity_left"`
}

// Attendees lists the users holding a reservation for an event. An event
// without reservations yields Count 0 and an empty, non-nil Users slice.
type Attendees struct {
	EventID string `json:"event_id"`
	Count   int    `json:"count"`
	Users   []User `json:"attendees"`
}

// EventFilter narrows ListEvents. Zero values mean no filtering.
type EventFilter struct {
	// Month restricts results to events whose date falls in [From, To).
	From  time.Time
	To    time.Time
	Query string
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description"`
	Location    string    `json:"location" validate:"max=100"`
	Date        time.Time `json:"date" validate:"required"`
	Capacity    int       `json:"capacity" validate:"gte=0,lte=100000"`
}

// UpdateEventRequest carries an administrative edit. Nil fields are left
// untouched.
type UpdateEventRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description"`
	Location    *string    `json:"location" validate:"omitempty,max=100"`
	Date        *time.Time `json:"date"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gte=0,lte=100000"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the payload for obtaining a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// UserReservations lists a user's reservations with their count.
type UserReservations struct {
	UserID       string        `json:"user_id"`
	Count        int           `json:"count"`
	Reservations []Reservation `json:"reservations"`
}

// ReservationStatus answers whether a user holds a reservation for an event.
type ReservationStatus struct {
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	Reserved bool   `json:"reserved"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
