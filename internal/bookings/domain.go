package bookings

import (
	"errors"
	"time"
)

var (
	// ErrOverlap is returned when a booking collides with an existing one.
	ErrOverlap = errors.New("bookings: dates overlap an existing booking")
	// ErrInvalidRange is returned when the end date is not after the start.
	ErrInvalidRange = errors.New("bookings: end date must be after start date")
	// ErrNotOwner is returned when a user edits a booking they did not make
	// without the delete-any capability.
	ErrNotOwner = errors.New("bookings: not your booking")
)

// Booking is one calendar reservation of a house.
type Booking struct {
	ID        string    `json:"id"`
	HouseID   string    `json:"house_id"`
	UserID    string    `json:"user_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Guests    int       `json:"guests"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
