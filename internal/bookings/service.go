package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cohaus/cohaus/internal/perm"
)

// RepositoryPort is the persistence contract the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	ListByHouse(ctx context.Context, houseID string, from, to time.Time) ([]Booking, error)
	HasOverlap(ctx context.Context, houseID string, start, end time.Time, excludeID string) (bool, error)
	Update(ctx context.Context, booking *Booking) error
	Delete(ctx context.Context, id string) error
}

// Service implements the booking calendar rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields for a new booking.
type CreateInput struct {
	StartDate time.Time
	EndDate   time.Time
	Guests    int
	Notes     string
}

// Create books the house for the caller. The capability gate runs in the
// handler; here only the calendar rules apply.
func (s *Service) Create(ctx context.Context, userID, houseID string, in CreateInput) (*Booking, error) {
	if !in.EndDate.After(in.StartDate) {
		return nil, ErrInvalidRange
	}
	overlap, err := s.repo.HasOverlap(ctx, houseID, in.StartDate, in.EndDate, "")
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		return nil, ErrOverlap
	}

	booking := &Booking{
		ID:        uuid.NewString(),
		HouseID:   houseID,
		UserID:    userID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Guests:    in.Guests,
		Notes:     in.Notes,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return booking, nil
}

// List returns the house calendar for the given window.
func (s *Service) List(ctx context.Context, houseID string, from, to time.Time) ([]Booking, error) {
	return s.repo.ListByHouse(ctx, houseID, from, to)
}

// Get loads one booking.
func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateInput carries the editable booking fields. Nil pointers leave the
// current value in place.
type UpdateInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Guests    *int
	Notes     *string
}

// Update edits a booking. Members may edit their own bookings; editing
// someone else's requires the delete-any capability, same as removal.
func (s *Service) Update(ctx context.Context, userID string, perms perm.PermissionSet, bookingID string, in UpdateInput) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID && !perms.CanDeleteAnyBooking {
		return nil, ErrNotOwner
	}

	if in.StartDate != nil {
		booking.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		booking.EndDate = *in.EndDate
	}
	if in.Guests != nil {
		booking.Guests = *in.Guests
	}
	if in.Notes != nil {
		booking.Notes = *in.Notes
	}

	if !booking.EndDate.After(booking.StartDate) {
		return nil, ErrInvalidRange
	}
	overlap, err := s.repo.HasOverlap(ctx, booking.HouseID, booking.StartDate, booking.EndDate, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		return nil, ErrOverlap
	}

	if err := s.repo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return booking, nil
}

// Delete removes a booking. Booking owners may cancel their own; anyone
// else needs the delete-any capability.
func (s *Service) Delete(ctx context.Context, userID string, perms perm.PermissionSet, bookingID string) error {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID && !perms.CanDeleteAnyBooking {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, bookingID)
}
