package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
)

type memRepo struct {
	bookings map[string]*Booking
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: map[string]*Booking{}}
}

func (m *memRepo) Create(_ context.Context, booking *Booking) error {
	copied := *booking
	m.bookings[booking.ID] = &copied
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Booking, error) {
	booking, ok := m.bookings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *booking
	return &copied, nil
}

func (m *memRepo) ListByHouse(_ context.Context, houseID string, from, to time.Time) ([]Booking, error) {
	var result []Booking
	for _, booking := range m.bookings {
		if booking.HouseID != houseID {
			continue
		}
		if !from.IsZero() && !booking.EndDate.After(from) {
			continue
		}
		if !to.IsZero() && !booking.StartDate.Before(to) {
			continue
		}
		result = append(result, *booking)
	}
	return result, nil
}

func (m *memRepo) HasOverlap(_ context.Context, houseID string, start, end time.Time, excludeID string) (bool, error) {
	for _, booking := range m.bookings {
		if booking.HouseID != houseID || booking.ID == excludeID {
			continue
		}
		if booking.StartDate.Before(end) && booking.EndDate.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Update(_ context.Context, booking *Booking) error {
	if _, ok := m.bookings[booking.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *booking
	m.bookings[booking.ID] = &copied
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.bookings[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func day(d int) time.Time {
	return time.Date(2026, time.July, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateRejectsInvalidRange(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(5), EndDate: day(5)})
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(5), EndDate: day(3)})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(5)})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "u2", "h1", CreateInput{StartDate: day(4), EndDate: day(8)})
	require.ErrorIs(t, err, ErrOverlap)

	// Back to back stays allowed, the range is half open.
	_, err = svc.Create(context.Background(), "u2", "h1", CreateInput{StartDate: day(5), EndDate: day(8)})
	require.NoError(t, err)

	// Same dates in another house do not collide.
	_, err = svc.Create(context.Background(), "u2", "h2", CreateInput{StartDate: day(4), EndDate: day(8)})
	require.NoError(t, err)
}

func TestUpdateOwnBooking(t *testing.T) {
	svc := NewService(newMemRepo())

	booking, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(5), Guests: 2})
	require.NoError(t, err)

	guests := 4
	updated, err := svc.Update(context.Background(), "u1", perm.PermissionSet{}, booking.ID, UpdateInput{Guests: &guests})
	require.NoError(t, err)
	require.Equal(t, 4, updated.Guests)
	require.Equal(t, day(1), updated.StartDate)
}

func TestUpdateForeignBookingNeedsDeleteAny(t *testing.T) {
	svc := NewService(newMemRepo())

	booking, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(5)})
	require.NoError(t, err)

	guests := 3
	_, err = svc.Update(context.Background(), "u2", perm.PermissionSet{CanEditOwnBooking: true}, booking.ID, UpdateInput{Guests: &guests})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.Update(context.Background(), "u2", perm.PermissionSet{CanDeleteAnyBooking: true}, booking.ID, UpdateInput{Guests: &guests})
	require.NoError(t, err)
}

func TestUpdateRevalidatesCalendar(t *testing.T) {
	svc := NewService(newMemRepo())

	first, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(5)})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)

	// Moving the first booking onto the second must fail.
	start, end := day(9), day(11)
	_, err = svc.Update(context.Background(), "u1", perm.PermissionSet{}, first.ID, UpdateInput{StartDate: &start, EndDate: &end})
	require.ErrorIs(t, err, ErrOverlap)

	// Shrinking within its own slot is fine, the booking excludes itself.
	start, end = day(2), day(4)
	_, err = svc.Update(context.Background(), "u1", perm.PermissionSet{}, first.ID, UpdateInput{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
}

func TestDeleteRules(t *testing.T) {
	svc := NewService(newMemRepo())

	booking, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(5)})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "u2", perm.PermissionSet{}, booking.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = svc.Delete(context.Background(), "u2", perm.PermissionSet{CanDeleteAnyBooking: true}, booking.ID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "u1", perm.PermissionSet{}, booking.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListWindow(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(1), EndDate: day(3)})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "u1", "h1", CreateInput{StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), "h1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	early, err := svc.List(context.Background(), "h1", day(1), day(5))
	require.NoError(t, err)
	require.Len(t, early, 1)
	require.Equal(t, day(1), early[0].StartDate)
}
