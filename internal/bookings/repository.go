package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohaus/cohaus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `id, house_id, user_id, start_date, end_date, guests, notes, created_at, updated_at`

// Create inserts a booking.
func (r *Repository) Create(ctx context.Context, booking *Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, house_id, user_id, start_date, end_date, guests, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		booking.ID, booking.HouseID, booking.UserID, booking.StartDate, booking.EndDate, booking.Guests, booking.Notes,
	)
	return err
}

// GetByID fetches a booking.
func (r *Repository) GetByID(ctx context.Context, id string) (*Booking, error) {
	var booking Booking
	err := r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id).
		Scan(&booking.ID, &booking.HouseID, &booking.UserID, &booking.StartDate, &booking.EndDate,
			&booking.Guests, &booking.Notes, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// ListByHouse returns bookings for a house intersecting [from, to),
// ordered by start date. Zero bounds disable that side of the filter.
func (r *Repository) ListByHouse(ctx context.Context, houseID string, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE house_id = $1
		  AND ($2::timestamptz IS NULL OR end_date > $2)
		  AND ($3::timestamptz IS NULL OR start_date < $3)
		ORDER BY start_date`,
		houseID, nullableTime(from), nullableTime(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		var booking Booking
		if err := rows.Scan(&booking.ID, &booking.HouseID, &booking.UserID, &booking.StartDate, &booking.EndDate,
			&booking.Guests, &booking.Notes, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, booking)
	}
	return result, rows.Err()
}

// HasOverlap reports whether any booking other than excludeID intersects
// [start, end) for the house.
func (r *Repository) HasOverlap(ctx context.Context, houseID string, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE house_id = $1 AND id <> $4
			  AND start_date < $3 AND end_date > $2
		)`,
		houseID, start, end, excludeID,
	).Scan(&exists)
	return exists, err
}

// Update persists editable booking fields.
func (r *Repository) Update(ctx context.Context, booking *Booking) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET start_date = $2, end_date = $3, guests = $4, notes = $5, updated_at = now()
		WHERE id = $1`,
		booking.ID, booking.StartDate, booking.EndDate, booking.Guests, booking.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a booking.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CheckIn pairs a booking with the booker's email for reminder mails.
type CheckIn struct {
	Booking   Booking
	Email     string
	HouseName string
}

// ListCheckInsOn returns bookings starting on the given calendar day,
// joined with booker email and house name. Used by the reminder job.
func (r *Repository) ListCheckInsOn(ctx context.Context, day time.Time) ([]CheckIn, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.house_id, b.user_id, b.start_date, b.end_date, b.guests, b.notes, b.created_at, b.updated_at,
		       u.email, h.name
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN houses h ON h.id = b.house_id
		WHERE b.start_date >= $1 AND b.start_date < $2
		ORDER BY b.start_date`,
		dayStart, dayEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CheckIn
	for rows.Next() {
		var item CheckIn
		if err := rows.Scan(&item.Booking.ID, &item.Booking.HouseID, &item.Booking.UserID,
			&item.Booking.StartDate, &item.Booking.EndDate, &item.Booking.Guests, &item.Booking.Notes,
			&item.Booking.CreatedAt, &item.Booking.UpdatedAt, &item.Email, &item.HouseName); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
