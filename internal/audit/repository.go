package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an event.
func (r *Repository) Insert(ctx context.Context, event Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		event.ActorID, event.Action, event.EntityType, event.EntityID, event.Detail,
	)
	return err
}

// List returns events newest first with a total count for paging.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, entity_type, entity_id, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.ActorID, &event.Action, &event.EntityType, &event.EntityID, &event.Detail, &event.CreatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

// Count returns the total number of audit events.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM audit_log`).Scan(&count)
	return count, err
}
