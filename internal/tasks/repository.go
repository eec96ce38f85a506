package tasks

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohaus/cohaus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, house_id, created_by, COALESCE(assignee_id, ''), title, description, status, due_on, created_at, updated_at`

// Create inserts a task.
func (r *Repository) Create(ctx context.Context, task *Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, house_id, created_by, assignee_id, title, description, status, due_on, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, now(), now())`,
		task.ID, task.HouseID, task.CreatedBy, task.AssigneeID, task.Title, task.Description, task.Status, task.DueOn,
	)
	return err
}

// GetByID fetches a task.
func (r *Repository) GetByID(ctx context.Context, id string) (*Task, error) {
	var task Task
	err := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).
		Scan(&task.ID, &task.HouseID, &task.CreatedBy, &task.AssigneeID, &task.Title, &task.Description,
			&task.Status, &task.DueOn, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// ListByHouse returns a house's tasks, optionally filtered by status,
// open ones first and nearest due date on top.
func (r *Repository) ListByHouse(ctx context.Context, houseID, status string) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE house_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY status DESC, due_on NULLS LAST, created_at`,
		houseID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Task
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.HouseID, &task.CreatedBy, &task.AssigneeID, &task.Title,
			&task.Description, &task.Status, &task.DueOn, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

// Update persists editable task fields.
func (r *Repository) Update(ctx context.Context, task *Task) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET assignee_id = NULLIF($2, ''), title = $3, description = $4, status = $5, due_on = $6, updated_at = now()
		WHERE id = $1`,
		task.ID, task.AssigneeID, task.Title, task.Description, task.Status, task.DueOn,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
