package admin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohaus/cohaus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for email templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertTemplate creates or replaces a template by key.
func (r *Repository) UpsertTemplate(ctx context.Context, tpl *EmailTemplate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_templates (key, subject, body, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (key) DO UPDATE
		SET subject = excluded.subject,
		    body = excluded.body,
		    updated_by = excluded.updated_by,
		    updated_at = now()`,
		tpl.Key, tpl.Subject, tpl.Body, tpl.UpdatedBy,
	)
	return err
}

// GetTemplate fetches a template by key.
func (r *Repository) GetTemplate(ctx context.Context, key string) (*EmailTemplate, error) {
	var tpl EmailTemplate
	err := r.pool.QueryRow(ctx,
		`SELECT key, subject, body, updated_by, updated_at FROM email_templates WHERE key = $1`, key).
		Scan(&tpl.Key, &tpl.Subject, &tpl.Body, &tpl.UpdatedBy, &tpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// ListTemplates returns all templates ordered by key.
func (r *Repository) ListTemplates(ctx context.Context) ([]EmailTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key, subject, body, updated_by, updated_at FROM email_templates ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EmailTemplate
	for rows.Next() {
		var tpl EmailTemplate
		if err := rows.Scan(&tpl.Key, &tpl.Subject, &tpl.Body, &tpl.UpdatedBy, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

// DeleteTemplate removes a template, falling back to built-in defaults.
func (r *Repository) DeleteTemplate(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_templates WHERE key = $1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
