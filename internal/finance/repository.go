package finance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohaus/cohaus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for house finances.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, house_id, user_id, category, description, amount_cents, currency, incurred_on, created_at, updated_at`

// CreateExpense inserts an expense.
func (r *Repository) CreateExpense(ctx context.Context, expense *Expense) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (id, house_id, user_id, category, description, amount_cents, currency, incurred_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		expense.ID, expense.HouseID, expense.UserID, expense.Category, expense.Description,
		expense.AmountCents, expense.Currency, expense.IncurredOn,
	)
	return err
}

// GetExpense fetches one expense.
func (r *Repository) GetExpense(ctx context.Context, id string) (*Expense, error) {
	var expense Expense
	err := r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id).
		Scan(&expense.ID, &expense.HouseID, &expense.UserID, &expense.Category, &expense.Description,
			&expense.AmountCents, &expense.Currency, &expense.IncurredOn, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &expense, nil
}

// ListExpenses returns a house's expenses for a month, newest first.
func (r *Repository) ListExpenses(ctx context.Context, houseID string, year, month int) ([]Expense, error) {
	from, to := monthBounds(year, month)
	rows, err := r.pool.Query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE house_id = $1 AND incurred_on >= $2 AND incurred_on < $3
		ORDER BY incurred_on DESC, created_at DESC`,
		houseID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Expense
	for rows.Next() {
		var expense Expense
		if err := rows.Scan(&expense.ID, &expense.HouseID, &expense.UserID, &expense.Category, &expense.Description,
			&expense.AmountCents, &expense.Currency, &expense.IncurredOn, &expense.CreatedAt, &expense.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, expense)
	}
	return result, rows.Err()
}

// UpdateExpense persists editable expense fields.
func (r *Repository) UpdateExpense(ctx context.Context, expense *Expense) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses
		SET category = $2, description = $3, amount_cents = $4, incurred_on = $5, updated_at = now()
		WHERE id = $1`,
		expense.ID, expense.Category, expense.Description, expense.AmountCents, expense.IncurredOn,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteExpense removes an expense.
func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpsertBudget sets the budget for a house month, replacing any existing
// amount for the same period.
func (r *Repository) UpsertBudget(ctx context.Context, budget *Budget) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO budgets (id, house_id, year, month, amount_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (house_id, year, month) DO UPDATE
		SET amount_cents = excluded.amount_cents,
		    currency     = excluded.currency,
		    updated_at   = now()`,
		budget.ID, budget.HouseID, budget.Year, budget.Month, budget.AmountCents, budget.Currency,
	)
	return err
}

// GetBudget fetches the budget for a house month.
func (r *Repository) GetBudget(ctx context.Context, houseID string, year, month int) (*Budget, error) {
	var budget Budget
	err := r.pool.QueryRow(ctx, `
		SELECT id, house_id, year, month, amount_cents, currency, created_at, updated_at
		FROM budgets WHERE house_id = $1 AND year = $2 AND month = $3`,
		houseID, year, month).
		Scan(&budget.ID, &budget.HouseID, &budget.Year, &budget.Month,
			&budget.AmountCents, &budget.Currency, &budget.CreatedAt, &budget.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &budget, nil
}

// CreateInvoice inserts an invoice.
func (r *Repository) CreateInvoice(ctx context.Context, invoice *Invoice) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invoices (id, house_id, user_id, year, month, amount_cents, currency, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		invoice.ID, invoice.HouseID, invoice.UserID, invoice.Year, invoice.Month,
		invoice.AmountCents, invoice.Currency,
	)
	return err
}

// ListInvoices returns a house's invoices for a month.
func (r *Repository) ListInvoices(ctx context.Context, houseID string, year, month int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, house_id, user_id, year, month, amount_cents, currency, issued_at, paid_at
		FROM invoices WHERE house_id = $1 AND year = $2 AND month = $3
		ORDER BY issued_at`,
		houseID, year, month,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		var invoice Invoice
		if err := rows.Scan(&invoice.ID, &invoice.HouseID, &invoice.UserID, &invoice.Year, &invoice.Month,
			&invoice.AmountCents, &invoice.Currency, &invoice.IssuedAt, &invoice.PaidAt); err != nil {
			return nil, err
		}
		result = append(result, invoice)
	}
	return result, rows.Err()
}

// MarkInvoicePaid stamps the invoice as settled.
func (r *Repository) MarkInvoicePaid(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET paid_at = now() WHERE id = $1 AND paid_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func monthBounds(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
