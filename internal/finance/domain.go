package finance

import (
	"errors"
	"time"
)

// ErrNotOwner is returned when a user edits an expense they did not file
// without the manage capability.
var ErrNotOwner = errors.New("finance: not your expense")

// Expense is a shared cost filed against a house.
type Expense struct {
	ID          string    `json:"id"`
	HouseID     string    `json:"house_id"`
	UserID      string    `json:"user_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	IncurredOn  time.Time `json:"incurred_on"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Budget caps spending for a house over a calendar month.
type Budget struct {
	ID          string    `json:"id"`
	HouseID     string    `json:"house_id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Invoice is a cost-sharing statement issued to one member for a month.
type Invoice struct {
	ID          string     `json:"id"`
	HouseID     string     `json:"house_id"`
	UserID      string     `json:"user_id"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	IssuedAt    time.Time  `json:"issued_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// Summary aggregates a house's finances for one month.
type Summary struct {
	HouseID       string           `json:"house_id"`
	Year          int              `json:"year"`
	Month         int              `json:"month"`
	TotalCents    int64            `json:"total_cents"`
	Currency      string           `json:"currency"`
	TotalDisplay  string           `json:"total_display"`
	BudgetCents   int64            `json:"budget_cents,omitempty"`
	BudgetDisplay string           `json:"budget_display,omitempty"`
	OverBudget    bool             `json:"over_budget"`
	ByCategory    map[string]int64 `json:"by_category"`
	ExpenseCount  int              `json:"expense_count"`
}
