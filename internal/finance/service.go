package finance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cohaus/cohaus/internal/perm"
)

// RepositoryPort is the persistence contract the service depends on.
type RepositoryPort interface {
	CreateExpense(ctx context.Context, expense *Expense) error
	GetExpense(ctx context.Context, id string) (*Expense, error)
	ListExpenses(ctx context.Context, houseID string, year, month int) ([]Expense, error)
	UpdateExpense(ctx context.Context, expense *Expense) error
	DeleteExpense(ctx context.Context, id string) error
	UpsertBudget(ctx context.Context, budget *Budget) error
	GetBudget(ctx context.Context, houseID string, year, month int) (*Budget, error)
	CreateInvoice(ctx context.Context, invoice *Invoice) error
	ListInvoices(ctx context.Context, houseID string, year, month int) ([]Invoice, error)
	MarkInvoicePaid(ctx context.Context, id string) error
}

// Service implements the shared-cost rules for a house.
type Service struct {
	repo    RepositoryPort
	printer *message.Printer
}

// NewService constructs a Service. Amounts are formatted with grouped
// thousands for the summary views.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, printer: message.NewPrinter(language.English)}
}

// ExpenseInput carries the fields for a new or updated expense.
type ExpenseInput struct {
	Category    string
	Description string
	AmountCents int64
	Currency    string
	IncurredOn  time.Time
}

// AddExpense files an expense against the house for the caller.
func (s *Service) AddExpense(ctx context.Context, userID, houseID string, in ExpenseInput) (*Expense, error) {
	expense := &Expense{
		ID:          uuid.NewString(),
		HouseID:     houseID,
		UserID:      userID,
		Category:    in.Category,
		Description: in.Description,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		IncurredOn:  in.IncurredOn,
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// Expenses returns the house ledger for a month.
func (s *Service) Expenses(ctx context.Context, houseID string, year, month int) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, houseID, year, month)
}

// UpdateExpense edits an expense. Filers may edit their own entries;
// editing someone else's requires the budget capability.
func (s *Service) UpdateExpense(ctx context.Context, userID string, perms perm.PermissionSet, expenseID string, in ExpenseInput) (*Expense, error) {
	expense, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.UserID != userID && !perms.CanEditBudget {
		return nil, ErrNotOwner
	}

	expense.Category = in.Category
	expense.Description = in.Description
	expense.AmountCents = in.AmountCents
	expense.IncurredOn = in.IncurredOn
	if err := s.repo.UpdateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense under the same ownership rule as editing.
func (s *Service) DeleteExpense(ctx context.Context, userID string, perms perm.PermissionSet, expenseID string) error {
	expense, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.UserID != userID && !perms.CanEditBudget {
		return ErrNotOwner
	}
	return s.repo.DeleteExpense(ctx, expenseID)
}

// SetBudget sets or replaces the monthly budget.
func (s *Service) SetBudget(ctx context.Context, houseID string, year, month int, amountCents int64, currency string) (*Budget, error) {
	budget := &Budget{
		ID:          uuid.NewString(),
		HouseID:     houseID,
		Year:        year,
		Month:       month,
		AmountCents: amountCents,
		Currency:    currency,
	}
	if err := s.repo.UpsertBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("set budget: %w", err)
	}
	return budget, nil
}

// Summarize aggregates the month's spending against its budget.
func (s *Service) Summarize(ctx context.Context, houseID string, year, month int) (*Summary, error) {
	expenses, err := s.repo.ListExpenses(ctx, houseID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	summary := &Summary{
		HouseID:      houseID,
		Year:         year,
		Month:        month,
		ByCategory:   map[string]int64{},
		ExpenseCount: len(expenses),
	}
	for _, expense := range expenses {
		summary.TotalCents += expense.AmountCents
		summary.ByCategory[expense.Category] += expense.AmountCents
		if summary.Currency == "" {
			summary.Currency = expense.Currency
		}
	}
	summary.TotalDisplay = s.FormatAmount(summary.TotalCents, summary.Currency)

	budget, err := s.repo.GetBudget(ctx, houseID, year, month)
	if err == nil {
		summary.BudgetCents = budget.AmountCents
		summary.BudgetDisplay = s.FormatAmount(budget.AmountCents, budget.Currency)
		summary.OverBudget = summary.TotalCents > budget.AmountCents
	}
	return summary, nil
}

// Invoice splits the month's total evenly across the given members and
// issues one invoice each. The remainder cents go to the first member so
// the split always sums to the total.
func (s *Service) Invoice(ctx context.Context, houseID string, year, month int, memberIDs []string) ([]Invoice, error) {
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("finance: no members to invoice")
	}
	summary, err := s.Summarize(ctx, houseID, year, month)
	if err != nil {
		return nil, err
	}

	share := summary.TotalCents / int64(len(memberIDs))
	remainder := summary.TotalCents - share*int64(len(memberIDs))

	invoices := make([]Invoice, 0, len(memberIDs))
	for i, memberID := range memberIDs {
		amount := share
		if i == 0 {
			amount += remainder
		}
		invoice := Invoice{
			ID:          uuid.NewString(),
			HouseID:     houseID,
			UserID:      memberID,
			Year:        year,
			Month:       month,
			AmountCents: amount,
			Currency:    summary.Currency,
		}
		if err := s.repo.CreateInvoice(ctx, &invoice); err != nil {
			return nil, fmt.Errorf("create invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

// Invoices returns the issued invoices for a month.
func (s *Service) Invoices(ctx context.Context, houseID string, year, month int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, houseID, year, month)
}

// MarkPaid settles an invoice.
func (s *Service) MarkPaid(ctx context.Context, invoiceID string) error {
	return s.repo.MarkInvoicePaid(ctx, invoiceID)
}

// ExportCSV streams the month's expenses as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, houseID string, year, month int) error {
	expenses, err := s.repo.ListExpenses(ctx, houseID, year, month)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "category", "description", "amount_cents", "currency", "filed_by"}); err != nil {
		return err
	}
	for _, expense := range expenses {
		record := []string{
			expense.IncurredOn.Format("2006-01-02"),
			expense.Category,
			expense.Description,
			strconv.FormatInt(expense.AmountCents, 10),
			expense.Currency,
			expense.UserID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatAmount renders cents as a grouped decimal amount with its currency
// code, e.g. "1,234.50 EUR".
func (s *Service) FormatAmount(cents int64, currency string) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	if currency == "" {
		return s.printer.Sprintf("%d.%02d", whole, frac)
	}
	return s.printer.Sprintf("%d.%02d %s", whole, frac, currency)
}
