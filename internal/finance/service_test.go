package finance

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
)

type memRepo struct {
	expenses map[string]*Expense
	budgets  map[string]*Budget
	invoices map[string]*Invoice
}

func newMemRepo() *memRepo {
	return &memRepo{
		expenses: map[string]*Expense{},
		budgets:  map[string]*Budget{},
		invoices: map[string]*Invoice{},
	}
}

func budgetKey(houseID string, year, month int) string {
	return houseID + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (m *memRepo) CreateExpense(_ context.Context, expense *Expense) error {
	copied := *expense
	m.expenses[expense.ID] = &copied
	return nil
}

func (m *memRepo) GetExpense(_ context.Context, id string) (*Expense, error) {
	expense, ok := m.expenses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *expense
	return &copied, nil
}

func (m *memRepo) ListExpenses(_ context.Context, houseID string, year, month int) ([]Expense, error) {
	var result []Expense
	for _, expense := range m.expenses {
		if expense.HouseID != houseID {
			continue
		}
		if expense.IncurredOn.Year() != year || int(expense.IncurredOn.Month()) != month {
			continue
		}
		result = append(result, *expense)
	}
	return result, nil
}

func (m *memRepo) UpdateExpense(_ context.Context, expense *Expense) error {
	if _, ok := m.expenses[expense.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *expense
	m.expenses[expense.ID] = &copied
	return nil
}

func (m *memRepo) DeleteExpense(_ context.Context, id string) error {
	if _, ok := m.expenses[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *memRepo) UpsertBudget(_ context.Context, budget *Budget) error {
	copied := *budget
	m.budgets[budgetKey(budget.HouseID, budget.Year, budget.Month)] = &copied
	return nil
}

func (m *memRepo) GetBudget(_ context.Context, houseID string, year, month int) (*Budget, error) {
	budget, ok := m.budgets[budgetKey(houseID, year, month)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *budget
	return &copied, nil
}

func (m *memRepo) CreateInvoice(_ context.Context, invoice *Invoice) error {
	copied := *invoice
	m.invoices[invoice.ID] = &copied
	return nil
}

func (m *memRepo) ListInvoices(_ context.Context, houseID string, year, month int) ([]Invoice, error) {
	var result []Invoice
	for _, invoice := range m.invoices {
		if invoice.HouseID == houseID && invoice.Year == year && invoice.Month == month {
			result = append(result, *invoice)
		}
	}
	return result, nil
}

func (m *memRepo) MarkInvoicePaid(_ context.Context, id string) error {
	invoice, ok := m.invoices[id]
	if !ok || invoice.PaidAt != nil {
		return shared.ErrNotFound
	}
	now := time.Now()
	invoice.PaidAt = &now
	return nil
}

func july(d int) time.Time {
	return time.Date(2026, time.July, d, 0, 0, 0, 0, time.UTC)
}

func addExpense(t *testing.T, svc *Service, userID string, cents int64, category string) *Expense {
	t.Helper()
	expense, err := svc.AddExpense(context.Background(), userID, "h1", ExpenseInput{
		Category:    category,
		AmountCents: cents,
		Currency:    "EUR",
		IncurredOn:  july(10),
	})
	require.NoError(t, err)
	return expense
}

func TestSummarize(t *testing.T) {
	svc := NewService(newMemRepo())

	addExpense(t, svc, "u1", 123450, "utilities")
	addExpense(t, svc, "u2", 50000, "repairs")
	addExpense(t, svc, "u1", 25000, "utilities")

	_, err := svc.SetBudget(context.Background(), "h1", 2026, 7, 150000, "EUR")
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), "h1", 2026, 7)
	require.NoError(t, err)
	require.Equal(t, int64(198450), summary.TotalCents)
	require.Equal(t, "1,984.50 EUR", summary.TotalDisplay)
	require.Equal(t, int64(148450), summary.ByCategory["utilities"])
	require.Equal(t, int64(50000), summary.ByCategory["repairs"])
	require.True(t, summary.OverBudget)
	require.Equal(t, 3, summary.ExpenseCount)
}

func TestSummarizeWithoutBudget(t *testing.T) {
	svc := NewService(newMemRepo())
	addExpense(t, svc, "u1", 1000, "misc")

	summary, err := svc.Summarize(context.Background(), "h1", 2026, 7)
	require.NoError(t, err)
	require.False(t, summary.OverBudget)
	require.Zero(t, summary.BudgetCents)
	require.Empty(t, summary.BudgetDisplay)
}

func TestExpenseOwnershipRules(t *testing.T) {
	svc := NewService(newMemRepo())
	expense := addExpense(t, svc, "u1", 5000, "misc")

	in := ExpenseInput{Category: "misc", AmountCents: 6000, Currency: "EUR", IncurredOn: july(10)}

	_, err := svc.UpdateExpense(context.Background(), "u2", perm.PermissionSet{}, expense.ID, in)
	require.ErrorIs(t, err, ErrNotOwner)

	updated, err := svc.UpdateExpense(context.Background(), "u2", perm.PermissionSet{CanEditBudget: true}, expense.ID, in)
	require.NoError(t, err)
	require.Equal(t, int64(6000), updated.AmountCents)

	err = svc.DeleteExpense(context.Background(), "u2", perm.PermissionSet{}, expense.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = svc.DeleteExpense(context.Background(), "u1", perm.PermissionSet{}, expense.ID)
	require.NoError(t, err)
}

func TestInvoiceEvenSplitWithRemainder(t *testing.T) {
	svc := NewService(newMemRepo())
	addExpense(t, svc, "u1", 10001, "misc")

	invoices, err := svc.Invoice(context.Background(), "h1", 2026, 7, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	require.Len(t, invoices, 3)

	var total int64
	for _, invoice := range invoices {
		total += invoice.AmountCents
	}
	require.Equal(t, int64(10001), total)
	require.Equal(t, int64(3335), invoices[0].AmountCents)
	require.Equal(t, int64(3333), invoices[1].AmountCents)
}

func TestExportCSV(t *testing.T) {
	svc := NewService(newMemRepo())
	addExpense(t, svc, "u1", 5000, "utilities")

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), &buf, "h1", 2026, 7))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "date,category,description,amount_cents,currency,filed_by", lines[0])
	require.Contains(t, lines[1], "2026-07-10,utilities")
	require.Contains(t, lines[1], "5000,EUR,u1")
}

func TestFormatAmount(t *testing.T) {
	svc := NewService(newMemRepo())
	require.Equal(t, "1,234.50 EUR", svc.FormatAmount(123450, "EUR"))
	require.Equal(t, "0.05 USD", svc.FormatAmount(5, "USD"))
}
