package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/platform/httpx"
	"github.com/cohaus/cohaus/internal/shared"
)

// PrivacyFlags exposes the per-house finance privacy toggle. The houses
// module implements it with a short lived in-process cache.
type PrivacyFlags interface {
	HideFinances(ctx context.Context, houseID string) (bool, error)
}

// Handler wires the finance endpoints under /houses/{houseID}/finance.
// Unlike the other consumers it cannot gate with the plain middleware:
// the view capability depends on the house's hide_finances flag, so each
// view handler resolves permissions itself with the flag applied.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	privacy  PrivacyFlags
	rbac     perm.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, privacy PrivacyFlags, rbac perm.Middleware) *Handler {
	return &Handler{logger: logger, service: service, privacy: privacy, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers the finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.requireView(h.listExpenses))
	r.Post("/expenses", h.requireView(h.addExpense))
	r.Patch("/expenses/{expenseID}", h.requireView(h.updateExpense))
	r.Delete("/expenses/{expenseID}", h.requireView(h.deleteExpense))
	r.Get("/summary", h.requireView(h.summary))
	r.Get("/export", h.requireView(h.exportCSV))

	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditBudget })).
		Put("/budget", h.setBudget)

	invoicing := h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanManageInvoices })
	r.With(invoicing).Get("/invoices", h.listInvoices)
	r.With(invoicing).Post("/invoices", h.issueInvoices)
	r.With(invoicing).Post("/invoices/{invoiceID}/paid", h.markPaid)
}

// requireView resolves the caller's permissions with the house privacy
// flag applied and denies unless finances are visible to them.
func (h *Handler) requireView(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		houseID := chi.URLParam(r, "houseID")
		hide, err := h.privacy.HideFinances(r.Context(), houseID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.Problem(w, http.StatusNotFound, "Not found", "")
				return
			}
			h.logger.Error("load privacy flag", slog.String("house_id", houseID), slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Cannot verify permissions", "permission check unavailable, try again")
			return
		}
		perms, ok := perm.ResolveFromContext(r.Context(), houseID, hide)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		if !perms.CanViewFinances {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
			return
		}
		next(w, r)
	}
}

type expenseRequest struct {
	Category    string    `json:"category" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=2000"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	IncurredOn  time.Time `json:"incurred_on" validate:"required"`
}

func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	expense, err := h.service.AddExpense(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "houseID"), ExpenseInput{
		Category:    req.Category,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		IncurredOn:  req.IncurredOn,
	})
	if err != nil {
		h.respondError(w, err, "add expense")
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)
	expenses, err := h.service.Expenses(r.Context(), chi.URLParam(r, "houseID"), year, month)
	if err != nil {
		h.respondError(w, err, "list expenses")
		return
	}
	httpx.JSON(w, http.StatusOK, expenses)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	perms, _ := perm.ResolveFromContext(r.Context(), chi.URLParam(r, "houseID"), false)

	expense, err := h.service.UpdateExpense(r.Context(), shared.CurrentUserID(r.Context()), perms,
		chi.URLParam(r, "expenseID"), ExpenseInput{
			Category:    req.Category,
			Description: req.Description,
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
			IncurredOn:  req.IncurredOn,
		})
	if err != nil {
		h.respondError(w, err, "update expense")
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	perms, _ := perm.ResolveFromContext(r.Context(), chi.URLParam(r, "houseID"), false)

	err := h.service.DeleteExpense(r.Context(), shared.CurrentUserID(r.Context()), perms, chi.URLParam(r, "expenseID"))
	if err != nil {
		h.respondError(w, err, "delete expense")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)
	summary, err := h.service.Summarize(r.Context(), chi.URLParam(r, "houseID"), year, month)
	if err != nil {
		h.respondError(w, err, "summarize finances")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)
	houseID := chi.URLParam(r, "houseID")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="expenses-%04d-%02d.csv"`, year, month))
	if err := h.service.ExportCSV(r.Context(), w, houseID, year, month); err != nil {
		h.logger.Error("export expenses", slog.String("house_id", houseID), slog.Any("error", err))
	}
}

type budgetRequest struct {
	Year        int    `json:"year" validate:"required,min=2000,max=2200"`
	Month       int    `json:"month" validate:"required,min=1,max=12"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) setBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	budget, err := h.service.SetBudget(r.Context(), chi.URLParam(r, "houseID"), req.Year, req.Month, req.AmountCents, req.Currency)
	if err != nil {
		h.respondError(w, err, "set budget")
		return
	}
	httpx.JSON(w, http.StatusOK, budget)
}

type invoiceRequest struct {
	Year      int      `json:"year" validate:"required,min=2000,max=2200"`
	Month     int      `json:"month" validate:"required,min=1,max=12"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,uuid"`
}

func (h *Handler) issueInvoices(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	invoices, err := h.service.Invoice(r.Context(), chi.URLParam(r, "houseID"), req.Year, req.Month, req.MemberIDs)
	if err != nil {
		h.respondError(w, err, "issue invoices")
		return
	}
	httpx.JSON(w, http.StatusCreated, invoices)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	year, month := monthParams(r)
	invoices, err := h.service.Invoices(r.Context(), chi.URLParam(r, "houseID"), year, month)
	if err != nil {
		h.respondError(w, err, "list invoices")
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.respondError(w, err, "mark invoice paid")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
	case errors.Is(err, ErrNotOwner):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

// monthParams reads year and month from the query string, defaulting to
// the current month.
func monthParams(r *http.Request) (int, int) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if v, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && v >= 2000 && v <= 2200 {
		year = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && v >= 1 && v <= 12 {
		month = v
	}
	return year, month
}
