package bookings

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/platform/httpx"
	"github.com/cohaus/cohaus/internal/shared"
)

// Handler wires the booking endpoints under /houses/{houseID}/bookings.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     perm.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac perm.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers the booking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireHouseRole(perm.HouseRoleViewer)).Get("/", h.list)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanCreateBooking })).
		Post("/", h.create)
	r.With(h.rbac.RequireHouseRole(perm.HouseRoleViewer)).Get("/{bookingID}", h.get)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditOwnBooking || p.CanDeleteAnyBooking })).
		Patch("/{bookingID}", h.update)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditOwnBooking || p.CanDeleteAnyBooking })).
		Delete("/{bookingID}", h.delete)
}

type createRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Guests    int       `json:"guests" validate:"min=0,max=100"`
	Notes     string    `json:"notes" validate:"max=2000"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	booking, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "houseID"), CreateInput{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Guests:    req.Guests,
		Notes:     req.Notes,
	})
	if err != nil {
		h.respondError(w, err, "create booking")
		return
	}
	httpx.JSON(w, http.StatusCreated, booking)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	from := parseDate(r.URL.Query().Get("from"))
	to := parseDate(r.URL.Query().Get("to"))

	result, err := h.service.List(r.Context(), chi.URLParam(r, "houseID"), from, to)
	if err != nil {
		h.logger.Error("list bookings", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.respondError(w, err, "load booking")
		return
	}
	if booking.HouseID != chi.URLParam(r, "houseID") {
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
		return
	}
	httpx.JSON(w, http.StatusOK, booking)
}

type updateRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Guests    *int       `json:"guests" validate:"omitempty,min=0,max=100"`
	Notes     *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	perms, _ := perm.ResolveFromContext(r.Context(), chi.URLParam(r, "houseID"), false)

	booking, err := h.service.Update(r.Context(), shared.CurrentUserID(r.Context()), perms,
		chi.URLParam(r, "bookingID"), UpdateInput{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Guests:    req.Guests,
			Notes:     req.Notes,
		})
	if err != nil {
		h.respondError(w, err, "update booking")
		return
	}
	httpx.JSON(w, http.StatusOK, booking)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	perms, _ := perm.ResolveFromContext(r.Context(), chi.URLParam(r, "houseID"), false)

	err := h.service.Delete(r.Context(), shared.CurrentUserID(r.Context()), perms, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.respondError(w, err, "delete booking")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrOverlap):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid booking", err.Error())
	case errors.Is(err, ErrNotOwner):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}
