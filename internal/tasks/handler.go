package tasks

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

// Handler wires the task endpoints under /houses/{houseID}/tasks.
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

// MountRoutes registers the task routes. Editing is open to every house
// role because even viewers may tick off a chore assigned to them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireHouseRole(perm.HouseRoleViewer)).Get("/", h.list)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanCreateTask })).
		Post("/", h.create)
	r.With(h.rbac.RequireHouseRole(perm.HouseRoleViewer)).Get("/{taskID}", h.get)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditOwnTask || p.CanDeleteAnyTask })).
		Patch("/{taskID}", h.update)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditOwnTask || p.CanDeleteAnyTask })).
		Delete("/{taskID}", h.delete)
}

type createRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=300"`
	Description string     `json:"description" validate:"max=5000"`
	AssigneeID  string     `json:"assignee_id" validate:"omitempty,uuid"`
	DueOn       *time.Time `json:"due_on"`
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
	task, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "houseID"), CreateInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueOn:       req.DueOn,
	})
	if err != nil {
		h.respondError(w, err, "create task")
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != StatusOpen && status != StatusDone {
		httpx.Problem(w, http.StatusBadRequest, "Invalid filter", "status must be open or done")
		return
	}
	result, err := h.service.List(r.Context(), chi.URLParam(r, "houseID"), status)
	if err != nil {
		h.logger.Error("list tasks", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondError(w, err, "load task")
		return
	}
	if task.HouseID != chi.URLParam(r, "houseID") {
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

type updateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=300"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	AssigneeID  *string    `json:"assignee_id" validate:"omitempty,uuid"`
	Status      *string    `json:"status" validate:"omitempty,oneof=open done"`
	DueOn       *time.Time `json:"due_on"`
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

	task, err := h.service.Update(r.Context(), shared.CurrentUserID(r.Context()), perms,
		chi.URLParam(r, "taskID"), UpdateInput{
			Title:       req.Title,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
			Status:      req.Status,
			DueOn:       req.DueOn,
		})
	if err != nil {
		h.respondError(w, err, "update task")
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	perms, _ := perm.ResolveFromContext(r.Context(), chi.URLParam(r, "houseID"), false)

	err := h.service.Delete(r.Context(), shared.CurrentUserID(r.Context()), perms, chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondError(w, err, "delete task")
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
