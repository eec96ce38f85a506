package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cohaus/cohaus/internal/houses"
	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/platform/httpx"
	"github.com/cohaus/cohaus/internal/shared"
)

// HouseLister is the slice of the houses module the console needs.
type HouseLister interface {
	ListFor(ctx context.Context, data perm.RoleData) ([]houses.House, error)
}

// Handler wires the operator console endpoints under /admin. The whole
// subtree is gated on the console capability in the router; stricter
// checks per action live here.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	houses   HouseLister
	rbac     perm.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, houseLister HouseLister, rbac perm.Middleware) *Handler {
	return &Handler{logger: logger, service: service, houses: houseLister, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers the console routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/overview", h.overview)
	r.Get("/houses", h.listHouses)
	r.Get("/audit", h.auditTimeline)

	r.Get("/users", h.listUsers)
	r.Put("/users/{userID}/system-role", h.setSystemRole)

	impersonate := h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanImpersonateUsers })
	r.With(impersonate).Post("/impersonate/{userID}", h.startImpersonation)
	r.Post("/impersonate/stop", h.stopImpersonation)

	templates := h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanManageEmailTemplates })
	r.With(templates).Get("/templates", h.listTemplates)
	r.With(templates).Get("/templates/{key}", h.getTemplate)
	r.With(templates).Put("/templates/{key}", h.saveTemplate)
	r.With(templates).Delete("/templates/{key}", h.deleteTemplate)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.Error("admin overview", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) listHouses(w http.ResponseWriter, r *http.Request) {
	data, ok := perm.RoleDataFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	result, err := h.houses.ListFor(r.Context(), data)
	if err != nil {
		h.logger.Error("admin list houses", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Users(r.Context())
	if err != nil {
		h.logger.Error("admin list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) auditTimeline(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	result, err := h.service.Timeline(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type systemRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// setSystemRole is restricted to super admins. The console capability
// also admits support admins, who must not change roles.
func (h *Handler) setSystemRole(w http.ResponseWriter, r *http.Request) {
	data, ok := perm.RoleDataFromContext(r.Context())
	if !ok || data.SystemRole != perm.SystemRoleSuperAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "only super admins may change system roles")
		return
	}

	var req systemRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	role, err := perm.ParseSystemRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid role", "role must be super_admin, support_admin or regular_user")
		return
	}

	err = h.service.SetSystemRole(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "userID"), role)
	if err != nil {
		h.respondError(w, err, "set system role")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) startImpersonation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if sess.Impersonating() {
		httpx.Problem(w, http.StatusConflict, "Already impersonating", "stop the current impersonation first")
		return
	}
	targetID := chi.URLParam(r, "userID")
	if targetID == sess.User() {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid target", "cannot impersonate yourself")
		return
	}
	if _, err := h.service.directory.Get(r.Context(), targetID); err != nil {
		h.respondError(w, err, "load impersonation target")
		return
	}

	actorID := sess.User()
	sess.Impersonate(targetID)
	h.service.RecordImpersonation(r.Context(), actorID, targetID, true)
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": targetID, "actor_id": actorID})
}

func (h *Handler) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Impersonating() {
		httpx.Problem(w, http.StatusConflict, "Not impersonating", "")
		return
	}
	targetID := sess.User()
	sess.StopImpersonating()
	h.service.RecordImpersonation(r.Context(), sess.User(), targetID, false)
	httpx.NoContent(w)
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.Templates(r.Context())
	if err != nil {
		h.logger.Error("list templates", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, templates)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.Template(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.respondError(w, err, "load template")
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

type templateRequest struct {
	Subject string `json:"subject" validate:"required,max=500"`
	Body    string `json:"body" validate:"required,max=50000"`
}

func (h *Handler) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	tpl, err := h.service.SaveTemplate(r.Context(), shared.CurrentUserID(r.Context()),
		chi.URLParam(r, "key"), req.Subject, req.Body)
	if err != nil {
		h.respondError(w, err, "save template")
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteTemplate(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.respondError(w, err, "delete template")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
}
