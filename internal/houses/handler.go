package houses

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/platform/httpx"
	"github.com/cohaus/cohaus/internal/shared"
)

// Handler wires house and membership HTTP endpoints.
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

// MountRoutes registers the house collection routes. Callers must be
// authenticated; the per-action capability gates live here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

// MountHouseRoutes registers the routes scoped to one house. The caller
// mounts these inside the shared /houses/{houseID} route alongside the
// booking, finance and task consumers.
func (h *Handler) MountHouseRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanEditHouseSettings })).
		Patch("/", h.update)
	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanDeleteHouse })).
		Delete("/", h.delete)

	r.Route("/members", func(r chi.Router) {
		r.With(h.rbac.RequireHouseRole(perm.HouseRoleViewer)).Get("/", h.members)
		r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanInviteMembers })).
			Post("/", h.invite)
		r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanInviteMembers })).
			Put("/{userID}", h.changeRole)
		r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanRemoveMembers })).
			Delete("/{userID}", h.removeMember)
	})

	r.With(h.rbac.Require(func(p perm.PermissionSet) bool { return p.CanTransferOwnership })).
		Post("/transfer-ownership", h.transferOwnership)
}

type createRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	Address      string `json:"address" validate:"max=500"`
	Description  string `json:"description" validate:"max=5000"`
	ArrivalNotes string `json:"arrival_notes" validate:"max=5000"`
	WifiName     string `json:"wifi_name" validate:"max=200"`
	WifiPassword string `json:"wifi_password" validate:"max=200"`
	HouseRules   string `json:"house_rules" validate:"max=10000"`
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
	house, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), CreateInput{
		Name:         req.Name,
		Address:      req.Address,
		Description:  req.Description,
		ArrivalNotes: req.ArrivalNotes,
		WifiName:     req.WifiName,
		WifiPassword: req.WifiPassword,
		HouseRules:   req.HouseRules,
	})
	if err != nil {
		h.logger.Error("create house", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, house)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	data, ok := perm.RoleDataFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	result, err := h.service.ListFor(r.Context(), data)
	if err != nil {
		h.logger.Error("list houses", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// get allows any house role as well as system roles holding view_all_houses.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "houseID")
	data, ok := perm.RoleDataFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	_, hasRole := data.HouseRole(houseID)
	if !hasRole && !perm.Resolve(data, houseID, false).CanViewAllHouses {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}

	house, err := h.service.Get(r.Context(), houseID)
	if err != nil {
		h.respondError(w, err, "load house")
		return
	}
	httpx.JSON(w, http.StatusOK, house)
}

type updateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	ArrivalNotes *string `json:"arrival_notes" validate:"omitempty,max=5000"`
	WifiName     *string `json:"wifi_name" validate:"omitempty,max=200"`
	WifiPassword *string `json:"wifi_password" validate:"omitempty,max=200"`
	HouseRules   *string `json:"house_rules" validate:"omitempty,max=10000"`
	HideFinances *bool   `json:"hide_finances"`
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
	house, err := h.service.Update(r.Context(), chi.URLParam(r, "houseID"), UpdateInput{
		Name:         req.Name,
		Address:      req.Address,
		Description:  req.Description,
		ArrivalNotes: req.ArrivalNotes,
		WifiName:     req.WifiName,
		WifiPassword: req.WifiPassword,
		HouseRules:   req.HouseRules,
		HideFinances: req.HideFinances,
	})
	if err != nil {
		h.respondError(w, err, "update house")
		return
	}
	httpx.JSON(w, http.StatusOK, house)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "houseID"))
	if err != nil {
		h.respondError(w, err, "delete house")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.Members(r.Context(), chi.URLParam(r, "houseID"))
	if err != nil {
		h.respondError(w, err, "list members")
		return
	}
	httpx.JSON(w, http.StatusOK, members)
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	role, err := perm.ParseHouseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid role", "role must be viewer, member or admin")
		return
	}

	member, err := h.service.Invite(r.Context(), shared.CurrentUserID(r.Context()), chi.URLParam(r, "houseID"), req.Email, role)
	if err != nil {
		switch {
		case errors.Is(err, ErrOwnerGrantForbidden):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid role", err.Error())
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not found", "no account with this email")
		default:
			h.logger.Error("invite member", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, member)
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	role, err := perm.ParseHouseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid role", "role must be viewer, member or admin")
		return
	}

	err = h.service.ChangeRole(r.Context(), shared.CurrentUserID(r.Context()),
		chi.URLParam(r, "houseID"), chi.URLParam(r, "userID"), role)
	if err != nil {
		h.respondMembershipError(w, err, "change role")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(r.Context(), shared.CurrentUserID(r.Context()),
		chi.URLParam(r, "houseID"), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondMembershipError(w, err, "remove member")
		return
	}
	httpx.NoContent(w)
}

type transferRequest struct {
	NewOwnerID string `json:"new_owner_id" validate:"required,uuid"`
}

func (h *Handler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	err := h.service.TransferOwnership(r.Context(), shared.CurrentUserID(r.Context()),
		chi.URLParam(r, "houseID"), req.NewOwnerID)
	if err != nil {
		h.respondMembershipError(w, err, "transfer ownership")
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

func (h *Handler) respondMembershipError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrOwnerImmutable), errors.Is(err, ErrOwnerGrantForbidden):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid operation", err.Error())
	case errors.Is(err, ErrNotAMember), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
	}
}
