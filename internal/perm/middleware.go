package perm

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cohaus/cohaus/internal/platform/httpx"
	"github.com/cohaus/cohaus/internal/shared"
)

type roleDataContextKey struct{}

// ContextWithRoleData stores loaded role data in the request context.
func ContextWithRoleData(ctx context.Context, data RoleData) context.Context {
	return context.WithValue(ctx, roleDataContextKey{}, data)
}

// RoleDataFromContext extracts role data attached by the middleware.
func RoleDataFromContext(ctx context.Context) (RoleData, bool) {
	data, ok := ctx.Value(roleDataContextKey{}).(RoleData)
	return data, ok
}

// ResolveFromContext resolves permissions for the current request. The
// second return is false when no role data was attached (unauthenticated
// request or missing middleware).
func ResolveFromContext(ctx context.Context, houseID string, hideFinances bool) (PermissionSet, bool) {
	data, ok := RoleDataFromContext(ctx)
	if !ok {
		return PermissionSet{}, false
	}
	return Resolve(data, houseID, hideFinances), true
}

// DenialRecorder counts permission denials for observability.
type DenialRecorder interface {
	RecordDenial(route string)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Store   Store
	Logger  *slog.Logger
	Denials DenialRecorder
}

// Authenticate requires a logged-in session and attaches the caller's role
// data to the request context. A role fetch failure is a hard denial: the
// request never reaches the handler with unknown permissions.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := shared.CurrentUserID(r.Context())
		if userID == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		data, err := m.Store.RoleData(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("load role data", slog.String("user_id", userID), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusServiceUnavailable, "Cannot verify permissions", "permission check unavailable, try again")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithRoleData(r.Context(), data)))
	})
}

// Require guards a route with a capability selector. House-scoped routes
// must carry a {houseID} URL parameter; the selector receives permissions
// resolved for that house without the privacy flag (finance handlers apply
// the flag themselves because it lives on the house record).
func (m Middleware) Require(selector func(PermissionSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, ok := RoleDataFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			houseID := chi.URLParam(r, "houseID")
			if selector(Resolve(data, houseID, false)) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Denials != nil {
				m.Denials.RecordDenial(routePattern(r))
			}
			if m.Logger != nil {
				m.Logger.Warn("permission denied",
					slog.String("user_id", shared.CurrentUserID(r.Context())),
					slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
		})
	}
}

// RequireHouseRole guards a route with a coarse minimum house role check
// using the viewer < member < admin < owner order. super_admin passes
// regardless, matching the universal override in the capability tables.
func (m Middleware) RequireHouseRole(min HouseRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, ok := RoleDataFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			houseID := chi.URLParam(r, "houseID")
			if data.SystemRole == SystemRoleSuperAdmin || data.MeetsHouseRole(houseID, min) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Denials != nil {
				m.Denials.RecordDenial(routePattern(r))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
