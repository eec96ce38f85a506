package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cohaus/cohaus/internal/shared"
	"github.com/cohaus/cohaus/internal/users"
	_ "github.com/cohaus/cohaus/testing"
)

type stubFinder struct {
	users map[string]*users.User
}

func (f stubFinder) GetByEmail(_ context.Context, email string) (*users.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func newTestHandler(t *testing.T) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("test-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	finder := stubFinder{users: map[string]*users.User{
		"amelia@example.com": {ID: "amelia", Email: "amelia@example.com", PasswordHash: string(hash), IsActive: true},
		"frozen@example.com": {ID: "frozen", Email: "frozen@example.com", PasswordHash: string(hash), IsActive: false},
	}}

	return NewHandler(nil, NewService(finder), sessions, csrf), sessions
}

// newTestRouter mounts the handler behind a session loading middleware so
// handlers see the same context shape as in production.
func newTestRouter(h *Handler, sessions *shared.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				http.Error(w, "session", http.StatusInternalServerError)
				return
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/auth", h.MountRoutes)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	h, sessions := newTestHandler(t)
	router := newTestRouter(h, sessions)

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "amelia@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID        string `json:"user_id"`
		CSRFToken     string `json:"csrf_token"`
		Authenticated bool   `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Authenticated)
	require.Equal(t, "amelia", resp.UserID)
	require.NotEmpty(t, resp.CSRFToken)
}

func TestLoginWrongPassword(t *testing.T) {
	h, sessions := newTestHandler(t)
	router := newTestRouter(h, sessions)

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "amelia@example.com",
		"password": "wrong password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownAndInactiveLookAlike(t *testing.T) {
	h, sessions := newTestHandler(t)
	router := newTestRouter(h, sessions)

	unknown := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "correct horse",
	})
	inactive := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "frozen@example.com",
		"password": "correct horse",
	})

	// Unknown accounts and deactivated accounts must be indistinguishable.
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, inactive.Code)
	require.JSONEq(t, unknown.Body.String(), inactive.Body.String())
}

func TestLoginValidation(t *testing.T) {
	h, sessions := newTestHandler(t)
	router := newTestRouter(h, sessions)

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	h, sessions := newTestHandler(t)
	router := newTestRouter(h, sessions)

	// Anonymous request reports unauthenticated.
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Authenticated)
}
