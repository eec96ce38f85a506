package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/audit"
	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
)

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) Count(context.Context) (int, error) { return c.n, c.err }

type memAuditRepo struct {
	events []audit.Event
}

func (m *memAuditRepo) Insert(_ context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAuditRepo) List(_ context.Context, limit, offset int) ([]audit.Event, int, error) {
	return m.events, len(m.events), nil
}

func (m *memAuditRepo) Count(context.Context) (int, error) {
	return len(m.events), nil
}

type stubGranter struct {
	systemRoles map[string]perm.SystemRole
	err         error
}

func (g *stubGranter) GrantHouseRole(context.Context, string, string, string, perm.HouseRole, string) error {
	return nil
}
func (g *stubGranter) RevokeHouseRole(context.Context, string, string) error { return nil }
func (g *stubGranter) RevokeHouseFromAll(context.Context, string) ([]string, error) {
	return nil, nil
}
func (g *stubGranter) SetSystemRole(_ context.Context, userID, _ string, role perm.SystemRole) error {
	if g.err != nil {
		return g.err
	}
	if g.systemRoles == nil {
		g.systemRoles = map[string]perm.SystemRole{}
	}
	g.systemRoles[userID] = role
	return nil
}

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) error {
	r.invalidated = append(r.invalidated, userID)
	return nil
}

type stubDirectory struct {
	users map[string]*User
}

func (d stubDirectory) Get(_ context.Context, id string) (*User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (d stubDirectory) List(_ context.Context) ([]User, error) {
	accounts := make([]User, 0, len(d.users))
	for _, user := range d.users {
		accounts = append(accounts, *user)
	}
	return accounts, nil
}

type memTemplateRepo struct {
	templates map[string]*EmailTemplate
}

func (m *memTemplateRepo) UpsertTemplate(_ context.Context, tpl *EmailTemplate) error {
	if m.templates == nil {
		m.templates = map[string]*EmailTemplate{}
	}
	copied := *tpl
	m.templates[tpl.Key] = &copied
	return nil
}

func (m *memTemplateRepo) GetTemplate(_ context.Context, key string) (*EmailTemplate, error) {
	tpl, ok := m.templates[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (m *memTemplateRepo) ListTemplates(context.Context) ([]EmailTemplate, error) {
	var result []EmailTemplate
	for _, tpl := range m.templates {
		result = append(result, *tpl)
	}
	return result, nil
}

func (m *memTemplateRepo) DeleteTemplate(_ context.Context, key string) error {
	if _, ok := m.templates[key]; !ok {
		return shared.ErrNotFound
	}
	delete(m.templates, key)
	return nil
}

func newTestService(granter *stubGranter, invalidator *recordingInvalidator, auditRepo *memAuditRepo) *Service {
	directory := stubDirectory{users: map[string]*User{
		"u1": {ID: "u1", Email: "u1@example.com", Name: "One"},
	}}
	return NewService(&memTemplateRepo{}, fixedCounter{n: 12}, fixedCounter{n: 3},
		audit.NewService(auditRepo, nil), granter, invalidator, directory)
}

func TestOverviewFansOut(t *testing.T) {
	svc := newTestService(&stubGranter{}, &recordingInvalidator{}, &memAuditRepo{})

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, overview.UserCount)
	require.Equal(t, 3, overview.HouseCount)
	require.Equal(t, 0, overview.AuditEvents)
}

func TestOverviewPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&memTemplateRepo{}, fixedCounter{err: boom}, fixedCounter{n: 3},
		audit.NewService(&memAuditRepo{}, nil), &stubGranter{}, &recordingInvalidator{}, stubDirectory{})

	_, err := svc.Overview(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSetSystemRole(t *testing.T) {
	granter := &stubGranter{}
	invalidator := &recordingInvalidator{}
	auditRepo := &memAuditRepo{}
	svc := newTestService(granter, invalidator, auditRepo)

	err := svc.SetSystemRole(context.Background(), "admin", "u1", perm.SystemRoleSupportAdmin)
	require.NoError(t, err)
	require.Equal(t, perm.SystemRoleSupportAdmin, granter.systemRoles["u1"])
	require.Equal(t, []string{"u1"}, invalidator.invalidated)
	require.Len(t, auditRepo.events, 1)
	require.Equal(t, audit.ActionSystemRoleChanged, auditRepo.events[0].Action)
}

func TestSetSystemRoleUnknownUser(t *testing.T) {
	svc := newTestService(&stubGranter{}, &recordingInvalidator{}, &memAuditRepo{})

	err := svc.SetSystemRole(context.Background(), "admin", "ghost", perm.SystemRoleSuperAdmin)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordImpersonation(t *testing.T) {
	auditRepo := &memAuditRepo{}
	svc := newTestService(&stubGranter{}, &recordingInvalidator{}, auditRepo)

	svc.RecordImpersonation(context.Background(), "admin", "u1", true)
	svc.RecordImpersonation(context.Background(), "admin", "u1", false)

	require.Len(t, auditRepo.events, 2)
	require.Equal(t, audit.ActionImpersonationStart, auditRepo.events[0].Action)
	require.Equal(t, audit.ActionImpersonationStop, auditRepo.events[1].Action)
}

func TestTemplateRoundTrip(t *testing.T) {
	svc := newTestService(&stubGranter{}, &recordingInvalidator{}, &memAuditRepo{})

	tpl, err := svc.SaveTemplate(context.Background(), "admin", TemplateInvite,
		"You are invited", "Hi {{.Name}}, join {{.House}}.")
	require.NoError(t, err)
	require.Equal(t, "admin", tpl.UpdatedBy)

	loaded, err := svc.Template(context.Background(), TemplateInvite)
	require.NoError(t, err)
	require.Equal(t, "You are invited", loaded.Subject)

	require.NoError(t, svc.DeleteTemplate(context.Background(), TemplateInvite))
	_, err = svc.Template(context.Background(), TemplateInvite)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
