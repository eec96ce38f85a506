package admin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cohaus/cohaus/internal/audit"
	"github.com/cohaus/cohaus/internal/perm"
)

// Counter is any module exposing a total count, used by the overview
// fan-out.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// RoleInvalidator drops a user's cached role data after a mutation.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Directory is the slice of the users module the console needs.
type Directory interface {
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// User mirrors the fields the console shows; the users module satisfies
// Directory through an adapter in the app wiring.
type User struct {
	ID    string
	Email string
	Name  string
}

// RepositoryPort is the persistence contract for templates.
type RepositoryPort interface {
	UpsertTemplate(ctx context.Context, tpl *EmailTemplate) error
	GetTemplate(ctx context.Context, key string) (*EmailTemplate, error)
	ListTemplates(ctx context.Context) ([]EmailTemplate, error)
	DeleteTemplate(ctx context.Context, key string) error
}

// Service implements the operator console: overview numbers, system role
// administration, and the email template store.
type Service struct {
	repo        RepositoryPort
	users       Counter
	houses      Counter
	auditSvc    *audit.Service
	granter     perm.Granter
	invalidator RoleInvalidator
	directory   Directory
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, users, houses Counter, auditSvc *audit.Service, granter perm.Granter, invalidator RoleInvalidator, directory Directory) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		houses:      houses,
		auditSvc:    auditSvc,
		granter:     granter,
		invalidator: invalidator,
		directory:   directory,
	}
}

// Overview gathers the console landing numbers concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var overview Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.Count(ctx)
		overview.UserCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.houses.Count(ctx)
		overview.HouseCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.auditSvc.Count(ctx)
		overview.AuditEvents = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("admin overview: %w", err)
	}
	return &overview, nil
}

// Users lists every account for the console user table.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	return s.directory.List(ctx)
}

// SetSystemRole changes a user's platform-wide role, invalidates their
// cached permissions and records the change.
func (s *Service) SetSystemRole(ctx context.Context, actorID, userID string, role perm.SystemRole) error {
	user, err := s.directory.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.granter.SetSystemRole(ctx, user.ID, user.Email, role); err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate role cache: %w", err)
	}
	s.auditSvc.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     audit.ActionSystemRoleChanged,
		EntityType: "user",
		EntityID:   userID,
		Detail:     string(role),
	})
	return nil
}

// RecordImpersonation logs the start or stop of an assumed identity.
func (s *Service) RecordImpersonation(ctx context.Context, actorID, targetID string, started bool) {
	action := audit.ActionImpersonationStop
	if started {
		action = audit.ActionImpersonationStart
	}
	s.auditSvc.Record(ctx, audit.Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: "user",
		EntityID:   targetID,
	})
}

// Timeline pages through the audit log.
func (s *Service) Timeline(ctx context.Context, page, perPage int) (audit.Result, error) {
	return s.auditSvc.Timeline(ctx, page, perPage)
}

// SaveTemplate creates or replaces an email template.
func (s *Service) SaveTemplate(ctx context.Context, actorID, key, subject, body string) (*EmailTemplate, error) {
	tpl := &EmailTemplate{Key: key, Subject: subject, Body: body, UpdatedBy: actorID}
	if err := s.repo.UpsertTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return s.repo.GetTemplate(ctx, key)
}

// Template fetches one template.
func (s *Service) Template(ctx context.Context, key string) (*EmailTemplate, error) {
	return s.repo.GetTemplate(ctx, key)
}

// Templates lists all templates.
func (s *Service) Templates(ctx context.Context) ([]EmailTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, key string) error {
	return s.repo.DeleteTemplate(ctx, key)
}
