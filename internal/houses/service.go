package houses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/cohaus/cohaus/internal/audit"
	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/users"
)

var (
	// ErrOwnerImmutable is returned when a call tries to demote or remove
	// the house owner directly; ownership only moves via transfer.
	ErrOwnerImmutable = errors.New("houses: owner role can only change via ownership transfer")
	// ErrNotAMember is returned when the target of a role change holds no
	// role in the house.
	ErrNotAMember = errors.New("houses: user is not a member of this house")
	// ErrOwnerGrantForbidden is returned when an invite or role change
	// names the owner role.
	ErrOwnerGrantForbidden = errors.New("houses: owner cannot be granted, use ownership transfer")
)

// RepositoryPort defines persistence operations for houses.
type RepositoryPort interface {
	Create(ctx context.Context, house *House) error
	GetByID(ctx context.Context, id string) (*House, error)
	ListByIDs(ctx context.Context, ids []string) ([]House, error)
	ListAll(ctx context.Context) ([]House, error)
	Update(ctx context.Context, house *House) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	ListMembers(ctx context.Context, houseID string) ([]Member, error)
}

// RoleInvalidator drops a user's cached role data after a grant mutation.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// UserDirectory is the slice of the users module needed for membership.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

// InviteMailer enqueues the invitation email sent on a new grant.
type InviteMailer interface {
	EnqueueInvite(ctx context.Context, to, houseName, inviterName string, role perm.HouseRole) error
}

// Service implements house and membership business rules.
type Service struct {
	repo        RepositoryPort
	granter     perm.Granter
	invalidator RoleInvalidator
	directory   UserDirectory
	auditor     *audit.Service
	mailer      InviteMailer

	// privacyFlags caches hide_finances per house; finance reads consult it
	// on every request.
	privacyFlags *gocache.Cache
}

// NewService builds a Service instance. mailer may be nil (invites are then
// granted silently, e.g. under test).
func NewService(repo RepositoryPort, granter perm.Granter, invalidator RoleInvalidator, directory UserDirectory, auditor *audit.Service, mailer InviteMailer) *Service {
	return &Service{
		repo:         repo,
		granter:      granter,
		invalidator:  invalidator,
		directory:    directory,
		auditor:      auditor,
		mailer:       mailer,
		privacyFlags: gocache.New(30*time.Second, time.Minute),
	}
}

// CreateInput carries the fields for a new house.
type CreateInput struct {
	Name         string
	Address      string
	Description  string
	ArrivalNotes string
	WifiName     string
	WifiPassword string
	HouseRules   string
}

// Create inserts a house and makes the creator its owner.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (*House, error) {
	actor, err := s.directory.Get(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("houses: load creator: %w", err)
	}

	house := &House{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Address:      strings.TrimSpace(input.Address),
		Description:  input.Description,
		ArrivalNotes: input.ArrivalNotes,
		WifiName:     input.WifiName,
		WifiPassword: input.WifiPassword,
		HouseRules:   input.HouseRules,
		CreatedBy:    actorID,
	}
	if err := s.repo.Create(ctx, house); err != nil {
		return nil, err
	}

	if err := s.granter.GrantHouseRole(ctx, actorID, actor.Email, house.ID, perm.HouseRoleOwner, actorID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, actorID)
	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionRoleGranted,
		EntityType: "house", EntityID: house.ID,
		Detail: fmt.Sprintf("owner granted to %s on house creation", actor.Email),
	})
	return house, nil
}

// Get returns a house by id.
func (s *Service) Get(ctx context.Context, houseID string) (*House, error) {
	return s.repo.GetByID(ctx, houseID)
}

// ListFor returns the houses visible to the caller: the ones they hold a
// role in, or every house when the caller may view all.
func (s *Service) ListFor(ctx context.Context, data perm.RoleData) ([]House, error) {
	if perm.Resolve(data, "", false).CanViewAllHouses {
		return s.repo.ListAll(ctx)
	}
	ids := make([]string, 0, len(data.HouseRoles))
	for houseID := range data.HouseRoles {
		ids = append(ids, houseID)
	}
	return s.repo.ListByIDs(ctx, ids)
}

// UpdateInput carries editable house settings. Nil fields stay unchanged.
type UpdateInput struct {
	Name         *string
	Address      *string
	Description  *string
	ArrivalNotes *string
	WifiName     *string
	WifiPassword *string
	HouseRules   *string
	HideFinances *bool
}

// Update applies settings changes.
func (s *Service) Update(ctx context.Context, houseID string, input UpdateInput) (*House, error) {
	house, err := s.repo.GetByID(ctx, houseID)
	if err != nil {
		return nil, err
	}
	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&house.Name, input.Name)
	applyString(&house.Address, input.Address)
	if input.Description != nil {
		house.Description = *input.Description
	}
	if input.ArrivalNotes != nil {
		house.ArrivalNotes = *input.ArrivalNotes
	}
	if input.WifiName != nil {
		house.WifiName = *input.WifiName
	}
	if input.WifiPassword != nil {
		house.WifiPassword = *input.WifiPassword
	}
	if input.HouseRules != nil {
		house.HouseRules = *input.HouseRules
	}
	if input.HideFinances != nil {
		house.HideFinances = *input.HideFinances
	}
	if err := s.repo.Update(ctx, house); err != nil {
		return nil, err
	}
	s.privacyFlags.Delete(houseID)
	return house, nil
}

// Delete removes the house and revokes every role granted for it.
func (s *Service) Delete(ctx context.Context, actorID, houseID string) error {
	if err := s.repo.Delete(ctx, houseID); err != nil {
		return err
	}
	affected, err := s.granter.RevokeHouseFromAll(ctx, houseID)
	if err != nil {
		return err
	}
	for _, userID := range affected {
		s.invalidate(ctx, userID)
	}
	s.privacyFlags.Delete(houseID)
	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionHouseDeleted,
		EntityType: "house", EntityID: houseID,
	})
	return nil
}

// HideFinances reports the house's privacy flag, served from a short-lived
// in-process cache because finance endpoints consult it on every request.
func (s *Service) HideFinances(ctx context.Context, houseID string) (bool, error) {
	if cached, ok := s.privacyFlags.Get(houseID); ok {
		return cached.(bool), nil
	}
	house, err := s.repo.GetByID(ctx, houseID)
	if err != nil {
		return false, err
	}
	s.privacyFlags.SetDefault(houseID, house.HideFinances)
	return house.HideFinances, nil
}

// Members lists the house membership.
func (s *Service) Members(ctx context.Context, houseID string) ([]Member, error) {
	return s.repo.ListMembers(ctx, houseID)
}

// Invite grants a role to an existing account identified by email and sends
// an invitation email. The owner role cannot be granted this way.
func (s *Service) Invite(ctx context.Context, actorID, houseID, email string, role perm.HouseRole) (*Member, error) {
	if role == perm.HouseRoleOwner {
		return nil, ErrOwnerGrantForbidden
	}
	house, err := s.repo.GetByID(ctx, houseID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	actor, err := s.directory.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.granter.GrantHouseRole(ctx, invitee.ID, invitee.Email, houseID, role, actorID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, invitee.ID)
	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionRoleGranted,
		EntityType: "house", EntityID: houseID,
		Detail: fmt.Sprintf("%s granted %s", invitee.Email, role),
	})

	if s.mailer != nil {
		if err := s.mailer.EnqueueInvite(ctx, invitee.Email, house.Name, actor.Name, role); err != nil {
			// The grant stands; the email is retried out of band or resent
			// manually.
			s.auditor.Record(ctx, audit.Event{
				ActorID: actorID, Action: audit.ActionRoleGranted,
				EntityType: "house", EntityID: houseID,
				Detail: fmt.Sprintf("invite email to %s failed to enqueue: %v", invitee.Email, err),
			})
		}
	}

	return &Member{UserID: invitee.ID, Email: invitee.Email, Name: invitee.Name, Role: role, GrantedBy: actorID}, nil
}

// ChangeRole updates an existing member's role. Owners are immutable here.
func (s *Service) ChangeRole(ctx context.Context, actorID, houseID, userID string, role perm.HouseRole) error {
	if role == perm.HouseRoleOwner {
		return ErrOwnerGrantForbidden
	}
	current, err := s.memberRole(ctx, houseID, userID)
	if err != nil {
		return err
	}
	if current == perm.HouseRoleOwner {
		return ErrOwnerImmutable
	}
	target, err := s.directory.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.granter.GrantHouseRole(ctx, userID, target.Email, houseID, role, actorID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionRoleGranted,
		EntityType: "house", EntityID: houseID,
		Detail: fmt.Sprintf("%s role changed to %s", target.Email, role),
	})
	return nil
}

// RemoveMember revokes a member's role. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actorID, houseID, userID string) error {
	current, err := s.memberRole(ctx, houseID, userID)
	if err != nil {
		return err
	}
	if current == perm.HouseRoleOwner {
		return ErrOwnerImmutable
	}
	if err := s.granter.RevokeHouseRole(ctx, userID, houseID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionRoleRevoked,
		EntityType: "house", EntityID: houseID,
		Detail: fmt.Sprintf("role revoked for user %s", userID),
	})
	return nil
}

// TransferOwnership makes newOwnerID the owner and demotes the previous
// owner to admin. The new owner must already be a member of the house.
func (s *Service) TransferOwnership(ctx context.Context, actorID, houseID, newOwnerID string) error {
	members, err := s.repo.ListMembers(ctx, houseID)
	if err != nil {
		return err
	}

	var newOwner, oldOwner *Member
	for i := range members {
		switch {
		case members[i].UserID == newOwnerID:
			newOwner = &members[i]
		case members[i].Role == perm.HouseRoleOwner:
			oldOwner = &members[i]
		}
	}
	if newOwner == nil {
		return ErrNotAMember
	}
	if newOwner.Role == perm.HouseRoleOwner {
		return nil // already the owner
	}

	if err := s.granter.GrantHouseRole(ctx, newOwner.UserID, newOwner.Email, houseID, perm.HouseRoleOwner, actorID); err != nil {
		return err
	}
	s.invalidate(ctx, newOwner.UserID)

	if oldOwner != nil {
		if err := s.granter.GrantHouseRole(ctx, oldOwner.UserID, oldOwner.Email, houseID, perm.HouseRoleAdmin, actorID); err != nil {
			return err
		}
		s.invalidate(ctx, oldOwner.UserID)
	}

	s.auditor.Record(ctx, audit.Event{
		ActorID: actorID, Action: audit.ActionOwnershipTransfer,
		EntityType: "house", EntityID: houseID,
		Detail: fmt.Sprintf("ownership transferred to %s", newOwner.Email),
	})
	return nil
}

// Count returns the number of houses.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) memberRole(ctx context.Context, houseID, userID string) (perm.HouseRole, error) {
	members, err := s.repo.ListMembers(ctx, houseID)
	if err != nil {
		return "", err
	}
	for _, member := range members {
		if member.UserID == userID {
			return member.Role, nil
		}
	}
	return "", ErrNotAMember
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.invalidator == nil {
		return
	}
	// Cache invalidation failure only extends staleness to the TTL bound.
	_ = s.invalidator.Invalidate(ctx, userID)
}
