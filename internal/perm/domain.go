// Package perm implements role based access control for the platform: the
// role taxonomy, the static capability tables, the pure resolver that turns
// a user's roles into a concrete permission set, and the role store that
// loads role records from Postgres with an optional Redis cache in front.
package perm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRoleFetchFailed indicates the role record could not be read from the
	// backing store. Callers must treat this as a denial, never as an allow.
	ErrRoleFetchFailed = errors.New("perm: role fetch failed")

	// ErrInvalidRole indicates a stored role string that does not match any
	// known role. It belongs to the same fail-closed class as a fetch
	// failure and is reported for out-of-band correction.
	ErrInvalidRole = fmt.Errorf("%w: invalid role value", ErrRoleFetchFailed)
)

// SystemRole is a user's single, global platform role.
type SystemRole string

const (
	SystemRoleSuperAdmin   SystemRole = "super_admin"
	SystemRoleSupportAdmin SystemRole = "support_admin"
	SystemRoleRegularUser  SystemRole = "regular_user"
)

// ParseSystemRole validates a stored system role string.
func ParseSystemRole(value string) (SystemRole, error) {
	switch SystemRole(value) {
	case SystemRoleSuperAdmin, SystemRoleSupportAdmin, SystemRoleRegularUser:
		return SystemRole(value), nil
	}
	return "", fmt.Errorf("%w: system role %q", ErrInvalidRole, value)
}

// HouseRole is a user's role within a single house. A user may hold at most
// one role per house; holding none is distinct from holding viewer.
type HouseRole string

const (
	HouseRoleViewer HouseRole = "viewer"
	HouseRoleMember HouseRole = "member"
	HouseRoleAdmin  HouseRole = "admin"
	HouseRoleOwner  HouseRole = "owner"
)

// houseRoleRank orders house roles by privilege. Unknown roles rank zero.
var houseRoleRank = map[HouseRole]int{
	HouseRoleViewer: 1,
	HouseRoleMember: 2,
	HouseRoleAdmin:  3,
	HouseRoleOwner:  4,
}

// AtLeast reports whether r meets or exceeds min in the privilege order
// viewer < member < admin < owner.
func (r HouseRole) AtLeast(min HouseRole) bool {
	return houseRoleRank[r] >= houseRoleRank[min]
}

// ParseHouseRole validates a stored house role string.
func ParseHouseRole(value string) (HouseRole, error) {
	switch HouseRole(value) {
	case HouseRoleViewer, HouseRoleMember, HouseRoleAdmin, HouseRoleOwner:
		return HouseRole(value), nil
	}
	return "", fmt.Errorf("%w: house role %q", ErrInvalidRole, value)
}

// RoleGrant records the current house role assignment for one house. A new
// grant replaces the previous one; history lives in the audit log.
type RoleGrant struct {
	Role      HouseRole `json:"role"`
	GrantedAt time.Time `json:"granted_at"`
	GrantedBy string    `json:"granted_by"`
}

// UserRoles is the persisted role record, one per user. A user without a
// record is not an error: it means regular_user with no house roles.
type UserRoles struct {
	UserID     string               `json:"user_id"`
	Email      string               `json:"email"`
	SystemRole SystemRole           `json:"system_role"`
	HouseRoles map[string]RoleGrant `json:"house_roles"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// RoleData is the stripped view of a role record handed to the resolver:
// grant metadata is irrelevant for resolution, only the role per house is.
type RoleData struct {
	SystemRole SystemRole           `json:"system_role"`
	HouseRoles map[string]HouseRole `json:"house_roles"`
}

// DefaultRoleData is the deny-by-default state used when no record exists.
func DefaultRoleData() RoleData {
	return RoleData{SystemRole: SystemRoleRegularUser, HouseRoles: map[string]HouseRole{}}
}

// HouseRole returns the role held for houseID, if any.
func (d RoleData) HouseRole(houseID string) (HouseRole, bool) {
	role, ok := d.HouseRoles[houseID]
	return role, ok
}

// MeetsHouseRole reports whether the role held for houseID meets or exceeds
// min. A user with no grant for the house never meets any threshold.
func (d RoleData) MeetsHouseRole(houseID string, min HouseRole) bool {
	role, ok := d.HouseRoles[houseID]
	return ok && role.AtLeast(min)
}

// Strip reduces a full role record to resolver input.
func (u UserRoles) Strip() RoleData {
	data := RoleData{SystemRole: u.SystemRole, HouseRoles: make(map[string]HouseRole, len(u.HouseRoles))}
	for houseID, grant := range u.HouseRoles {
		data.HouseRoles[houseID] = grant.Role
	}
	return data
}

// PermissionSet is the resolver output: one boolean per capability, always
// fully computed. The JSON field names are part of the API contract.
type PermissionSet struct {
	// System level.
	CanAccessAdminConsole   bool `json:"canAccessAdminConsole"`
	CanViewAllHouses        bool `json:"canViewAllHouses"`
	CanImpersonateUsers     bool `json:"canImpersonateUsers"`
	CanManageEmailTemplates bool `json:"canManageEmailTemplates"`

	// House management.
	CanManageHouse       bool `json:"canManageHouse"`
	CanDeleteHouse       bool `json:"canDeleteHouse"`
	CanEditHouseSettings bool `json:"canEditHouseSettings"`
	CanInviteMembers     bool `json:"canInviteMembers"`
	CanRemoveMembers     bool `json:"canRemoveMembers"`
	CanTransferOwnership bool `json:"canTransferOwnership"`

	// Bookings.
	CanCreateBooking    bool `json:"canCreateBooking"`
	CanEditOwnBooking   bool `json:"canEditOwnBooking"`
	CanDeleteAnyBooking bool `json:"canDeleteAnyBooking"`

	// Finances.
	CanViewFinances   bool `json:"canViewFinances"`
	CanEditBudget     bool `json:"canEditBudget"`
	CanManageInvoices bool `json:"canManageInvoices"`

	// Tasks.
	CanCreateTask    bool `json:"canCreateTask"`
	CanEditOwnTask   bool `json:"canEditOwnTask"`
	CanDeleteAnyTask bool `json:"canDeleteAnyTask"`
}
