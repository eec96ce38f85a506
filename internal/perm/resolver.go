package perm

// Resolve computes the complete permission set for a user in the context of
// one house. houseID may be empty for system-only checks; in that case no
// house-scoped capability can come from a house role. hideFinances is the
// house's privacy flag and only matters when the resolved house role is
// exactly member.
//
// The function is pure and total: identical inputs produce identical
// output, and every field has a defined value (all-false is valid).
func Resolve(data RoleData, houseID string, hideFinances bool) PermissionSet {
	sys := systemGrants[data.SystemRole]

	var house capSet
	var role HouseRole
	hasRole := false
	if houseID != "" {
		if r, ok := data.HouseRoles[houseID]; ok {
			role = r
			hasRole = true
			house = houseGrants[r]
		}
	}

	// Grants are additive: either source saying yes wins.
	allow := func(c Capability) bool {
		return sys[c] || house[c]
	}

	set := PermissionSet{
		CanAccessAdminConsole:   allow(CapAccessAdminConsole),
		CanViewAllHouses:        allow(CapViewAllHouses),
		CanImpersonateUsers:     allow(CapImpersonateUsers),
		CanManageEmailTemplates: allow(CapManageEmailTemplates),

		CanManageHouse:       allow(CapManageHouse),
		CanDeleteHouse:       allow(CapDeleteHouse),
		CanEditHouseSettings: allow(CapEditHouseSettings),
		CanInviteMembers:     allow(CapInviteMembers),
		CanRemoveMembers:     allow(CapRemoveMembers),
		CanTransferOwnership: allow(CapTransferOwnership),

		CanCreateBooking:    allow(CapCreateBooking),
		CanEditOwnBooking:   allow(CapEditOwnBooking),
		CanDeleteAnyBooking: allow(CapDeleteAnyBooking),

		CanViewFinances:   allow(CapViewFinances),
		CanEditBudget:     allow(CapEditBudget),
		CanManageInvoices: allow(CapManageInvoices),

		CanCreateTask:    allow(CapCreateTask),
		CanEditOwnTask:   allow(CapEditOwnTask),
		CanDeleteAnyTask: allow(CapDeleteAnyTask),
	}

	// Privacy override: an owner or admin can hide house finances from
	// plain members. Admin-class system roles are never affected.
	if hideFinances && hasRole && role == HouseRoleMember && data.SystemRole == SystemRoleRegularUser {
		set.CanViewFinances = false
	}

	return set
}
