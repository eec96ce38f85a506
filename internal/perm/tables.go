package perm

// Capability is a closed enum of fine-grained actions. Adding a capability
// means adding a constant here, a PermissionSet field, and table entries;
// the compiler catches anything referencing an unknown capability.
type Capability int

const (
	CapAccessAdminConsole Capability = iota
	CapViewAllHouses
	CapImpersonateUsers
	CapManageEmailTemplates

	CapManageHouse
	CapDeleteHouse
	CapEditHouseSettings
	CapInviteMembers
	CapRemoveMembers
	CapTransferOwnership

	CapCreateBooking
	CapEditOwnBooking
	CapDeleteAnyBooking

	CapViewFinances
	CapEditBudget
	CapManageInvoices

	CapCreateTask
	CapEditOwnTask
	CapDeleteAnyTask
)

// capabilities lists every capability, in PermissionSet field order.
var capabilities = []Capability{
	CapAccessAdminConsole,
	CapViewAllHouses,
	CapImpersonateUsers,
	CapManageEmailTemplates,
	CapManageHouse,
	CapDeleteHouse,
	CapEditHouseSettings,
	CapInviteMembers,
	CapRemoveMembers,
	CapTransferOwnership,
	CapCreateBooking,
	CapEditOwnBooking,
	CapDeleteAnyBooking,
	CapViewFinances,
	CapEditBudget,
	CapManageInvoices,
	CapCreateTask,
	CapEditOwnTask,
	CapDeleteAnyTask,
}

var capabilityNames = map[Capability]string{
	CapAccessAdminConsole:   "access_admin_console",
	CapViewAllHouses:        "view_all_houses",
	CapImpersonateUsers:     "impersonate_users",
	CapManageEmailTemplates: "manage_email_templates",
	CapManageHouse:          "manage_house",
	CapDeleteHouse:          "delete_house",
	CapEditHouseSettings:    "edit_house_settings",
	CapInviteMembers:        "invite_members",
	CapRemoveMembers:        "remove_members",
	CapTransferOwnership:    "transfer_ownership",
	CapCreateBooking:        "create_booking",
	CapEditOwnBooking:       "edit_own_booking",
	CapDeleteAnyBooking:     "delete_any_booking",
	CapViewFinances:         "view_finances",
	CapEditBudget:           "edit_budget",
	CapManageInvoices:       "manage_invoices",
	CapCreateTask:           "create_task",
	CapEditOwnTask:          "edit_own_task",
	CapDeleteAnyTask:        "delete_any_task",
}

// String returns the snake_case capability name used in logs and metrics.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

type capSet map[Capability]bool

func setOf(caps ...Capability) capSet {
	set := make(capSet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

func allCapabilities() capSet {
	return setOf(capabilities...)
}

// systemGrants maps a system role to the capabilities it grants on its own,
// independent of any house role. super_admin is a universal override;
// support_admin gets a narrow read-only slice for support tooling.
var systemGrants = map[SystemRole]capSet{
	SystemRoleSuperAdmin:   allCapabilities(),
	SystemRoleSupportAdmin: setOf(CapViewAllHouses),
	SystemRoleRegularUser:  {},
}

// houseGrants maps a house role to the capabilities it grants within that
// house. Each role's set is a superset of the one below it.
//
// Viewers still get edit_own_task: any house role at all carries it. The
// booking capabilities distinguish own from any, the task ones do not; that
// asymmetry is preserved deliberately (see DESIGN.md).
var houseGrants = map[HouseRole]capSet{
	HouseRoleOwner: setOf(
		CapManageHouse, CapDeleteHouse, CapEditHouseSettings,
		CapInviteMembers, CapRemoveMembers, CapTransferOwnership,
		CapCreateBooking, CapEditOwnBooking, CapDeleteAnyBooking,
		CapViewFinances, CapEditBudget, CapManageInvoices,
		CapCreateTask, CapEditOwnTask, CapDeleteAnyTask,
	),
	HouseRoleAdmin: setOf(
		CapManageHouse, CapEditHouseSettings,
		CapInviteMembers, CapRemoveMembers,
		CapCreateBooking, CapEditOwnBooking, CapDeleteAnyBooking,
		CapViewFinances, CapEditBudget, CapManageInvoices,
		CapCreateTask, CapEditOwnTask, CapDeleteAnyTask,
	),
	HouseRoleMember: setOf(
		CapCreateBooking, CapEditOwnBooking,
		CapViewFinances,
		CapCreateTask, CapEditOwnTask,
	),
	HouseRoleViewer: setOf(
		CapEditOwnTask,
	),
}
