package perm

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allFields(set PermissionSet) []bool {
	value := reflect.ValueOf(set)
	fields := make([]bool, 0, value.NumField())
	for i := 0; i < value.NumField(); i++ {
		fields = append(fields, value.Field(i).Bool())
	}
	return fields
}

func TestResolveDefaultDeny(t *testing.T) {
	set := Resolve(DefaultRoleData(), "house-1", false)
	for i, granted := range allFields(set) {
		assert.False(t, granted, "field %d should be denied for a user without a role record", i)
	}
}

func TestResolveSuperAdminUniversal(t *testing.T) {
	data := RoleData{SystemRole: SystemRoleSuperAdmin, HouseRoles: map[string]HouseRole{}}

	for _, houseID := range []string{"", "house-1", "house-never-seen"} {
		set := Resolve(data, houseID, true)
		for i, granted := range allFields(set) {
			assert.True(t, granted, "field %d should be granted for super_admin (house %q)", i, houseID)
		}
	}
}

func TestResolveRoleMonotonicity(t *testing.T) {
	order := []HouseRole{HouseRoleViewer, HouseRoleMember, HouseRoleAdmin, HouseRoleOwner}

	for i := 1; i < len(order); i++ {
		lower := Resolve(roleDataFor("h1", order[i-1]), "h1", false)
		higher := Resolve(roleDataFor("h1", order[i]), "h1", false)

		lowerFields := allFields(lower)
		higherFields := allFields(higher)
		for f := range lowerFields {
			if lowerFields[f] {
				assert.True(t, higherFields[f],
					"%s grants field %d but %s does not", order[i-1], f, order[i])
			}
		}
	}
}

func TestResolveFinancePrivacyOverride(t *testing.T) {
	cases := []struct {
		name         string
		role         HouseRole
		hideFinances bool
		want         bool
	}{
		{"member hidden", HouseRoleMember, true, false},
		{"member visible", HouseRoleMember, false, true},
		{"admin hidden", HouseRoleAdmin, true, true},
		{"owner hidden", HouseRoleOwner, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := Resolve(roleDataFor("h1", tc.role), "h1", tc.hideFinances)
			assert.Equal(t, tc.want, set.CanViewFinances)
		})
	}
}

func TestResolveFinancePrivacyIgnoresOtherHouses(t *testing.T) {
	// The flag belongs to the house being resolved; a member of h1 with the
	// flag raised on h1 is unaffected when resolving h2 where they are admin.
	data := RoleData{
		SystemRole: SystemRoleRegularUser,
		HouseRoles: map[string]HouseRole{"h1": HouseRoleMember, "h2": HouseRoleAdmin},
	}
	assert.False(t, Resolve(data, "h1", true).CanViewFinances)
	assert.True(t, Resolve(data, "h2", true).CanViewFinances)
}

func TestResolveSuperAdminUnaffectedByPrivacyFlag(t *testing.T) {
	data := RoleData{
		SystemRole: SystemRoleSuperAdmin,
		HouseRoles: map[string]HouseRole{"h1": HouseRoleMember},
	}
	assert.True(t, Resolve(data, "h1", true).CanViewFinances)
}

func TestResolveNoHouseRoleNoHouseCapability(t *testing.T) {
	// Grants for other houses must not leak into h2.
	data := roleDataFor("h1", HouseRoleOwner)

	set := Resolve(data, "h2", false)
	assert.False(t, set.CanManageHouse)
	assert.False(t, set.CanDeleteHouse)
	assert.False(t, set.CanEditHouseSettings)
	assert.False(t, set.CanInviteMembers)
	assert.False(t, set.CanRemoveMembers)
	assert.False(t, set.CanTransferOwnership)
	assert.False(t, set.CanCreateBooking)
	assert.False(t, set.CanEditOwnBooking)
	assert.False(t, set.CanDeleteAnyBooking)
	assert.False(t, set.CanViewFinances)
	assert.False(t, set.CanEditBudget)
	assert.False(t, set.CanManageInvoices)
	assert.False(t, set.CanCreateTask)
	assert.False(t, set.CanEditOwnTask)
	assert.False(t, set.CanDeleteAnyTask)
}

func TestResolveIdempotent(t *testing.T) {
	data := RoleData{
		SystemRole: SystemRoleSupportAdmin,
		HouseRoles: map[string]HouseRole{"h1": HouseRoleMember, "h2": HouseRoleOwner},
	}
	first := Resolve(data, "h1", true)
	second := Resolve(data, "h1", true)
	require.Equal(t, first, second)
}

func TestResolveOwnerScenario(t *testing.T) {
	data := roleDataFor("h1", HouseRoleOwner)

	set := Resolve(data, "h1", false)
	assert.True(t, set.CanManageHouse)
	assert.True(t, set.CanDeleteHouse)
	assert.True(t, set.CanInviteMembers)
	assert.True(t, set.CanTransferOwnership)
	assert.False(t, set.CanAccessAdminConsole, "owner of a house is not a platform admin")
}

func TestResolveMemberScenario(t *testing.T) {
	set := Resolve(roleDataFor("h1", HouseRoleMember), "h1", false)
	assert.True(t, set.CanViewFinances)
	assert.True(t, set.CanCreateBooking)
	assert.False(t, set.CanEditBudget)
	assert.False(t, set.CanManageHouse)
	assert.False(t, set.CanDeleteAnyBooking)
}

func TestResolveSupportAdminScenario(t *testing.T) {
	data := RoleData{SystemRole: SystemRoleSupportAdmin, HouseRoles: map[string]HouseRole{}}

	set := Resolve(data, "h1", false)
	assert.True(t, set.CanViewAllHouses)
	assert.False(t, set.CanManageHouse)
	assert.False(t, set.CanAccessAdminConsole)
	assert.False(t, set.CanViewFinances)
}

func TestResolveViewerKeepsEditOwnTask(t *testing.T) {
	// Any house role at all carries edit_own_task, viewer included.
	set := Resolve(roleDataFor("h1", HouseRoleViewer), "h1", false)
	assert.True(t, set.CanEditOwnTask)
	assert.False(t, set.CanCreateTask)
	assert.False(t, set.CanCreateBooking)
}

func TestResolveSystemOnlyCheck(t *testing.T) {
	// Empty house id: house grants cannot apply even if grants exist.
	set := Resolve(roleDataFor("h1", HouseRoleOwner), "", false)
	assert.False(t, set.CanManageHouse)
	assert.False(t, set.CanViewFinances)
}

func roleDataFor(houseID string, role HouseRole) RoleData {
	return RoleData{
		SystemRole: SystemRoleRegularUser,
		HouseRoles: map[string]HouseRole{houseID: role},
	}
}
