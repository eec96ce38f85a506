package perm

import (
	"errors"
	"testing"
)

func TestHouseRoleAtLeast(t *testing.T) {
	cases := []struct {
		role HouseRole
		min  HouseRole
		want bool
	}{
		{HouseRoleOwner, HouseRoleViewer, true},
		{HouseRoleOwner, HouseRoleOwner, true},
		{HouseRoleAdmin, HouseRoleOwner, false},
		{HouseRoleMember, HouseRoleAdmin, false},
		{HouseRoleMember, HouseRoleMember, true},
		{HouseRoleViewer, HouseRoleMember, false},
		{HouseRole("bogus"), HouseRoleViewer, false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tc.role, tc.min, got, tc.want)
		}
	}
}

func TestMeetsHouseRoleWithoutGrant(t *testing.T) {
	data := roleDataFor("h1", HouseRoleAdmin)
	if data.MeetsHouseRole("h2", HouseRoleViewer) {
		t.Fatal("user without a grant must not meet any threshold")
	}
	if !data.MeetsHouseRole("h1", HouseRoleMember) {
		t.Fatal("admin should meet the member threshold")
	}
}

func TestParseRejectsUnknownRoles(t *testing.T) {
	if _, err := ParseSystemRole("root"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := ParseHouseRole("manager"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	// Invalid roles are fetch-failure class: callers fail closed on them.
	if _, err := ParseHouseRole("manager"); !errors.Is(err, ErrRoleFetchFailed) {
		t.Fatalf("expected ErrRoleFetchFailed class, got %v", err)
	}
}

func TestStripDropsGrantMetadata(t *testing.T) {
	record := UserRoles{
		UserID:     "u1",
		SystemRole: SystemRoleRegularUser,
		HouseRoles: map[string]RoleGrant{
			"h1": {Role: HouseRoleOwner, GrantedBy: "u0"},
		},
	}
	data := record.Strip()
	if data.HouseRoles["h1"] != HouseRoleOwner {
		t.Fatalf("expected owner, got %s", data.HouseRoles["h1"])
	}
}

func TestHouseTableSupersets(t *testing.T) {
	// Each house role's grant set must contain the one below it; the
	// resolver's monotonicity property depends on the table staying that way.
	order := []HouseRole{HouseRoleViewer, HouseRoleMember, HouseRoleAdmin, HouseRoleOwner}
	for i := 1; i < len(order); i++ {
		lower, higher := houseGrants[order[i-1]], houseGrants[order[i]]
		for c := range lower {
			if lower[c] && !higher[c] {
				t.Errorf("%s grants %s but %s does not", order[i-1], c, order[i])
			}
		}
	}
}
