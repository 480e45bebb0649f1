package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rolePtr(r DefaultRole) *DefaultRole { return &r }

func TestEffectivePermissions_UnionOfBaseAndExtra(t *testing.T) {
	g := Grant{
		DefaultRole: rolePtr(RoleHRRecruiter),
		Extra:       []Permission{PermCreateInternships},
	}

	perms := EffectivePermissions(g)

	for _, p := range defaultRolePermissions[RoleHRRecruiter] {
		require.True(t, perms.Has(p), "missing base permission %s", p)
	}
	require.True(t, perms.Has(PermCreateInternships))

	// Nothing outside the union.
	expected := RolePermissions(RoleHRRecruiter).Union(NewSet(PermCreateInternships))
	require.Equal(t, expected, perms)
}

func TestEffectivePermissions_NoBaseRoleYieldsExtraOnly(t *testing.T) {
	perms := EffectivePermissions(Grant{Extra: []Permission{PermViewMessages}})
	require.Len(t, perms, 1)
	require.True(t, perms.Has(PermViewMessages))
}

func TestEffectivePermissions_EmptyGrantYieldsEmptySet(t *testing.T) {
	require.Empty(t, EffectivePermissions(Grant{}))
}

func TestEffectivePermissions_CustomRoleUsesStoredSet(t *testing.T) {
	g := Grant{
		CustomPermissions: []Permission{PermViewApplications, PermSendMessages},
		Extra:             []Permission{PermViewApplications, PermViewCandidates},
	}

	perms := EffectivePermissions(g)
	require.Len(t, perms, 3)
	require.True(t, perms.Has(PermViewApplications))
	require.True(t, perms.Has(PermSendMessages))
	require.True(t, perms.Has(PermViewCandidates))
}

func TestHasPermission_RecruiterWithExtraInternshipGrant(t *testing.T) {
	g := Grant{
		DefaultRole: rolePtr(RoleHRRecruiter),
		Extra:       []Permission{PermCreateInternships},
	}

	require.True(t, HasPermission(g, PermCreateInternships))
	require.False(t, HasPermission(g, PermDeleteCompany))
}

func TestRolePermissions_OwnerHasEverything(t *testing.T) {
	perms := RolePermissions(RoleOwner)
	for _, p := range AllPermissions() {
		require.True(t, perms.Has(p), "owner missing %s", p)
	}
}

func TestRolePermissions_AdminLacksOnlyDeletionAndTransfer(t *testing.T) {
	perms := RolePermissions(RoleAdmin)
	require.False(t, perms.Has(PermDeleteCompany))
	require.False(t, perms.Has(PermTransferOwnership))
	for _, p := range AllPermissions() {
		if p == PermDeleteCompany || p == PermTransferOwnership {
			continue
		}
		require.True(t, perms.Has(p), "admin missing %s", p)
	}
}

func TestRolePermissions_ManagerInvitesButNeverManagesMembers(t *testing.T) {
	perms := RolePermissions(RoleHRManager)
	require.True(t, perms.Has(PermInviteMembers))
	require.False(t, perms.Has(PermManageMembers))
	require.False(t, perms.Has(PermChangeRoles))
}

func TestRolePermissions_ViewerIsReadOnly(t *testing.T) {
	perms := RolePermissions(RoleViewer)
	require.Len(t, perms, 2)
	require.True(t, perms.Has(PermViewCandidates))
	require.True(t, perms.Has(PermViewMessages))
}

func TestRolePermissions_MemberBaseline(t *testing.T) {
	perms := RolePermissions(RoleMember)
	require.Len(t, perms, 4)
	require.True(t, perms.Has(PermViewCandidates))
	require.True(t, perms.Has(PermViewApplications))
	require.True(t, perms.Has(PermSendMessages))
	require.True(t, perms.Has(PermViewMessages))
}

func TestCanManageRole_Hierarchy(t *testing.T) {
	all := []DefaultRole{RoleOwner, RoleAdmin, RoleHRManager, RoleHRRecruiter, RoleViewer, RoleMember}

	for _, target := range all {
		require.True(t, CanManageRole(RoleOwner, target), "owner must manage %s", target)
	}
	for _, target := range all {
		if target == RoleOwner {
			require.False(t, CanManageRole(RoleAdmin, target))
		} else {
			require.True(t, CanManageRole(RoleAdmin, target), "admin must manage %s", target)
		}
	}
	for _, manager := range []DefaultRole{RoleHRManager, RoleHRRecruiter, RoleViewer, RoleMember} {
		for _, target := range all {
			require.False(t, CanManageRole(manager, target), "%s must not manage %s", manager, target)
		}
	}
}

func TestDefaultRole_Assignable(t *testing.T) {
	require.False(t, RoleOwner.Assignable())
	require.True(t, RoleAdmin.Assignable())
	require.True(t, RoleMember.Assignable())
	require.False(t, DefaultRole("CEO").Assignable())
}

func TestSet_UnionDeduplicates(t *testing.T) {
	a := NewSet(PermViewMessages, PermSendMessages)
	b := NewSet(PermSendMessages, PermViewCandidates)

	u := a.Union(b)
	require.Len(t, u, 3)
	require.Equal(t, []Permission{PermSendMessages, PermViewCandidates, PermViewMessages}, u.Slice())
}
