package companies

import (
	"testing"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/stretchr/testify/require"
)

func memberWithRole(role rbac.DefaultRole) *Member {
	return &Member{ID: uuid.New(), DefaultRole: &role, Status: StatusActive}
}

func memberWithCustomRole() *Member {
	roleID := uuid.New()
	return &Member{ID: uuid.New(), CustomRoleID: &roleID, Status: StatusActive}
}

func TestCanManageMember_OwnerManagesEveryone(t *testing.T) {
	owner := memberWithRole(rbac.RoleOwner)

	for _, role := range []rbac.DefaultRole{
		rbac.RoleAdmin, rbac.RoleHRManager, rbac.RoleHRRecruiter, rbac.RoleViewer, rbac.RoleMember,
	} {
		require.True(t, canManageMember(owner, memberWithRole(role)), string(role))
	}
	require.True(t, canManageMember(owner, memberWithCustomRole()))
}

func TestCanManageMember_AdminCannotManageOwner(t *testing.T) {
	admin := memberWithRole(rbac.RoleAdmin)

	require.False(t, canManageMember(admin, memberWithRole(rbac.RoleOwner)))
	require.True(t, canManageMember(admin, memberWithRole(rbac.RoleHRManager)))
	require.True(t, canManageMember(admin, memberWithCustomRole()))
}

func TestCanManageMember_NonAdminRolesManageNoOne(t *testing.T) {
	for _, role := range []rbac.DefaultRole{
		rbac.RoleHRManager, rbac.RoleHRRecruiter, rbac.RoleViewer, rbac.RoleMember,
	} {
		actor := memberWithRole(role)
		require.False(t, canManageMember(actor, memberWithRole(rbac.RoleMember)), string(role))
	}
}

func TestCanManageMember_CustomRoleActorManagesNoOne(t *testing.T) {
	actor := memberWithCustomRole()
	require.False(t, canManageMember(actor, memberWithRole(rbac.RoleMember)))
}

func TestRoleChange_Validate(t *testing.T) {
	admin := rbac.RoleAdmin
	owner := rbac.RoleOwner
	bogus := rbac.DefaultRole("SUPERUSER")
	roleID := uuid.New()

	require.NoError(t, RoleChange{DefaultRole: &admin}.validate())
	require.NoError(t, RoleChange{CustomRoleID: &roleID}.validate())

	// Exactly one of default role / custom role.
	require.ErrorIs(t, RoleChange{}.validate(), ErrInvalidRole)
	require.ErrorIs(t, RoleChange{DefaultRole: &admin, CustomRoleID: &roleID}.validate(), ErrInvalidRole)

	require.ErrorIs(t, RoleChange{DefaultRole: &bogus}.validate(), ErrInvalidRole)
	require.ErrorIs(t, RoleChange{DefaultRole: &owner}.validate(), ErrCannotManageOwner)
}

func TestMemberGrant_CustomRolePermissionsOnlyWhenReferenced(t *testing.T) {
	m := memberWithRole(rbac.RoleViewer)
	m.ExtraPermissions = []string{string(rbac.PermSendMessages)}

	g := m.Grant([]string{string(rbac.PermCreateInternships)})
	require.Nil(t, g.CustomPermissions)

	set := rbac.EffectivePermissions(g)
	require.True(t, set.Has(rbac.PermSendMessages))
	require.False(t, set.Has(rbac.PermCreateInternships))

	cm := memberWithCustomRole()
	cg := cm.Grant([]string{string(rbac.PermCreateInternships)})
	cset := rbac.EffectivePermissions(cg)
	require.True(t, cset.Has(rbac.PermCreateInternships))
}
