package rbac

// DefaultRole is one of the fixed built-in roles a company member can hold.
type DefaultRole string

const (
	RoleOwner       DefaultRole = "OWNER"
	RoleAdmin       DefaultRole = "ADMIN"
	RoleHRManager   DefaultRole = "HR_MANAGER"
	RoleHRRecruiter DefaultRole = "HR_RECRUITER"
	RoleViewer      DefaultRole = "VIEWER"
	RoleMember      DefaultRole = "MEMBER"
)

// IsValid reports whether r is a known default role.
func (r DefaultRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleHRManager, RoleHRRecruiter, RoleViewer, RoleMember:
		return true
	}
	return false
}

// Assignable reports whether r may be granted through the invite path.
// Ownership is transferred, never invited.
func (r DefaultRole) Assignable() bool {
	return r.IsValid() && r != RoleOwner
}

// defaultRolePermissions is the single source of truth mapping each default
// role to its fixed permission set.
var defaultRolePermissions = map[DefaultRole][]Permission{
	RoleOwner: allPermissions,
	RoleAdmin: {
		PermCreateInternships,
		PermEditInternships,
		PermDeleteInternships,
		PermViewApplications,
		PermReviewApplications,
		PermScheduleInterviews,
		PermManageInterviews,
		PermViewCandidates,
		PermAssignCandidates,
		PermSendMessages,
		PermViewMessages,
		PermInviteMembers,
		PermManageMembers,
		PermChangeRoles,
		PermManageCustomRoles,
		PermEditCompany,
	},
	RoleHRManager: {
		PermCreateInternships,
		PermEditInternships,
		PermDeleteInternships,
		PermViewApplications,
		PermReviewApplications,
		PermScheduleInterviews,
		PermManageInterviews,
		PermViewCandidates,
		PermAssignCandidates,
		PermSendMessages,
		PermViewMessages,
		PermInviteMembers,
	},
	RoleHRRecruiter: {
		PermViewApplications,
		PermReviewApplications,
		PermViewCandidates,
		PermScheduleInterviews,
		PermSendMessages,
		PermViewMessages,
	},
	RoleViewer: {
		PermViewCandidates,
		PermViewMessages,
	},
	RoleMember: {
		PermViewCandidates,
		PermViewApplications,
		PermSendMessages,
		PermViewMessages,
	},
}

// RolePermissions returns the permission set for a default role. Unknown
// roles yield the empty set.
func RolePermissions(role DefaultRole) Set {
	return NewSet(defaultRolePermissions[role]...)
}

// CanManageRole reports whether a member holding managerRole may change the
// role of, or remove, a member holding targetRole. OWNER manages everyone;
// ADMIN manages everyone except OWNER; every other role manages no one.
// Checked in addition to the acting member's explicit permission.
func CanManageRole(managerRole, targetRole DefaultRole) bool {
	switch managerRole {
	case RoleOwner:
		return true
	case RoleAdmin:
		return targetRole != RoleOwner
	default:
		return false
	}
}
