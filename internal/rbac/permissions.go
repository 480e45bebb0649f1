package rbac

// Permission is an atomic capability tag. The full set is fixed and versioned
// with the system; no code path may special-case a permission outside it.
type Permission string

const (
	PermCreateInternships Permission = "CREATE_INTERNSHIPS"
	PermEditInternships   Permission = "EDIT_INTERNSHIPS"
	PermDeleteInternships Permission = "DELETE_INTERNSHIPS"

	PermViewApplications   Permission = "VIEW_APPLICATIONS"
	PermReviewApplications Permission = "REVIEW_APPLICATIONS"

	PermScheduleInterviews Permission = "SCHEDULE_INTERVIEWS"
	PermManageInterviews   Permission = "MANAGE_INTERVIEWS"

	PermViewCandidates   Permission = "VIEW_CANDIDATES"
	PermAssignCandidates Permission = "ASSIGN_CANDIDATES"

	PermSendMessages Permission = "SEND_MESSAGES"
	PermViewMessages Permission = "VIEW_MESSAGES"

	PermInviteMembers     Permission = "INVITE_MEMBERS"
	PermManageMembers     Permission = "MANAGE_MEMBERS"
	PermChangeRoles       Permission = "CHANGE_ROLES"
	PermManageCustomRoles Permission = "MANAGE_CUSTOM_ROLES"

	PermEditCompany       Permission = "EDIT_COMPANY"
	PermDeleteCompany     Permission = "DELETE_COMPANY"
	PermTransferOwnership Permission = "TRANSFER_OWNERSHIP"
)

// allPermissions lists every permission in the system, in declaration order.
var allPermissions = []Permission{
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
	PermDeleteCompany,
	PermTransferOwnership,
}

// AllPermissions returns a copy of the full permission list.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// IsValid reports whether p is a known permission.
func (p Permission) IsValid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}
