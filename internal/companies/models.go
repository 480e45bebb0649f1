package companies

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
)

// MemberStatus is the lifecycle state of a company membership.
type MemberStatus string

const (
	StatusPending MemberStatus = "PENDING"
	StatusActive  MemberStatus = "ACTIVE"
	StatusRemoved MemberStatus = "REMOVED"
)

var (
	// ErrCompanyNotFound is returned when a company is not found
	ErrCompanyNotFound = errors.New("company not found")

	// ErrSlugConflict is returned when a company slug already exists
	ErrSlugConflict = errors.New("company slug already exists")

	// ErrNotMember is returned when a user is not an active member of a company
	ErrNotMember = errors.New("user is not a member of this company")

	// ErrMemberNotFound is returned when a target member does not exist
	ErrMemberNotFound = errors.New("member not found")

	// ErrInsufficientPermissions is returned when a member lacks a required permission
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrInvalidRole is returned for an unknown default role
	ErrInvalidRole = errors.New("invalid role")

	// ErrCannotManageOwner is returned when a role change or removal targets the owner
	ErrCannotManageOwner = errors.New("owner can only be changed via ownership transfer")

	// ErrCustomRoleNotFound is returned when a custom role does not exist in the company
	ErrCustomRoleNotFound = errors.New("custom role not found")

	// ErrCustomRoleInUse is returned when deleting a custom role that members still reference
	ErrCustomRoleInUse = errors.New("custom role is still assigned to members")

	// ErrAlreadyMember is returned when a user already holds an active membership somewhere
	ErrAlreadyMember = errors.New("user already has an active company membership")
)

// Company represents a company account on the platform. The join_code columns
// carry the shared self-join secret and its limits.
type Company struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	Slug            string    `db:"slug"`
	About           string    `db:"about"`
	CreatedByUserID uuid.UUID `db:"created_by_user_id"`

	JoinCode              *string    `db:"join_code"`
	JoinCodeEnabled       bool       `db:"join_code_enabled"`
	JoinCodeExpiresAt     *time.Time `db:"join_code_expires_at"`
	JoinCodeUsageCount    int        `db:"join_code_usage_count"`
	JoinCodeRegeneratedAt *time.Time `db:"join_code_regenerated_at"`
	MaxTeamMembers        *int       `db:"max_team_members"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Member represents one user's association with one company. The base role is
// at most one of DefaultRole / CustomRoleID; extra permissions are additive.
type Member struct {
	ID                uuid.UUID         `db:"id"`
	CompanyID         uuid.UUID         `db:"company_id"`
	UserID            uuid.UUID         `db:"user_id"`
	DefaultRole       *rbac.DefaultRole `db:"default_role"`
	CustomRoleID      *uuid.UUID        `db:"custom_role_id"`
	ExtraPermissions  []string          `db:"extra_permissions"`
	Status            MemberStatus      `db:"status"`
	InvitedAt         *time.Time        `db:"invited_at"`
	JoinedAt          *time.Time        `db:"joined_at"`
	InvitedByMemberID *uuid.UUID        `db:"invited_by_member_id"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

// CustomRole is a company-scoped named permission set with a display color.
// Members reference it; it is shared, not copied.
type CustomRole struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CompanyID   uuid.UUID `db:"company_id" json:"company_id"`
	Name        string    `db:"name" json:"name"`
	Color       string    `db:"color" json:"color"`
	Permissions []string  `db:"permissions" json:"permissions"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MemberInfo is the member listing shape, joined with user details.
type MemberInfo struct {
	MemberID    uuid.UUID         `json:"member_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	DefaultRole *rbac.DefaultRole `json:"default_role,omitempty"`
	CustomRole  *CustomRoleInfo   `json:"custom_role,omitempty"`
	ExtraPerms  []string          `json:"extra_permissions"`
	Status      MemberStatus      `json:"status"`
	JoinedAt    *time.Time        `json:"joined_at,omitempty"`
}

// CustomRoleInfo is the embedded custom-role shape in member listings.
type CustomRoleInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

// Grant converts the member's role references into an rbac.Grant. The custom
// role's stored permission list must be passed in by the caller that resolved
// it; nil is fine for members on a default role.
func (m *Member) Grant(customPerms []string) rbac.Grant {
	g := rbac.Grant{
		DefaultRole: m.DefaultRole,
		Extra:       toPermissions(m.ExtraPermissions),
	}
	if m.CustomRoleID != nil {
		g.CustomPermissions = toPermissions(customPerms)
	}
	return g
}

func toPermissions(raw []string) []rbac.Permission {
	if len(raw) == 0 {
		return nil
	}
	out := make([]rbac.Permission, 0, len(raw))
	for _, s := range raw {
		out = append(out, rbac.Permission(s))
	}
	return out
}
