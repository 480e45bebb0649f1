package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome tag of a detailed permission check. It exists for
// audit logging and UI messaging only and must never alter the authorization
// outcome.
type Decision string

const (
	DecisionAllowed          Decision = "ALLOWED"
	DecisionNotMember        Decision = "NOT_MEMBER"
	DecisionInactiveMember   Decision = "INACTIVE_MEMBER"
	DecisionPermissionDenied Decision = "PERMISSION_DENIED"
)

// PermissionDeniedError is raised by RequirePermission and names the missing
// permission.
type PermissionDeniedError struct {
	Permission rbac.Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: missing %s", e.Permission)
}

// memberWithGrant loads a user's membership row scoped to a company together
// with its resolved custom-role permission list. Absence is reported as
// pgx.ErrNoRows by the underlying query.
func (s *Service) memberWithGrant(ctx context.Context, userID, companyID uuid.UUID) (*Member, rbac.Grant, error) {
	var m Member
	var customPerms []string
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.company_id, m.user_id, m.default_role, m.custom_role_id,
		       m.extra_permissions, m.status, m.invited_at, m.joined_at,
		       m.invited_by_member_id, m.created_at, m.updated_at,
		       COALESCE(cr.permissions, '{}')
		FROM company_members m
		LEFT JOIN custom_roles cr ON m.custom_role_id = cr.id
		WHERE m.company_id = $1 AND m.user_id = $2
	`, companyID, userID).Scan(
		&m.ID,
		&m.CompanyID,
		&m.UserID,
		&m.DefaultRole,
		&m.CustomRoleID,
		&m.ExtraPermissions,
		&m.Status,
		&m.InvitedAt,
		&m.JoinedAt,
		&m.InvitedByMemberID,
		&m.CreatedAt,
		&m.UpdatedAt,
		&customPerms,
	)
	if err != nil {
		return nil, rbac.Grant{}, err
	}
	return &m, m.Grant(customPerms), nil
}

// CheckPermissionDetailed resolves the user's membership in the company and
// reports whether it grants the permission, with a reason tag. The member is
// returned for ALLOWED decisions so callers can act as that member.
func (s *Service) CheckPermissionDetailed(ctx context.Context, userID, companyID uuid.UUID, perm rbac.Permission) (Decision, *Member, error) {
	member, grant, err := s.memberWithGrant(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DecisionNotMember, nil, nil
		}
		return "", nil, fmt.Errorf("failed to load membership: %w", err)
	}

	if member.Status != StatusActive {
		return DecisionInactiveMember, nil, nil
	}

	if !rbac.HasPermission(grant, perm) {
		return DecisionPermissionDenied, nil, nil
	}

	return DecisionAllowed, member, nil
}

// CheckPermission collapses the detailed check to a single boolean. Callers
// cannot distinguish "not a member" from "member but lacking permission" from
// the return value alone; that is deliberate.
func (s *Service) CheckPermission(ctx context.Context, userID, companyID uuid.UUID, perm rbac.Permission) (bool, error) {
	decision, _, err := s.CheckPermissionDetailed(ctx, userID, companyID, perm)
	if err != nil {
		return false, err
	}
	return decision == DecisionAllowed, nil
}

// RequireActiveMember loads the user's ACTIVE membership in the company and
// returns it with the resolved effective permission set. Listing-style reads
// need membership but no specific permission.
func (s *Service) RequireActiveMember(ctx context.Context, userID, companyID uuid.UUID) (*Member, rbac.Set, error) {
	member, grant, err := s.memberWithGrant(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotMember
		}
		return nil, nil, fmt.Errorf("failed to load membership: %w", err)
	}
	if member.Status != StatusActive {
		return nil, nil, ErrNotMember
	}
	return member, rbac.EffectivePermissions(grant), nil
}

// RequirePermission is the fail-fast variant: it returns the acting member on
// success and a *PermissionDeniedError naming the missing permission when the
// check fails for any reason.
func (s *Service) RequirePermission(ctx context.Context, userID, companyID uuid.UUID, perm rbac.Permission) (*Member, error) {
	decision, member, err := s.CheckPermissionDetailed(ctx, userID, companyID, perm)
	if err != nil {
		return nil, err
	}
	if decision != DecisionAllowed {
		log.Debug().
			Str("user_id", userID.String()).
			Str("company_id", companyID.String()).
			Str("permission", string(perm)).
			Str("decision", string(decision)).
			Msg("Permission check failed")
		return nil, &PermissionDeniedError{Permission: perm}
	}
	return member, nil
}
