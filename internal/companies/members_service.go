package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
)

// canManageMember applies the role hierarchy between two members. A member
// whose base role is a custom role manages no one; a target on a custom role
// counts as a non-owner for the hierarchy test.
func canManageMember(actor, target *Member) bool {
	if actor.DefaultRole == nil {
		return false
	}
	targetRole := rbac.RoleMember
	if target.DefaultRole != nil {
		targetRole = *target.DefaultRole
	}
	return rbac.CanManageRole(*actor.DefaultRole, targetRole)
}

func lockMember(ctx context.Context, tx pgx.Tx, companyID, memberID uuid.UUID) (*Member, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, company_id, user_id, default_role, custom_role_id,
		       extra_permissions, status, invited_at, joined_at,
		       invited_by_member_id, created_at, updated_at
		FROM company_members
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`, memberID, companyID)

	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

// RoleChange names the new base role for a member: exactly one of
// DefaultRole / CustomRoleID must be set.
type RoleChange struct {
	DefaultRole  *rbac.DefaultRole
	CustomRoleID *uuid.UUID
}

func (rc RoleChange) validate() error {
	if (rc.DefaultRole == nil) == (rc.CustomRoleID == nil) {
		return ErrInvalidRole
	}
	if rc.DefaultRole != nil {
		if !rc.DefaultRole.IsValid() {
			return ErrInvalidRole
		}
		if *rc.DefaultRole == rbac.RoleOwner {
			return ErrCannotManageOwner
		}
	}
	return nil
}

// UpdateMemberRole changes a member's base role. The actor needs the
// CHANGE_ROLES permission and must outrank the target; the owner's role can
// only change through TransferOwnership.
func (s *Service) UpdateMemberRole(ctx context.Context, companyID, actorUserID, targetMemberID uuid.UUID, change RoleChange) error {
	if err := change.validate(); err != nil {
		return err
	}

	actor, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermChangeRoles)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	target, err := lockMember(ctx, tx, companyID, targetMemberID)
	if err != nil {
		return err
	}
	if target.Status == StatusRemoved {
		return ErrMemberNotFound
	}
	if target.DefaultRole != nil && *target.DefaultRole == rbac.RoleOwner {
		return ErrCannotManageOwner
	}
	if !canManageMember(actor, target) {
		return ErrInsufficientPermissions
	}

	if change.CustomRoleID != nil {
		var owned bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM custom_roles WHERE id = $1 AND company_id = $2)
		`, *change.CustomRoleID, companyID).Scan(&owned)
		if err != nil {
			return fmt.Errorf("failed to check custom role: %w", err)
		}
		if !owned {
			return ErrCustomRoleNotFound
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET default_role = $3, custom_role_id = $4, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, targetMemberID, companyID, change.DefaultRole, change.CustomRoleID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateMemberExtraPermissions replaces a member's ad-hoc permission grants.
// Permissions are additive on top of the base role; this never subtracts from
// the role itself.
func (s *Service) UpdateMemberExtraPermissions(ctx context.Context, companyID, actorUserID, targetMemberID uuid.UUID, perms []rbac.Permission) error {
	for _, p := range perms {
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown permission %q", ErrInvalidRole, p)
		}
	}

	actor, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	target, err := lockMember(ctx, tx, companyID, targetMemberID)
	if err != nil {
		return err
	}
	if target.Status == StatusRemoved {
		return ErrMemberNotFound
	}
	if !canManageMember(actor, target) {
		return ErrInsufficientPermissions
	}

	deduped := rbac.NewSet(perms...).Slice()
	raw := make([]string, 0, len(deduped))
	for _, p := range deduped {
		raw = append(raw, string(p))
	}

	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET extra_permissions = $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, targetMemberID, companyID, raw); err != nil {
		return fmt.Errorf("failed to update extra permissions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RemoveMember marks a member REMOVED. The owner cannot be removed. The
// member's role and extra permissions are retained on the row for audit.
func (s *Service) RemoveMember(ctx context.Context, companyID, actorUserID, targetMemberID uuid.UUID) (*Member, error) {
	actor, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	target, err := lockMember(ctx, tx, companyID, targetMemberID)
	if err != nil {
		return nil, err
	}
	if target.Status == StatusRemoved {
		return nil, ErrMemberNotFound
	}
	if target.DefaultRole != nil && *target.DefaultRole == rbac.RoleOwner {
		return nil, ErrCannotManageOwner
	}
	if !canManageMember(actor, target) {
		return nil, ErrInsufficientPermissions
	}

	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET status = 'REMOVED', updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, targetMemberID, companyID); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return target, nil
}

// TransferOwnership atomically swaps the OWNER role from the acting owner to
// the target member. The old owner becomes ADMIN in the same transaction;
// there is never a window with zero or two owners.
func (s *Service) TransferOwnership(ctx context.Context, companyID, actorUserID, targetMemberID uuid.UUID) error {
	actor, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermTransferOwnership)
	if err != nil {
		return err
	}
	if actor.DefaultRole == nil || *actor.DefaultRole != rbac.RoleOwner {
		return ErrInsufficientPermissions
	}
	if actor.ID == targetMemberID {
		return ErrInvalidRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock in a fixed order to avoid deadlock between concurrent transfers.
	first, second := actor.ID, targetMemberID
	if second.String() < first.String() {
		first, second = second, first
	}
	if _, err := lockMember(ctx, tx, companyID, first); err != nil {
		return err
	}
	if _, err := lockMember(ctx, tx, companyID, second); err != nil {
		return err
	}

	target, err := lockMember(ctx, tx, companyID, targetMemberID)
	if err != nil {
		return err
	}
	if target.Status != StatusActive {
		return ErrMemberNotFound
	}

	// Demote first so the one-owner-per-company index never sees two owners.
	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET default_role = $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, actor.ID, companyID, rbac.RoleAdmin); err != nil {
		return fmt.Errorf("failed to demote previous owner: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE company_members
		SET default_role = $3, custom_role_id = NULL, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, targetMemberID, companyID, rbac.RoleOwner); err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
