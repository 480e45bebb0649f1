package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCustomRoleNameConflict is returned when the company already has a custom
// role with the requested name.
var ErrCustomRoleNameConflict = errors.New("custom role name already exists")

func validateCustomRoleInput(name, color string, perms []rbac.Permission) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return fmt.Errorf("%w: name must be 1-64 characters", ErrInvalidRole)
	}
	if len(color) != 7 || color[0] != '#' {
		return fmt.Errorf("%w: color must be a #RRGGBB value", ErrInvalidRole)
	}
	for _, c := range color[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return fmt.Errorf("%w: color must be a #RRGGBB value", ErrInvalidRole)
		}
	}
	for _, p := range perms {
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown permission %q", ErrInvalidRole, p)
		}
	}
	return nil
}

func permStrings(perms []rbac.Permission) []string {
	deduped := rbac.NewSet(perms...).Slice()
	out := make([]string, 0, len(deduped))
	for _, p := range deduped {
		out = append(out, string(p))
	}
	return out
}

// CreateCustomRole creates a company-scoped named permission set. The actor
// needs the MANAGE_CUSTOM_ROLES permission.
func (s *Service) CreateCustomRole(ctx context.Context, companyID, actorUserID uuid.UUID, name, color string, perms []rbac.Permission) (*CustomRole, error) {
	if err := validateCustomRoleInput(name, color, perms); err != nil {
		return nil, err
	}

	if _, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageCustomRoles); err != nil {
		return nil, err
	}

	var role CustomRole
	err := s.pool.QueryRow(ctx, `
		INSERT INTO custom_roles (company_id, name, color, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING id, company_id, name, color, permissions, created_at, updated_at
	`, companyID, strings.TrimSpace(name), color, permStrings(perms)).Scan(
		&role.ID,
		&role.CompanyID,
		&role.Name,
		&role.Color,
		&role.Permissions,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCustomRoleNameConflict
		}
		return nil, fmt.Errorf("failed to create custom role: %w", err)
	}

	return &role, nil
}

// ListCustomRoles returns all custom roles of a company.
func (s *Service) ListCustomRoles(ctx context.Context, companyID uuid.UUID) ([]CustomRole, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, name, color, permissions, created_at, updated_at
		FROM custom_roles
		WHERE company_id = $1
		ORDER BY created_at ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom roles: %w", err)
	}
	defer rows.Close()

	var roles []CustomRole
	for rows.Next() {
		var role CustomRole
		if err := rows.Scan(&role.ID, &role.CompanyID, &role.Name, &role.Color, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating custom roles: %w", err)
	}

	return roles, nil
}

// UpdateCustomRole replaces a custom role's name, color and permission set.
// Members referencing the role pick up the new set immediately (the role is
// shared, not copied).
func (s *Service) UpdateCustomRole(ctx context.Context, companyID, actorUserID, roleID uuid.UUID, name, color string, perms []rbac.Permission) error {
	if err := validateCustomRoleInput(name, color, perms); err != nil {
		return err
	}

	if _, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageCustomRoles); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE custom_roles
		SET name = $3, color = $4, permissions = $5, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`, roleID, companyID, strings.TrimSpace(name), color, permStrings(perms))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCustomRoleNameConflict
		}
		return fmt.Errorf("failed to update custom role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomRoleNotFound
	}

	return nil
}

// DeleteCustomRole deletes a custom role. Deletion is refused while any
// non-removed member still references the role; callers must reassign those
// members first.
func (s *Service) DeleteCustomRole(ctx context.Context, companyID, actorUserID, roleID uuid.UUID) error {
	if _, err := s.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageCustomRoles); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM custom_roles WHERE id = $1 AND company_id = $2 FOR UPDATE
	`, roleID, companyID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomRoleNotFound
		}
		return fmt.Errorf("failed to lock custom role: %w", err)
	}

	var referenced bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM company_members
			WHERE custom_role_id = $1 AND status <> 'REMOVED'
		)
	`, roleID).Scan(&referenced); err != nil {
		return fmt.Errorf("failed to check role references: %w", err)
	}
	if referenced {
		return ErrCustomRoleInUse
	}

	// Removed members keep their historical reference cleared so the row can go.
	if _, err := tx.Exec(ctx, `
		UPDATE company_members SET custom_role_id = NULL WHERE custom_role_id = $1
	`, roleID); err != nil {
		return fmt.Errorf("failed to clear removed-member references: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM custom_roles WHERE id = $1 AND company_id = $2
	`, roleID, companyID); err != nil {
		return fmt.Errorf("failed to delete custom role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCustomRole fetches a single custom role scoped to a company.
func (s *Service) GetCustomRole(ctx context.Context, companyID, roleID uuid.UUID) (*CustomRole, error) {
	var role CustomRole
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_id, name, color, permissions, created_at, updated_at
		FROM custom_roles
		WHERE id = $1 AND company_id = $2
	`, roleID, companyID).Scan(
		&role.ID,
		&role.CompanyID,
		&role.Name,
		&role.Color,
		&role.Permissions,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("failed to get custom role: %w", err)
	}
	return &role, nil
}
