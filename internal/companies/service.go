package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service provides company and membership operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new company service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

const companyColumns = `
	id, name, slug, about, created_by_user_id,
	join_code, join_code_enabled, join_code_expires_at,
	join_code_usage_count, join_code_regenerated_at, max_team_members,
	created_at, updated_at
`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.About,
		&c.CreatedByUserID,
		&c.JoinCode,
		&c.JoinCodeEnabled,
		&c.JoinCodeExpiresAt,
		&c.JoinCodeUsageCount,
		&c.JoinCodeRegeneratedAt,
		&c.MaxTeamMembers,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}
	return &c, nil
}

// GetByID retrieves a company by ID
func (s *Service) GetByID(ctx context.Context, companyID uuid.UUID) (*Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, companyID)
	return scanCompany(row)
}

// GetBySlug retrieves a company by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE slug = $1`, slug)
	return scanCompany(row)
}

// CreateWithOwner creates a new company and makes the creating user its
// OWNER member, in a single transaction. The creating user must not already
// hold an active membership anywhere.
func (s *Service) CreateWithOwner(ctx context.Context, name, slug, about string, userID uuid.UUID) (*Company, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var existing int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM company_members
		WHERE user_id = $1 AND status = 'ACTIVE'
	`, userID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check existing membership: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	var company Company
	row := tx.QueryRow(ctx, `
		INSERT INTO companies (name, slug, about, created_by_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+companyColumns, name, slug, about, userID)
	err = row.Scan(
		&company.ID,
		&company.Name,
		&company.Slug,
		&company.About,
		&company.CreatedByUserID,
		&company.JoinCode,
		&company.JoinCodeEnabled,
		&company.JoinCodeExpiresAt,
		&company.JoinCodeUsageCount,
		&company.JoinCodeRegeneratedAt,
		&company.MaxTeamMembers,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO company_members (company_id, user_id, default_role, status, joined_at)
		VALUES ($1, $2, $3, 'ACTIVE', NOW())
	`, company.ID, userID, rbac.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET account_type = 'company', updated_at = NOW()
		WHERE id = $1 AND account_type <> 'company'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to promote account type: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &company, nil
}

// ListMembers retrieves all non-removed members of a company with user details
func (s *Service) ListMembers(ctx context.Context, companyID uuid.UUID) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
		  m.id, m.user_id, u.email, u.full_name,
		  m.default_role, m.extra_permissions, m.status, m.joined_at,
		  cr.id, cr.name, cr.color
		FROM company_members m
		INNER JOIN users u ON m.user_id = u.id
		LEFT JOIN custom_roles cr ON m.custom_role_id = cr.id
		WHERE m.company_id = $1
		  AND m.status <> 'REMOVED'
		ORDER BY m.created_at ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		var crID *uuid.UUID
		var crName, crColor *string
		err := rows.Scan(
			&member.MemberID,
			&member.UserID,
			&member.Email,
			&member.FullName,
			&member.DefaultRole,
			&member.ExtraPerms,
			&member.Status,
			&member.JoinedAt,
			&crID,
			&crName,
			&crColor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if crID != nil {
			member.CustomRole = &CustomRoleInfo{ID: *crID, Name: *crName, Color: *crColor}
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// CountActiveMembers returns the number of ACTIVE members in a company
func (s *Service) CountActiveMembers(ctx context.Context, companyID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM company_members
		WHERE company_id = $1 AND status = 'ACTIVE'
	`, companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// GetActiveMembership returns a user's ACTIVE membership in any company.
// Returns ErrNotMember when the user holds none.
func (s *Service) GetActiveMembership(ctx context.Context, userID uuid.UUID) (*Member, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, company_id, user_id, default_role, custom_role_id,
		       extra_permissions, status, invited_at, joined_at,
		       invited_by_member_id, created_at, updated_at
		FROM company_members
		WHERE user_id = $1 AND status = 'ACTIVE'
	`, userID)
	return scanMember(row)
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
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
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	return &m, nil
}
