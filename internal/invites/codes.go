package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RegenerateCooldown is the minimum time between two code regenerations for
// the same company.
const RegenerateCooldown = 5 * time.Minute

var (
	ErrCodeInvalidFormat = errors.New("invalid company code format")
	ErrCodeNotFound      = errors.New("company code not found")
	ErrCodeDisabled      = errors.New("company code is disabled")
	ErrCodeExpired       = errors.New("company code has expired")
	ErrTeamFull          = errors.New("company has reached its team size limit")
)

// CooldownError reports a regeneration attempted before the cooldown elapsed,
// carrying the remaining wait time.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("code was regenerated recently, retry in %ds", int(e.Remaining.Seconds()))
}

// Regenerate replaces the company's join code with a fresh one, resets the
// usage counter and enables the code. The previous code is unusable the
// instant the new one commits; there is no grace overlap. The acting user
// needs MANAGE_MEMBERS and a 5-minute cooldown applies between regenerations.
func (s *Service) Regenerate(ctx context.Context, companyID, actorUserID uuid.UUID) (string, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers); err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var regeneratedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT join_code_regenerated_at FROM companies WHERE id = $1 FOR UPDATE
	`, companyID).Scan(&regeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", companies.ErrCompanyNotFound
		}
		return "", fmt.Errorf("failed to lock company: %w", err)
	}

	now := time.Now().UTC()
	if regeneratedAt != nil {
		elapsed := now.Sub(*regeneratedAt)
		if elapsed < RegenerateCooldown {
			return "", &CooldownError{Remaining: RegenerateCooldown - elapsed}
		}
	}

	var code string
	for attempt := 0; attempt < 3; attempt++ {
		candidate, err := GenerateCode()
		if err != nil {
			return "", err
		}

		_, err = tx.Exec(ctx, `
			UPDATE companies
			SET join_code = $2,
			    join_code_enabled = TRUE,
			    join_code_usage_count = 0,
			    join_code_regenerated_at = $3,
			    updated_at = NOW()
			WHERE id = $1
		`, companyID, candidate, now)
		if err == nil {
			code = candidate
			break
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Code collision with another company; retry.
			continue
		}
		return "", fmt.Errorf("failed to store new code: %w", err)
	}
	if code == "" {
		return "", fmt.Errorf("failed to store new code: collision retry exhausted")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return code, nil
}

// JoinViaCode redeems a company code for the authenticated user, creating an
// ACTIVE membership at the baseline MEMBER role. The ceiling check and the
// member insert + usage increment share one transaction with the company row
// locked, so two simultaneous joiners cannot both slip past the limit.
func (s *Service) JoinViaCode(ctx context.Context, code string, userID uuid.UUID) (*companies.Member, error) {
	normalized := NormalizeCode(code)
	if !IsValidCodeFormat(normalized) {
		return nil, ErrCodeInvalidFormat
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var companyID uuid.UUID
	var enabled bool
	var expiresAt *time.Time
	var maxTeam *int
	err = tx.QueryRow(ctx, `
		SELECT id, join_code_enabled, join_code_expires_at, max_team_members
		FROM companies
		WHERE join_code = $1
		FOR UPDATE
	`, normalized).Scan(&companyID, &enabled, &expiresAt, &maxTeam)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up code: %w", err)
	}

	if !enabled {
		return nil, ErrCodeDisabled
	}
	if IsCodeExpired(expiresAt, time.Now().UTC()) {
		return nil, ErrCodeExpired
	}

	if maxTeam != nil {
		var activeCount int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM company_members
			WHERE company_id = $1 AND status = 'ACTIVE'
		`, companyID).Scan(&activeCount)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if activeCount >= *maxTeam {
			return nil, ErrTeamFull
		}
	}

	var hasActive bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM company_members WHERE user_id = $1 AND status = 'ACTIVE'
		)
	`, userID).Scan(&hasActive)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing membership: %w", err)
	}
	if hasActive {
		return nil, companies.ErrAlreadyMember
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO company_members (company_id, user_id, default_role, status, joined_at)
		VALUES ($1, $2, $3, 'ACTIVE', NOW())
		ON CONFLICT (company_id, user_id) DO UPDATE
		SET default_role = EXCLUDED.default_role,
		    custom_role_id = NULL,
		    extra_permissions = '{}',
		    status = 'ACTIVE',
		    joined_at = NOW(),
		    updated_at = NOW()
		RETURNING id, company_id, user_id, default_role, custom_role_id,
		          extra_permissions, status, invited_at, joined_at,
		          invited_by_member_id, created_at, updated_at
	`, companyID, userID, rbac.RoleMember)

	member, err := scanMemberRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE companies
		SET join_code_usage_count = join_code_usage_count + 1, updated_at = NOW()
		WHERE id = $1
	`, companyID); err != nil {
		return nil, fmt.Errorf("failed to increment code usage: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET account_type = 'company', updated_at = NOW()
		WHERE id = $1 AND account_type <> 'company'
	`, userID); err != nil {
		return nil, fmt.Errorf("failed to promote account type: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	var memberEmail string
	if err := s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&memberEmail); err == nil {
		s.notifier.MemberJoinedViaCode(ctx, companyID, memberEmail)
	}

	return member, nil
}

// SetCodeEnabled toggles the join code without changing the code string.
func (s *Service) SetCodeEnabled(ctx context.Context, companyID, actorUserID uuid.UUID, enabled bool) error {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET join_code_enabled = $2, updated_at = NOW()
		WHERE id = $1 AND join_code IS NOT NULL
	`, companyID, enabled)
	if err != nil {
		return fmt.Errorf("failed to toggle code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}

	return nil
}

// SetCodeExpiry sets or clears the code's expiry timestamp.
func (s *Service) SetCodeExpiry(ctx context.Context, companyID, actorUserID uuid.UUID, expiresAt *time.Time) error {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET join_code_expires_at = $2, updated_at = NOW()
		WHERE id = $1 AND join_code IS NOT NULL
	`, companyID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set code expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}

	return nil
}

// SetTeamLimit sets or clears the company's team-size ceiling.
func (s *Service) SetTeamLimit(ctx context.Context, companyID, actorUserID uuid.UUID, maxMembers *int) error {
	if maxMembers != nil && *maxMembers <= 0 {
		return fmt.Errorf("team limit must be positive")
	}

	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET max_team_members = $2, updated_at = NOW()
		WHERE id = $1
	`, companyID, maxMembers); err != nil {
		return fmt.Errorf("failed to set team limit: %w", err)
	}

	return nil
}

// CodeStatus is the safe-to-display view of a company's join code.
type CodeStatus struct {
	MaskedCode     string  `json:"masked_code,omitempty"`
	Enabled        bool    `json:"enabled"`
	ExpiresIn      *string `json:"expires_in,omitempty"`
	UsageCount     int     `json:"usage_count"`
	MaxTeamMembers *int    `json:"max_team_members,omitempty"`
}

// GetCodeStatus returns the masked code and its limits for display. The full
// code string is only ever returned by Regenerate.
func (s *Service) GetCodeStatus(ctx context.Context, companyID, actorUserID uuid.UUID) (*CodeStatus, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageMembers); err != nil {
		return nil, err
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	status := &CodeStatus{
		Enabled:        company.JoinCodeEnabled,
		UsageCount:     company.JoinCodeUsageCount,
		MaxTeamMembers: company.MaxTeamMembers,
	}
	if company.JoinCode != nil {
		status.MaskedCode = MaskCode(*company.JoinCode)
	}
	if remaining, ok := TimeUntilExpiry(company.JoinCodeExpiresAt, time.Now().UTC()); ok {
		status.ExpiresIn = &remaining
	}

	return status, nil
}
