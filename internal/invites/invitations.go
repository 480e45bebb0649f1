package invites

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// InviteTTL is the fixed validity window of an invitation token.
const InviteTTL = 7 * 24 * time.Hour

var (
	ErrInviteNotFound        = errors.New("invitation not found")
	ErrInviteExpired         = errors.New("invitation expired")
	ErrInviteAlreadyAccepted = errors.New("invitation already accepted")
	ErrInviteEmailMismatch   = errors.New("invitation email does not match account")
	ErrDuplicateInvite       = errors.New("an open invitation for this email already exists")
	ErrCannotInviteOwner     = errors.New("ownership cannot be granted via invitation")
)

// Notifier delivers best-effort notifications. Implementations must never
// block the primary state transition: failures are logged, not returned.
type Notifier interface {
	InviteCreated(ctx context.Context, email, companyName, token string)
	InviteAccepted(ctx context.Context, inviterUserID uuid.UUID, inviteeEmail, companyName string)
	MemberJoinedViaCode(ctx context.Context, companyID uuid.UUID, memberEmail string)
}

// Invitation is a single-use, time-boxed offer binding an email address to a
// company and an intended base role.
type Invitation struct {
	ID                uuid.UUID         `db:"id"`
	CompanyID         uuid.UUID         `db:"company_id"`
	Email             string            `db:"email"`
	DefaultRole       *rbac.DefaultRole `db:"default_role"`
	CustomRoleID      *uuid.UUID        `db:"custom_role_id"`
	InvitedByMemberID uuid.UUID         `db:"invited_by_member_id"`
	CreatedAt         time.Time         `db:"created_at"`
	ExpiresAt         time.Time         `db:"expires_at"`
	AcceptedAt        *time.Time        `db:"accepted_at"`
	AcceptedByUserID  *uuid.UUID        `db:"accepted_by_user_id"`
}

// ListItem is the pending-invitation listing shape.
type ListItem struct {
	ID             uuid.UUID         `json:"id"`
	Email          string            `json:"email"`
	DefaultRole    *rbac.DefaultRole `json:"default_role,omitempty"`
	CustomRoleID   *uuid.UUID        `json:"custom_role_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	InvitedByEmail string            `json:"invited_by_email"`
}

// Service manages invitation tokens and the shared company code.
type Service struct {
	pool      *pgxpool.Pool
	companies *companies.Service
	notifier  Notifier
}

// NewService creates a new invitation service.
func NewService(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) *Service {
	return &Service{pool: pool, companies: companySvc, notifier: notifier}
}

func normalizeInviteEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	if len(email) > 320 {
		return "", errors.New("email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errors.New("invalid email address")
	}
	return strings.ToLower(email), nil
}

// Create issues a new invitation. The acting user needs INVITE_MEMBERS in the
// company. Rejections, each distinct: the email already belongs to an active
// member of any company; an unexpired pending invitation to this company
// exists for the email; the requested role is OWNER; the custom role does not
// belong to this company. Email and in-app notification are sent after commit
// and never roll back creation.
func (s *Service) Create(ctx context.Context, companyID, actorUserID uuid.UUID, email string, role RoleRequest) (*Invitation, string, error) {
	email, err := normalizeInviteEmail(email)
	if err != nil {
		return nil, "", err
	}

	if err := role.validate(); err != nil {
		return nil, "", err
	}

	inviter, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermInviteMembers)
	if err != nil {
		return nil, "", err
	}

	if role.CustomRoleID != nil {
		if _, err := s.companies.GetCustomRole(ctx, companyID, *role.CustomRoleID); err != nil {
			return nil, "", err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var activeMember bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM company_members m
			INNER JOIN users u ON u.id = m.user_id
			WHERE LOWER(u.email) = $1
			  AND m.status = 'ACTIVE'
		)
	`, email).Scan(&activeMember)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing membership: %w", err)
	}
	if activeMember {
		return nil, "", companies.ErrAlreadyMember
	}

	var openInvite bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE company_id = $1
			  AND LOWER(email) = $2
			  AND accepted_at IS NULL
			  AND expires_at > NOW()
		)
	`, companyID, email).Scan(&openInvite)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check open invitations: %w", err)
	}
	if openInvite {
		return nil, "", ErrDuplicateInvite
	}

	var invite Invitation
	var token string
	for attempt := 0; attempt < 3; attempt++ {
		plaintext, tokenHash, err := GenerateInviteToken()
		if err != nil {
			return nil, "", err
		}

		expiresAt := time.Now().UTC().Add(InviteTTL)

		err = tx.QueryRow(ctx, `
			INSERT INTO invitations (
			  company_id, email, default_role, custom_role_id, token_hash,
			  invited_by_member_id, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, company_id, email, default_role, custom_role_id,
			          invited_by_member_id, created_at, expires_at, accepted_at,
			          accepted_by_user_id
		`, companyID, email, role.DefaultRole, role.CustomRoleID, tokenHash, inviter.ID, expiresAt).Scan(
			&invite.ID,
			&invite.CompanyID,
			&invite.Email,
			&invite.DefaultRole,
			&invite.CustomRoleID,
			&invite.InvitedByMemberID,
			&invite.CreatedAt,
			&invite.ExpiresAt,
			&invite.AcceptedAt,
			&invite.AcceptedByUserID,
		)
		if err == nil {
			token = plaintext
			break
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Token hash collision (extremely unlikely); retry.
			continue
		}
		return nil, "", fmt.Errorf("failed to create invitation: %w", err)
	}
	if token == "" {
		return nil, "", fmt.Errorf("failed to create invitation: token collision retry exhausted")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	company, err := s.companies.GetByID(ctx, companyID)
	companyName := ""
	if err == nil {
		companyName = company.Name
	}
	s.notifier.InviteCreated(ctx, email, companyName, token)

	return &invite, token, nil
}

// RoleRequest names the base role an invitation grants: exactly one of
// DefaultRole / CustomRoleID.
type RoleRequest struct {
	DefaultRole  *rbac.DefaultRole
	CustomRoleID *uuid.UUID
}

func (r RoleRequest) validate() error {
	if (r.DefaultRole == nil) == (r.CustomRoleID == nil) {
		return companies.ErrInvalidRole
	}
	if r.DefaultRole != nil {
		if !r.DefaultRole.IsValid() {
			return companies.ErrInvalidRole
		}
		if *r.DefaultRole == rbac.RoleOwner {
			return ErrCannotInviteOwner
		}
	}
	return nil
}

// Accept redeems an invitation token for the authenticated user. Marking the
// invitation accepted, creating the ACTIVE member, and promoting the account
// type happen in one transaction; two concurrent accepts cannot both succeed.
func (s *Service) Accept(ctx context.Context, token string, userID uuid.UUID) (*companies.Member, error) {
	if !ValidateInviteTokenFormat(token) {
		return nil, ErrInviteNotFound
	}
	tokenHash := HashInviteToken(token)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invitation
	err = tx.QueryRow(ctx, `
		SELECT id, company_id, email, default_role, custom_role_id,
		       invited_by_member_id, created_at, expires_at, accepted_at,
		       accepted_by_user_id
		FROM invitations
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash).Scan(
		&invite.ID,
		&invite.CompanyID,
		&invite.Email,
		&invite.DefaultRole,
		&invite.CustomRoleID,
		&invite.InvitedByMemberID,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.AcceptedAt,
		&invite.AcceptedByUserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}

	if invite.AcceptedAt != nil {
		return nil, ErrInviteAlreadyAccepted
	}
	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrInviteExpired
	}

	var userEmail string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, invite.Email) {
		return nil, ErrInviteEmailMismatch
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

	// A previously REMOVED membership row for this company is revived in place.
	row := tx.QueryRow(ctx, `
		INSERT INTO company_members (
		  company_id, user_id, default_role, custom_role_id, status,
		  invited_at, joined_at, invited_by_member_id
		)
		VALUES ($1, $2, $3, $4, 'ACTIVE', $5, NOW(), $6)
		ON CONFLICT (company_id, user_id) DO UPDATE
		SET default_role = EXCLUDED.default_role,
		    custom_role_id = EXCLUDED.custom_role_id,
		    extra_permissions = '{}',
		    status = 'ACTIVE',
		    invited_at = EXCLUDED.invited_at,
		    joined_at = NOW(),
		    invited_by_member_id = EXCLUDED.invited_by_member_id,
		    updated_at = NOW()
		RETURNING id, company_id, user_id, default_role, custom_role_id,
		          extra_permissions, status, invited_at, joined_at,
		          invited_by_member_id, created_at, updated_at
	`, invite.CompanyID, userID, invite.DefaultRole, invite.CustomRoleID, invite.CreatedAt, invite.InvitedByMemberID)

	member, err := scanMemberRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE invitations
		SET accepted_at = NOW(), accepted_by_user_id = $2
		WHERE id = $1 AND accepted_at IS NULL
	`, invite.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInviteAlreadyAccepted
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

	s.notifyInviterAccepted(ctx, &invite, userEmail)

	return member, nil
}

// notifyInviterAccepted tells the inviting member their invitation was
// accepted. Best-effort: failures are logged and swallowed.
func (s *Service) notifyInviterAccepted(ctx context.Context, invite *Invitation, inviteeEmail string) {
	var inviterUserID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM company_members WHERE id = $1
	`, invite.InvitedByMemberID).Scan(&inviterUserID)
	if err != nil {
		log.Warn().Err(err).Str("invite_id", invite.ID.String()).Msg("Failed to resolve inviter for notification")
		return
	}

	companyName := ""
	if company, err := s.companies.GetByID(ctx, invite.CompanyID); err == nil {
		companyName = company.Name
	}

	s.notifier.InviteAccepted(ctx, inviterUserID, inviteeEmail, companyName)
}

// Decline destroys a pending invitation addressed to the authenticated user.
// Once declined the token is permanently dead.
func (s *Service) Decline(ctx context.Context, token string, userID uuid.UUID) error {
	if !ValidateInviteTokenFormat(token) {
		return ErrInviteNotFound
	}
	tokenHash := HashInviteToken(token)

	var inviteID uuid.UUID
	var email string
	var acceptedAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, accepted_at FROM invitations WHERE token_hash = $1
	`, tokenHash).Scan(&inviteID, &email, &acceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to load invitation: %w", err)
	}
	if acceptedAt != nil {
		return ErrInviteAlreadyAccepted
	}

	var userEmail string
	err = s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, email) {
		return ErrInviteEmailMismatch
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM invitations WHERE id = $1 AND accepted_at IS NULL
	`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to decline invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteAlreadyAccepted
	}

	return nil
}

// Revoke lets a company cancel its own pending invitation.
func (s *Service) Revoke(ctx context.Context, companyID, inviteID, actorUserID uuid.UUID) error {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermInviteMembers); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM invitations
		WHERE id = $1 AND company_id = $2 AND accepted_at IS NULL
	`, inviteID, companyID)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}

	return nil
}

// List returns a company's pending, unexpired invitations.
func (s *Service) List(ctx context.Context, companyID, actorUserID uuid.UUID) ([]ListItem, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermInviteMembers); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.default_role,
		  i.custom_role_id,
		  i.created_at,
		  i.expires_at,
		  u.email AS invited_by_email
		FROM invitations i
		INNER JOIN company_members m ON m.id = i.invited_by_member_id
		INNER JOIN users u ON u.id = m.user_id
		WHERE i.company_id = $1
		  AND i.accepted_at IS NULL
		  AND i.expires_at > NOW()
		ORDER BY i.created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invites []ListItem
	for rows.Next() {
		var inv ListItem
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.DefaultRole, &inv.CustomRoleID, &inv.CreatedAt, &inv.ExpiresAt, &inv.InvitedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return invites, nil
}

func scanMemberRow(row pgx.Row) (*companies.Member, error) {
	var m companies.Member
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
		return nil, err
	}
	return &m, nil
}
