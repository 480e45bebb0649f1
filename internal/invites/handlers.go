package invites

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/audit"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func parseCompanyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, false
	}
	return companyID, true
}

// writeInviteError maps the package's sentinel errors onto HTTP responses.
func writeInviteError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var permDenied *companies.PermissionDeniedError
	var cooldown *CooldownError
	switch {
	case errors.As(err, &permDenied):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.As(err, &cooldown):
		apperrors.WriteError(w, r, http.StatusTooManyRequests, "COOLDOWN", cooldown.Error())
	case errors.Is(err, ErrInviteNotFound):
		apperrors.WriteNotFound(w, r, "Invitation not found")
	case errors.Is(err, ErrInviteExpired):
		apperrors.WriteError(w, r, http.StatusGone, "INVITE_EXPIRED", "Invitation has expired")
	case errors.Is(err, ErrInviteAlreadyAccepted):
		apperrors.WriteConflict(w, r, "Invitation was already accepted")
	case errors.Is(err, ErrInviteEmailMismatch):
		apperrors.WriteForbidden(w, r, "Invitation was issued to a different email address")
	case errors.Is(err, ErrDuplicateInvite):
		apperrors.WriteConflict(w, r, "An open invitation for this email already exists")
	case errors.Is(err, ErrCannotInviteOwner):
		apperrors.WriteBadRequest(w, r, "Ownership cannot be granted via invitation")
	case errors.Is(err, ErrCodeInvalidFormat):
		apperrors.WriteBadRequest(w, r, "Invalid company code format")
	case errors.Is(err, ErrCodeNotFound):
		apperrors.WriteNotFound(w, r, "Company code not found")
	case errors.Is(err, ErrCodeDisabled):
		apperrors.WriteForbidden(w, r, "Company code is disabled")
	case errors.Is(err, ErrCodeExpired):
		apperrors.WriteError(w, r, http.StatusGone, "CODE_EXPIRED", "Company code has expired")
	case errors.Is(err, ErrTeamFull):
		apperrors.WriteConflict(w, r, "Company has reached its team size limit")
	case errors.Is(err, companies.ErrAlreadyMember):
		apperrors.WriteConflict(w, r, "You already belong to a company")
	case errors.Is(err, companies.ErrNotMember):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, companies.ErrCompanyNotFound):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, companies.ErrCustomRoleNotFound):
		apperrors.WriteNotFound(w, r, "Custom role not found")
	case errors.Is(err, companies.ErrInvalidRole):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		log.Error().Err(err).Msg(fallback)
		apperrors.WriteInternalError(w, r, fallback)
	}
}

// CreateInviteRequest carries the invitee email and intended base role.
type CreateInviteRequest struct {
	Email        string            `json:"email"`
	DefaultRole  *rbac.DefaultRole `json:"default_role,omitempty"`
	CustomRoleID *uuid.UUID        `json:"custom_role_id,omitempty"`
}

// InviteResponse echoes the created invitation. The token only appears here;
// it is never retrievable again.
type InviteResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleCreateInvite handles POST /api/v1/companies/{company_id}/invites
func HandleCreateInvite(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		var req CreateInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, companySvc, notifier)
		role := RoleRequest{DefaultRole: req.DefaultRole, CustomRoleID: req.CustomRoleID}
		invite, token, err := service.Create(ctx, companyID, userID, req.Email, role)
		if err != nil {
			writeInviteError(w, r, err, "Failed to create invitation")
			return
		}

		roleName := ""
		if invite.DefaultRole != nil {
			roleName = string(*invite.DefaultRole)
		} else if invite.CustomRoleID != nil {
			roleName = invite.CustomRoleID.String()
		}
		if err := auditor.LogInviteCreated(ctx, companyID, userID, invite.ID, invite.Email, roleName); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
			// Continue - don't fail the request
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, InviteResponse{
			ID:        invite.ID,
			Email:     invite.Email,
			Token:     token,
			ExpiresAt: invite.ExpiresAt,
		})
	}
}

// HandleListInvites handles GET /api/v1/companies/{company_id}/invites
func HandleListInvites(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool, companySvc, notifier)
		items, err := service.List(ctx, companyID, userID)
		if err != nil {
			writeInviteError(w, r, err, "Failed to list invitations")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"invites": items})
	}
}

// HandleRevokeInvite handles DELETE /api/v1/companies/{company_id}/invites/{invite_id}
func HandleRevokeInvite(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		service := NewService(pool, companySvc, notifier)
		if err := service.Revoke(ctx, companyID, inviteID, userID); err != nil {
			writeInviteError(w, r, err, "Failed to revoke invitation")
			return
		}

		if err := auditor.LogInviteRevoked(ctx, companyID, userID, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

// AcceptRequest carries the raw invitation token.
type AcceptRequest struct {
	Token string `json:"token"`
}

// HandleAcceptInvite handles POST /api/v1/invites/accept
func HandleAcceptInvite(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}

		service := NewService(pool, companySvc, notifier)
		member, err := service.Accept(ctx, req.Token, userID)
		if err != nil {
			writeInviteError(w, r, err, "Failed to accept invitation")
			return
		}

		if err := auditor.Log(ctx, audit.LogParams{
			CompanyID:   &member.CompanyID,
			ActorUserID: &userID,
			Action:      audit.EventInviteAccepted,
			Meta:        map[string]interface{}{"member_id": member.ID.String()},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"company_id": member.CompanyID,
			"member_id":  member.ID,
		})
	}
}

// HandleDeclineInvite handles POST /api/v1/invites/decline
func HandleDeclineInvite(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req AcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Token is required")
			return
		}

		service := NewService(pool, companySvc, notifier)
		if err := service.Decline(ctx, req.Token, userID); err != nil {
			writeInviteError(w, r, err, "Failed to decline invitation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "declined"})
	}
}

// HandleRegenerateCode handles POST /api/v1/companies/{company_id}/code/regenerate.
// The response is the only place the fresh code ever appears in full.
func HandleRegenerateCode(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool, companySvc, notifier)
		code, err := service.Regenerate(ctx, companyID, userID)
		if err != nil {
			writeInviteError(w, r, err, "Failed to regenerate code")
			return
		}

		if err := auditor.LogCodeRegenerated(ctx, companyID, userID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"code": code})
	}
}

// JoinRequest carries the shared company code.
type JoinRequest struct {
	Code string `json:"code"`
}

// HandleJoinViaCode handles POST /api/v1/companies/join
func HandleJoinViaCode(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Code == "" {
			apperrors.WriteBadRequest(w, r, "Code is required")
			return
		}

		service := NewService(pool, companySvc, notifier)
		member, err := service.JoinViaCode(ctx, req.Code, userID)
		if err != nil {
			writeInviteError(w, r, err, "Failed to join company")
			return
		}

		if err := auditor.LogMemberJoinedViaCode(ctx, member.CompanyID, userID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"company_id": member.CompanyID,
			"member_id":  member.ID,
		})
	}
}

// CodeSettingsRequest updates code limits. Omitted fields are left unchanged.
type CodeSettingsRequest struct {
	Enabled        *bool      `json:"enabled,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiry    bool       `json:"clear_expiry,omitempty"`
	MaxTeamMembers *int       `json:"max_team_members,omitempty"`
	ClearTeamLimit bool       `json:"clear_team_limit,omitempty"`
}

// HandleUpdateCodeSettings handles PATCH /api/v1/companies/{company_id}/code
func HandleUpdateCodeSettings(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		var req CodeSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, companySvc, notifier)
		meta := map[string]interface{}{}

		if req.Enabled != nil {
			if err := service.SetCodeEnabled(ctx, companyID, userID, *req.Enabled); err != nil {
				writeInviteError(w, r, err, "Failed to update code settings")
				return
			}
			meta["enabled"] = *req.Enabled
		}

		if req.ExpiresAt != nil || req.ClearExpiry {
			expiry := req.ExpiresAt
			if req.ClearExpiry {
				expiry = nil
			}
			if err := service.SetCodeExpiry(ctx, companyID, userID, expiry); err != nil {
				writeInviteError(w, r, err, "Failed to update code settings")
				return
			}
			meta["expires_at"] = expiry
		}

		if req.MaxTeamMembers != nil || req.ClearTeamLimit {
			if req.MaxTeamMembers != nil && *req.MaxTeamMembers <= 0 {
				apperrors.WriteBadRequest(w, r, "max_team_members must be positive")
				return
			}
			limit := req.MaxTeamMembers
			if req.ClearTeamLimit {
				limit = nil
			}
			if err := service.SetTeamLimit(ctx, companyID, userID, limit); err != nil {
				writeInviteError(w, r, err, "Failed to update code settings")
				return
			}
			meta["max_team_members"] = limit
		}

		if len(meta) > 0 {
			if err := auditor.LogCodeSettingsUpdated(ctx, companyID, userID, meta); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// HandleGetCodeStatus handles GET /api/v1/companies/{company_id}/code
func HandleGetCodeStatus(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool, companySvc, notifier)
		status, err := service.GetCodeStatus(ctx, companyID, userID)
		if err != nil {
			writeInviteError(w, r, err, "Failed to get code status")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, status)
	}
}
