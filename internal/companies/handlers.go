package companies

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/audit"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/internhub/internhub/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// CreateRequest represents the request to create a company
type CreateRequest struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	About string `json:"about"`
}

type CompanyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	About     string    `json:"about"`
	CreatedAt string    `json:"created_at"`
}

func companyResponse(c *Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		About:     c.About,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// parseCompanyID extracts and parses the company_id path parameter.
func parseCompanyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, false
	}
	return companyID, true
}

// writeServiceError maps the package's sentinel errors onto HTTP responses.
// Membership absence and permission denial are both reported as 404/403 here;
// anything unrecognized becomes a logged 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var permDenied *PermissionDeniedError
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, ErrNotMember):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.As(err, &permDenied):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrMemberNotFound):
		apperrors.WriteNotFound(w, r, "Member not found")
	case errors.Is(err, ErrCannotManageOwner):
		apperrors.WriteForbidden(w, r, "The owner can only be changed via ownership transfer")
	case errors.Is(err, ErrInvalidRole):
		apperrors.WriteBadRequest(w, r, err.Error())
	case errors.Is(err, ErrCustomRoleNotFound):
		apperrors.WriteNotFound(w, r, "Custom role not found")
	case errors.Is(err, ErrCustomRoleInUse):
		apperrors.WriteConflict(w, r, "Custom role is still assigned to members")
	case errors.Is(err, ErrCustomRoleNameConflict):
		apperrors.WriteConflict(w, r, "A custom role with this name already exists")
	case errors.Is(err, ErrAlreadyMember):
		apperrors.WriteConflict(w, r, "User already has an active company membership")
	default:
		log.Error().Err(err).Msg(fallback)
		apperrors.WriteInternalError(w, r, fallback)
	}
}

// HandleCreate handles POST /api/v1/companies
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Company name is required")
			return
		}
		if req.Slug == "" {
			apperrors.WriteBadRequest(w, r, "Company slug is required")
			return
		}

		req.Slug = validation.NormalizeSlug(req.Slug)
		if err := validation.ValidateSlug(req.Slug); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		company, err := service.CreateWithOwner(ctx, req.Name, req.Slug, req.About, userID)
		if err != nil {
			if errors.Is(err, ErrSlugConflict) {
				apperrors.WriteConflict(w, r, "Company slug already exists")
				return
			}
			if errors.Is(err, ErrAlreadyMember) {
				apperrors.WriteConflict(w, r, "You already belong to a company")
				return
			}
			log.Error().Err(err).Msg("Failed to create company")
			apperrors.WriteInternalError(w, r, "Failed to create company")
			return
		}

		if err := auditor.LogCompanyCreated(ctx, company.ID, userID, company.Slug); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
			// Continue - don't fail the request
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, companyResponse(company))
	}
}

// HandleGet handles GET /api/v1/companies/{company_id}
func HandleGet(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool)
		company, err := service.GetByID(ctx, companyID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to get company")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, companyResponse(company))
	}
}

// HandleListMembers handles GET /api/v1/companies/{company_id}/members.
// Any active member may list the roster.
func HandleListMembers(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool)
		if _, _, err := service.RequireActiveMember(ctx, userID, companyID); err != nil {
			writeServiceError(w, r, err, "Failed to check membership")
			return
		}

		members, err := service.ListMembers(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"members": members})
	}
}

// MeResponse reports the caller's own membership and effective permissions.
type MeResponse struct {
	MemberID    uuid.UUID         `json:"member_id"`
	DefaultRole *rbac.DefaultRole `json:"default_role,omitempty"`
	CustomRole  *uuid.UUID        `json:"custom_role_id,omitempty"`
	Permissions []rbac.Permission `json:"permissions"`
}

// HandleMe handles GET /api/v1/companies/{company_id}/me
func HandleMe(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool)
		member, perms, err := service.RequireActiveMember(ctx, userID, companyID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to check membership")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, MeResponse{
			MemberID:    member.ID,
			DefaultRole: member.DefaultRole,
			CustomRole:  member.CustomRoleID,
			Permissions: perms.Slice(),
		})
	}
}

// RoleUpdateRequest carries the new base role: exactly one of the fields.
type RoleUpdateRequest struct {
	DefaultRole  *rbac.DefaultRole `json:"default_role,omitempty"`
	CustomRoleID *uuid.UUID        `json:"custom_role_id,omitempty"`
}

// HandleUpdateMemberRole handles PUT /api/v1/companies/{company_id}/members/{member_id}/role
func HandleUpdateMemberRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		memberID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		var req RoleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		change := RoleChange{DefaultRole: req.DefaultRole, CustomRoleID: req.CustomRoleID}
		if err := service.UpdateMemberRole(ctx, companyID, userID, memberID, change); err != nil {
			writeServiceError(w, r, err, "Failed to update member role")
			return
		}

		roleName := ""
		if req.DefaultRole != nil {
			roleName = string(*req.DefaultRole)
		} else if req.CustomRoleID != nil {
			roleName = req.CustomRoleID.String()
		}
		if err := auditor.LogMemberRoleUpdated(ctx, companyID, userID, memberID, roleName); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// PermissionsUpdateRequest replaces a member's extra permission grants.
type PermissionsUpdateRequest struct {
	Permissions []rbac.Permission `json:"permissions"`
}

// HandleUpdateMemberPermissions handles PUT /api/v1/companies/{company_id}/members/{member_id}/permissions
func HandleUpdateMemberPermissions(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		memberID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		var req PermissionsUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		if err := service.UpdateMemberExtraPermissions(ctx, companyID, userID, memberID, req.Permissions); err != nil {
			writeServiceError(w, r, err, "Failed to update member permissions")
			return
		}

		raw := make([]string, 0, len(req.Permissions))
		for _, p := range req.Permissions {
			raw = append(raw, string(p))
		}
		if err := auditor.LogMemberPermissionsUpdated(ctx, companyID, userID, memberID, raw); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// HandleRemoveMember handles DELETE /api/v1/companies/{company_id}/members/{member_id}
func HandleRemoveMember(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		memberID, err := uuid.Parse(chi.URLParam(r, "member_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid member ID")
			return
		}

		service := NewService(pool)
		if _, err := service.RemoveMember(ctx, companyID, userID, memberID); err != nil {
			writeServiceError(w, r, err, "Failed to remove member")
			return
		}

		if err := auditor.LogMemberRemoved(ctx, companyID, userID, memberID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "removed"})
	}
}

// TransferRequest names the member who becomes the new owner.
type TransferRequest struct {
	NewOwnerMemberID uuid.UUID `json:"new_owner_member_id"`
}

// HandleTransferOwnership handles POST /api/v1/companies/{company_id}/transfer-ownership
func HandleTransferOwnership(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		var req TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.NewOwnerMemberID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "new_owner_member_id is required")
			return
		}

		service := NewService(pool)
		if err := service.TransferOwnership(ctx, companyID, userID, req.NewOwnerMemberID); err != nil {
			writeServiceError(w, r, err, "Failed to transfer ownership")
			return
		}

		if err := auditor.LogOwnershipTransferred(ctx, companyID, userID, req.NewOwnerMemberID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "transferred"})
	}
}

// CustomRoleRequest carries the custom-role payload for create and update.
type CustomRoleRequest struct {
	Name        string            `json:"name"`
	Color       string            `json:"color"`
	Permissions []rbac.Permission `json:"permissions"`
}

// HandleCreateCustomRole handles POST /api/v1/companies/{company_id}/roles
func HandleCreateCustomRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		var req CustomRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		role, err := service.CreateCustomRole(ctx, companyID, userID, req.Name, req.Color, req.Permissions)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create custom role")
			return
		}

		if err := auditor.LogCustomRoleCreated(ctx, companyID, userID, role.ID, role.Name); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, role)
	}
}

// HandleListCustomRoles handles GET /api/v1/companies/{company_id}/roles
func HandleListCustomRoles(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool)
		if _, _, err := service.RequireActiveMember(ctx, userID, companyID); err != nil {
			writeServiceError(w, r, err, "Failed to check membership")
			return
		}

		roles, err := service.ListCustomRoles(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list custom roles")
			apperrors.WriteInternalError(w, r, "Failed to list custom roles")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"roles": roles})
	}
}

// HandleUpdateCustomRole handles PUT /api/v1/companies/{company_id}/roles/{role_id}
func HandleUpdateCustomRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role ID")
			return
		}

		var req CustomRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool)
		if err := service.UpdateCustomRole(ctx, companyID, userID, roleID, req.Name, req.Color, req.Permissions); err != nil {
			writeServiceError(w, r, err, "Failed to update custom role")
			return
		}

		if err := auditor.LogCustomRoleUpdated(ctx, companyID, userID, roleID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// HandleDeleteCustomRole handles DELETE /api/v1/companies/{company_id}/roles/{role_id}
func HandleDeleteCustomRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		roleID, err := uuid.Parse(chi.URLParam(r, "role_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role ID")
			return
		}

		service := NewService(pool)
		if err := service.DeleteCustomRole(ctx, companyID, userID, roleID); err != nil {
			writeServiceError(w, r, err, "Failed to delete custom role")
			return
		}

		if err := auditor.LogCustomRoleDeleted(ctx, companyID, userID, roleID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// HandleAuditLog handles GET /api/v1/companies/{company_id}/audit.
// Requires MANAGE_MEMBERS: the log exposes member emails and role history.
func HandleAuditLog(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		service := NewService(pool)
		if _, err := service.RequirePermission(ctx, userID, companyID, rbac.PermManageMembers); err != nil {
			writeServiceError(w, r, err, "Failed to check permissions")
			return
		}

		reader := audit.NewReader(pool)
		items, err := reader.ListByCompany(ctx, companyID, 100)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read audit log")
			apperrors.WriteInternalError(w, r, "Failed to read audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"events": items})
	}
}
