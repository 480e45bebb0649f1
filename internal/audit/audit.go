package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventUserSignup               = "user.signup"
	EventLoginFailed              = "auth.login_failed"
	EventCompanyCreated           = "company.created"
	EventInviteCreated            = "invite.created"
	EventInviteRevoked            = "invite.revoked"
	EventInviteAccepted           = "invite.accepted"
	EventInviteDeclined           = "invite.declined"
	EventMemberRoleUpdated        = "member.role_updated"
	EventMemberPermissionsUpdated = "member.permissions_updated"
	EventMemberRemoved            = "member.removed"
	EventMemberJoinedViaCode      = "member.joined_via_code"
	EventCodeRegenerated          = "code.regenerated"
	EventCodeSettingsUpdated      = "code.settings_updated"
	EventOwnershipTransferred     = "ownership.transferred"
	EventCustomRoleCreated        = "custom_role.created"
	EventCustomRoleUpdated        = "custom_role.updated"
	EventCustomRoleDeleted        = "custom_role.deleted"
	EventInternshipCreated        = "internship.created"
	EventInternshipUpdated        = "internship.updated"
	EventInternshipDeleted        = "internship.deleted"
	EventApplicationSubmitted     = "application.submitted"
	EventApplicationReviewed      = "application.reviewed"
	EventInterviewScheduled       = "interview.scheduled"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	CompanyID   uuid.NullUUID          `db:"company_id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	CompanyID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (company_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`

	companyID := toNullUUID(params.CompanyID)
	actorUserID := toNullUUID(params.ActorUserID)

	_, err := w.pool.Exec(ctx, query, companyID, actorUserID, params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("company_id", params.CompanyID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogUserSignup(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserSignup,
		Meta: map[string]interface{}{
			"email": email,
		},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogCompanyCreated(ctx context.Context, companyID, userID uuid.UUID, slug string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventCompanyCreated,
		Meta: map[string]interface{}{
			"slug": slug,
		},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, companyID, actorUserID, inviteID uuid.UUID, email, role string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInviteCreated,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
			"role":      role,
		},
	})
}

func (w *Writer) LogInviteRevoked(ctx context.Context, companyID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInviteRevoked,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, companyID, userID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogInviteDeclined(ctx context.Context, companyID, userID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventInviteDeclined,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogMemberRoleUpdated(ctx context.Context, companyID, actorUserID, memberID uuid.UUID, role string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRoleUpdated,
		Meta: map[string]interface{}{
			"member_id": memberID.String(),
			"role":      role,
		},
	})
}

func (w *Writer) LogMemberPermissionsUpdated(ctx context.Context, companyID, actorUserID, memberID uuid.UUID, permissions []string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventMemberPermissionsUpdated,
		Meta: map[string]interface{}{
			"member_id":   memberID.String(),
			"permissions": permissions,
		},
	})
}

func (w *Writer) LogMemberRemoved(ctx context.Context, companyID, actorUserID, memberID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRemoved,
		Meta: map[string]interface{}{
			"member_id": memberID.String(),
		},
	})
}

func (w *Writer) LogMemberJoinedViaCode(ctx context.Context, companyID, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &userID,
		Action:      EventMemberJoinedViaCode,
	})
}

func (w *Writer) LogCodeRegenerated(ctx context.Context, companyID, actorUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventCodeRegenerated,
	})
}

func (w *Writer) LogCodeSettingsUpdated(ctx context.Context, companyID, actorUserID uuid.UUID, meta map[string]interface{}) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventCodeSettingsUpdated,
		Meta:        meta,
	})
}

func (w *Writer) LogOwnershipTransferred(ctx context.Context, companyID, actorUserID, newOwnerMemberID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventOwnershipTransferred,
		Meta: map[string]interface{}{
			"new_owner_member_id": newOwnerMemberID.String(),
		},
	})
}

func (w *Writer) LogCustomRoleCreated(ctx context.Context, companyID, actorUserID, roleID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventCustomRoleCreated,
		Meta: map[string]interface{}{
			"role_id": roleID.String(),
			"name":    name,
		},
	})
}

func (w *Writer) LogCustomRoleUpdated(ctx context.Context, companyID, actorUserID, roleID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventCustomRoleUpdated,
		Meta: map[string]interface{}{
			"role_id": roleID.String(),
		},
	})
}

func (w *Writer) LogCustomRoleDeleted(ctx context.Context, companyID, actorUserID, roleID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventCustomRoleDeleted,
		Meta: map[string]interface{}{
			"role_id": roleID.String(),
		},
	})
}

func (w *Writer) LogInternshipCreated(ctx context.Context, companyID, actorUserID, internshipID uuid.UUID, title string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInternshipCreated,
		Meta: map[string]interface{}{
			"internship_id": internshipID.String(),
			"title":         title,
		},
	})
}

func (w *Writer) LogApplicationReviewed(ctx context.Context, companyID, actorUserID, applicationID uuid.UUID, status string) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventApplicationReviewed,
		Meta: map[string]interface{}{
			"application_id": applicationID.String(),
			"status":         status,
		},
	})
}

func (w *Writer) LogInterviewScheduled(ctx context.Context, companyID, actorUserID, interviewID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CompanyID:   &companyID,
		ActorUserID: &actorUserID,
		Action:      EventInterviewScheduled,
		Meta: map[string]interface{}{
			"interview_id": interviewID.String(),
		},
	})
}
