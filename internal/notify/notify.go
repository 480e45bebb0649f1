package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	KindInviteReceived      = "invite.received"
	KindInviteAccepted      = "invite.accepted"
	KindMemberJoinedViaCode = "member.joined_via_code"
	KindApplicationReviewed = "application.reviewed"
	KindInterviewScheduled  = "interview.scheduled"
)

// Notification is one in-app notification row.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Service fans out events to in-app notifications and email. It satisfies the
// invites.Notifier contract: nothing here ever fails the caller.
type Service struct {
	pool    *pgxpool.Pool
	email   *EmailClient
	baseURL string
}

func NewService(pool *pgxpool.Pool, email *EmailClient, baseURL string) *Service {
	return &Service{pool: pool, email: email, baseURL: baseURL}
}

// write stores one in-app notification. Failures are logged at WARN level and
// swallowed.
func (s *Service) write(ctx context.Context, userID uuid.UUID, kind string, payload map[string]any) {
	payloadJSON := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("Failed to marshal notification payload")
			return
		}
		payloadJSON = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, kind, payload)
		VALUES ($1, $2, $3)
	`, userID, kind, payloadJSON)
	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", kind).
			Str("user_id", userID.String()).
			Msg("Failed to write notification")
		return
	}

	log.Info().
		Str("kind", kind).
		Str("user_id", userID.String()).
		Msg("Notification written")
}

// InviteCreated emails the invitee. The invitee may not have an account yet,
// so there is no in-app notification for this event.
func (s *Service) InviteCreated(ctx context.Context, email, companyName, token string) {
	inviteURL := fmt.Sprintf("%s/invites/%s", s.baseURL, token)
	subject := fmt.Sprintf("You have been invited to join %s", companyName)
	s.email.Send(ctx, email, subject, inviteEmailBody(companyName, inviteURL))
}

// InviteAccepted notifies the inviter in-app that their invitation was taken.
func (s *Service) InviteAccepted(ctx context.Context, inviterUserID uuid.UUID, inviteeEmail, companyName string) {
	s.write(ctx, inviterUserID, KindInviteAccepted, map[string]any{
		"invitee_email": inviteeEmail,
		"company_name":  companyName,
	})
}

// MemberJoinedViaCode notifies the company owner that someone redeemed the
// join code.
func (s *Service) MemberJoinedViaCode(ctx context.Context, companyID uuid.UUID, memberEmail string) {
	var ownerUserID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM company_members
		WHERE company_id = $1 AND default_role = 'OWNER' AND status = 'ACTIVE'
	`, companyID).Scan(&ownerUserID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("company_id", companyID.String()).
			Msg("Failed to resolve company owner for notification")
		return
	}

	s.write(ctx, ownerUserID, KindMemberJoinedViaCode, map[string]any{
		"member_email": memberEmail,
	})
}

// ApplicationReviewed notifies the student that their application status moved.
func (s *Service) ApplicationReviewed(ctx context.Context, studentUserID uuid.UUID, internshipTitle, status string) {
	s.write(ctx, studentUserID, KindApplicationReviewed, map[string]any{
		"internship_title": internshipTitle,
		"status":           status,
	})
}

// InterviewScheduled notifies the student of a new interview slot.
func (s *Service) InterviewScheduled(ctx context.Context, studentUserID uuid.UUID, internshipTitle string, scheduledAt time.Time) {
	s.write(ctx, studentUserID, KindInterviewScheduled, map[string]any{
		"internship_title": internshipTitle,
		"scheduled_at":     scheduledAt.UTC().Format(time.RFC3339),
	})
}

// List returns the user's most recent notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, payload, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var payloadRaw []byte
		if err := rows.Scan(&n.ID, &n.Kind, &payloadRaw, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Payload = map[string]any{}
		if len(payloadRaw) > 0 {
			_ = json.Unmarshal(payloadRaw, &n.Payload)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return out, nil
}

// MarkRead stamps a single notification as read. Marking an already-read
// notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead stamps every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read_at = NOW()
		WHERE user_id = $1 AND read_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
