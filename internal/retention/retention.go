package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DeleteExpiredInvitations deletes unaccepted invitations whose expiry passed
// more than the specified days ago. Accepted invitations are kept as the
// membership provenance record. The function is idempotent - safe to run
// repeatedly.
//
// Returns the number of rows deleted.
func DeleteExpiredInvitations(ctx context.Context, pool *pgxpool.Pool, graceDays int) (int64, error) {
	query := `
		DELETE FROM invitations
		WHERE accepted_at IS NULL
		  AND expires_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, graceDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteOldAuditEntries deletes audit_log rows older than the specified days.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func DeleteOldAuditEntries(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	query := `
		DELETE FROM audit_log
		WHERE created_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteReadNotifications deletes notifications that were read more than the
// specified days ago. Unread notifications are never purged.
//
// Returns the number of rows deleted.
func DeleteReadNotifications(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE read_at IS NOT NULL
		  AND read_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunRetentionJob executes all retention operations and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, pool *pgxpool.Pool, inviteGraceDays, auditDays, notificationDays int) error {
	log.Info().
		Int("invite_grace_days", inviteGraceDays).
		Int("audit_retention_days", auditDays).
		Int("notification_retention_days", notificationDays).
		Msg("Starting retention job")

	startTime := time.Now()

	invitesDeleted, err := DeleteExpiredInvitations(ctx, pool, inviteGraceDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete expired invitations")
		return fmt.Errorf("invitation cleanup failed: %w", err)
	}

	auditDeleted, err := DeleteOldAuditEntries(ctx, pool, auditDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete old audit entries")
		return fmt.Errorf("audit cleanup failed: %w", err)
	}

	notificationsDeleted, err := DeleteReadNotifications(ctx, pool, notificationDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete read notifications")
		return fmt.Errorf("notification cleanup failed: %w", err)
	}

	duration := time.Since(startTime)

	log.Info().
		Int64("invitations_deleted", invitesDeleted).
		Int64("audit_entries_deleted", auditDeleted).
		Int64("notifications_deleted", notificationsDeleted).
		Dur("duration", duration).
		Msg("Retention job completed")

	return nil
}
