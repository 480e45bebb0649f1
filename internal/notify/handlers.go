package notify

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/auth"
	"github.com/rs/zerolog/log"
)

// HandleList handles GET /api/v1/notifications
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		limit := 25
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		items, err := service.List(ctx, userID, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list notifications")
			apperrors.WriteInternalError(w, r, "Failed to list notifications")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"notifications": items})
	}
}

// HandleMarkRead handles POST /api/v1/notifications/{notification_id}/read
func HandleMarkRead(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		notificationID, err := uuid.Parse(chi.URLParam(r, "notification_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid notification ID")
			return
		}

		if err := service.MarkRead(ctx, userID, notificationID); err != nil {
			log.Error().Err(err).Msg("Failed to mark notification read")
			apperrors.WriteInternalError(w, r, "Failed to mark notification read")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "read"})
	}
}

// HandleMarkAllRead handles POST /api/v1/notifications/read-all
func HandleMarkAllRead(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		if err := service.MarkAllRead(ctx, userID); err != nil {
			log.Error().Err(err).Msg("Failed to mark notifications read")
			apperrors.WriteInternalError(w, r, "Failed to mark notifications read")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "read"})
	}
}
