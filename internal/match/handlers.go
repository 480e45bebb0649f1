package match

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/internships"
	"github.com/rs/zerolog/log"
)

// HandleSuggestCandidates handles POST /api/v1/companies/{company_id}/internships/{internship_id}/suggestions
func HandleSuggestCandidates(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}
		internshipID, err := uuid.Parse(chi.URLParam(r, "internship_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid internship ID")
			return
		}

		suggestions, err := service.SuggestCandidates(ctx, companyID, userID, internshipID)
		if err != nil {
			var permDenied *companies.PermissionDeniedError
			switch {
			case errors.As(err, &permDenied):
				apperrors.WriteForbidden(w, r, "Insufficient permissions")
			case errors.Is(err, internships.ErrInternshipNotFound):
				apperrors.WriteNotFound(w, r, "Internship not found")
			case errors.Is(err, ErrNotConfigured):
				apperrors.WriteServiceUnavailable(w, r, "Candidate matching is not configured")
			default:
				log.Error().Err(err).Msg("Failed to generate suggestions")
				apperrors.WriteInternalError(w, r, "Failed to generate suggestions")
			}
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"suggestions": suggestions})
	}
}
