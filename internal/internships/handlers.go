package internships

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/apperrors"
	"github.com/internhub/internhub/internal/audit"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/companies"
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

func writeInternshipError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var permDenied *companies.PermissionDeniedError
	switch {
	case errors.As(err, &permDenied):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, companies.ErrNotMember):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, ErrInternshipNotFound):
		apperrors.WriteNotFound(w, r, "Internship not found")
	case errors.Is(err, ErrInternshipClosed):
		apperrors.WriteConflict(w, r, "Internship is closed")
	case errors.Is(err, ErrAlreadyApplied):
		apperrors.WriteConflict(w, r, "You have already applied to this internship")
	case errors.Is(err, ErrApplicationNotFound):
		apperrors.WriteNotFound(w, r, "Application not found")
	case errors.Is(err, ErrInvalidStatus):
		apperrors.WriteBadRequest(w, r, "Invalid application status")
	case errors.Is(err, ErrInvalidPosting):
		apperrors.WriteBadRequest(w, r, err.Error())
	case errors.Is(err, ErrNotStudent):
		apperrors.WriteForbidden(w, r, "Only student accounts can apply")
	default:
		log.Error().Err(err).Msg(fallback)
		apperrors.WriteInternalError(w, r, fallback)
	}
}

// PostingRequest is the create/update payload for a posting.
type PostingRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Status      InternshipStatus `json:"status,omitempty"`
}

// HandleCreateInternship handles POST /api/v1/companies/{company_id}/internships
func HandleCreateInternship(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		var req PostingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, companySvc, notifier)
		internship, err := service.Create(ctx, companyID, userID, req.Title, req.Description, req.Location)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to create internship")
			return
		}

		if err := auditor.LogInternshipCreated(ctx, companyID, userID, internship.ID, internship.Title); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, internship)
	}
}

// HandleUpdateInternship handles PUT /api/v1/companies/{company_id}/internships/{internship_id}
func HandleUpdateInternship(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		internshipID, err := uuid.Parse(chi.URLParam(r, "internship_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid internship ID")
			return
		}

		var req PostingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Status == "" {
			req.Status = StatusOpen
		}

		service := NewService(pool, companySvc, notifier)
		internship, err := service.Update(ctx, companyID, userID, internshipID, req.Title, req.Description, req.Location, req.Status)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to update internship")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, internship)
	}
}

// HandleDeleteInternship handles DELETE /api/v1/companies/{company_id}/internships/{internship_id}
func HandleDeleteInternship(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		internshipID, err := uuid.Parse(chi.URLParam(r, "internship_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid internship ID")
			return
		}

		service := NewService(pool, companySvc, notifier)
		if err := service.Delete(ctx, companyID, userID, internshipID); err != nil {
			writeInternshipError(w, r, err, "Failed to delete internship")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// HandleListCompanyInternships handles GET /api/v1/companies/{company_id}/internships
func HandleListCompanyInternships(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}

		if _, _, err := companySvc.RequireActiveMember(ctx, userID, companyID); err != nil {
			writeInternshipError(w, r, err, "Failed to check membership")
			return
		}

		service := NewService(pool, companySvc, notifier)
		items, err := service.ListByCompany(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list internships")
			apperrors.WriteInternalError(w, r, "Failed to list internships")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"internships": items})
	}
}

// HandleListOpenInternships handles GET /api/v1/internships
func HandleListOpenInternships(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		service := NewService(pool, companySvc, notifier)
		items, err := service.ListOpen(ctx, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list open internships")
			apperrors.WriteInternalError(w, r, "Failed to list internships")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"internships": items})
	}
}

// ApplyRequest carries the student's cover letter.
type ApplyRequest struct {
	CoverLetter string `json:"cover_letter"`
}

// HandleApply handles POST /api/v1/internships/{internship_id}/apply
func HandleApply(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		internshipID, err := uuid.Parse(chi.URLParam(r, "internship_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid internship ID")
			return
		}

		var req ApplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, companySvc, notifier)
		app, err := service.Apply(ctx, internshipID, userID, req.CoverLetter)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to submit application")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, app)
	}
}

// HandleListMyApplications handles GET /api/v1/applications
func HandleListMyApplications(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		service := NewService(pool, companySvc, notifier)
		apps, err := service.ListMyApplications(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list applications")
			apperrors.WriteInternalError(w, r, "Failed to list applications")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"applications": apps})
	}
}

// HandleListApplications handles GET /api/v1/companies/{company_id}/internships/{internship_id}/applications
func HandleListApplications(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		internshipID, err := uuid.Parse(chi.URLParam(r, "internship_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid internship ID")
			return
		}

		service := NewService(pool, companySvc, notifier)
		apps, err := service.ListApplications(ctx, companyID, userID, internshipID)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to list applications")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"applications": apps})
	}
}

// ReviewRequest moves an application to a new status.
type ReviewRequest struct {
	Status ApplicationStatus `json:"status"`
}

// HandleReviewApplication handles PUT /api/v1/companies/{company_id}/applications/{application_id}/status
func HandleReviewApplication(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		applicationID, err := uuid.Parse(chi.URLParam(r, "application_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid application ID")
			return
		}

		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, companySvc, notifier)
		app, err := service.ReviewApplication(ctx, companyID, userID, applicationID, req.Status)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to review application")
			return
		}

		if err := auditor.LogApplicationReviewed(ctx, companyID, userID, app.ID, string(app.Status)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, app)
	}
}

// ScheduleRequest creates an interview slot.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
}

// HandleScheduleInterview handles POST /api/v1/companies/{company_id}/applications/{application_id}/interviews
func HandleScheduleInterview(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		applicationID, err := uuid.Parse(chi.URLParam(r, "application_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid application ID")
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.ScheduledAt.IsZero() {
			apperrors.WriteBadRequest(w, r, "scheduled_at is required")
			return
		}

		service := NewService(pool, companySvc, notifier)
		interview, err := service.ScheduleInterview(ctx, companyID, userID, applicationID, req.ScheduledAt, req.Location, req.Notes)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to schedule interview")
			return
		}

		if err := auditor.LogInterviewScheduled(ctx, companyID, userID, interview.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, interview)
	}
}

// HandleListInterviews handles GET /api/v1/companies/{company_id}/applications/{application_id}/interviews
func HandleListInterviews(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		companyID, ok := parseCompanyID(w, r)
		if !ok {
			return
		}
		applicationID, err := uuid.Parse(chi.URLParam(r, "application_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid application ID")
			return
		}

		service := NewService(pool, companySvc, notifier)
		interviews, err := service.ListInterviews(ctx, companyID, userID, applicationID)
		if err != nil {
			writeInternshipError(w, r, err, "Failed to list interviews")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"interviews": interviews})
	}
}
