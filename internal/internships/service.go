package internships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notifier delivers best-effort student notifications for review outcomes and
// interview slots.
type Notifier interface {
	ApplicationReviewed(ctx context.Context, studentUserID uuid.UUID, internshipTitle, status string)
	InterviewScheduled(ctx context.Context, studentUserID uuid.UUID, internshipTitle string, scheduledAt time.Time)
}

// Service manages internship postings, applications and interviews.
type Service struct {
	pool      *pgxpool.Pool
	companies *companies.Service
	notifier  Notifier
}

func NewService(pool *pgxpool.Pool, companySvc *companies.Service, notifier Notifier) *Service {
	return &Service{pool: pool, companies: companySvc, notifier: notifier}
}

func validatePosting(title, description, location string) error {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 160 {
		return fmt.Errorf("%w: title must be 1-160 characters", ErrInvalidPosting)
	}
	if len(description) > 20000 {
		return fmt.Errorf("%w: description is too long", ErrInvalidPosting)
	}
	if len(location) > 120 {
		return fmt.Errorf("%w: location is too long", ErrInvalidPosting)
	}
	return nil
}

// Create publishes a new OPEN posting for the company.
func (s *Service) Create(ctx context.Context, companyID, actorUserID uuid.UUID, title, description, location string) (*Internship, error) {
	if err := validatePosting(title, description, location); err != nil {
		return nil, err
	}

	member, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermCreateInternships)
	if err != nil {
		return nil, err
	}

	var in Internship
	err = s.pool.QueryRow(ctx, `
		INSERT INTO internships (company_id, title, description, location, created_by_member_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, company_id, title, description, location, status,
		          created_by_member_id, created_at, updated_at
	`, companyID, strings.TrimSpace(title), description, location, member.ID).Scan(
		&in.ID, &in.CompanyID, &in.Title, &in.Description, &in.Location,
		&in.Status, &in.CreatedByMemberID, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create internship: %w", err)
	}

	return &in, nil
}

// Update edits a posting's content or opens/closes it.
func (s *Service) Update(ctx context.Context, companyID, actorUserID, internshipID uuid.UUID, title, description, location string, status InternshipStatus) (*Internship, error) {
	if err := validatePosting(title, description, location); err != nil {
		return nil, err
	}
	if status != StatusOpen && status != StatusClosed {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPosting, status)
	}

	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermEditInternships); err != nil {
		return nil, err
	}

	var in Internship
	err := s.pool.QueryRow(ctx, `
		UPDATE internships
		SET title = $3, description = $4, location = $5, status = $6, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING id, company_id, title, description, location, status,
		          created_by_member_id, created_at, updated_at
	`, internshipID, companyID, strings.TrimSpace(title), description, location, status).Scan(
		&in.ID, &in.CompanyID, &in.Title, &in.Description, &in.Location,
		&in.Status, &in.CreatedByMemberID, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInternshipNotFound
		}
		return nil, fmt.Errorf("failed to update internship: %w", err)
	}

	return &in, nil
}

// Delete removes a posting and, via cascade, its applications and interviews.
func (s *Service) Delete(ctx context.Context, companyID, actorUserID, internshipID uuid.UUID) error {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermDeleteInternships); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM internships WHERE id = $1 AND company_id = $2
	`, internshipID, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete internship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInternshipNotFound
	}

	return nil
}

// Get fetches a single posting.
func (s *Service) Get(ctx context.Context, internshipID uuid.UUID) (*Internship, error) {
	var in Internship
	err := s.pool.QueryRow(ctx, `
		SELECT id, company_id, title, description, location, status,
		       created_by_member_id, created_at, updated_at
		FROM internships
		WHERE id = $1
	`, internshipID).Scan(
		&in.ID, &in.CompanyID, &in.Title, &in.Description, &in.Location,
		&in.Status, &in.CreatedByMemberID, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInternshipNotFound
		}
		return nil, fmt.Errorf("failed to get internship: %w", err)
	}
	return &in, nil
}

// ListByCompany returns all of a company's postings, newest first.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Internship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, title, description, location, status,
		       created_by_member_id, created_at, updated_at
		FROM internships
		WHERE company_id = $1
		ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list internships: %w", err)
	}
	defer rows.Close()

	var out []Internship
	for rows.Next() {
		var in Internship
		if err := rows.Scan(
			&in.ID, &in.CompanyID, &in.Title, &in.Description, &in.Location,
			&in.Status, &in.CreatedByMemberID, &in.CreatedAt, &in.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan internship: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating internships: %w", err)
	}

	return out, nil
}

// ListOpen returns OPEN postings across all companies for student browsing.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]Internship, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, title, description, location, status,
		       created_by_member_id, created_at, updated_at
		FROM internships
		WHERE status = 'OPEN'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open internships: %w", err)
	}
	defer rows.Close()

	var out []Internship
	for rows.Next() {
		var in Internship
		if err := rows.Scan(
			&in.ID, &in.CompanyID, &in.Title, &in.Description, &in.Location,
			&in.Status, &in.CreatedByMemberID, &in.CreatedAt, &in.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan internship: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating internships: %w", err)
	}

	return out, nil
}

// Apply submits the authenticated student's application to an OPEN posting.
// One application per student per posting.
func (s *Service) Apply(ctx context.Context, internshipID, studentUserID uuid.UUID, coverLetter string) (*Application, error) {
	if len(coverLetter) > 20000 {
		return nil, fmt.Errorf("%w: cover letter is too long", ErrInvalidPosting)
	}

	var accountType string
	err := s.pool.QueryRow(ctx, `
		SELECT account_type FROM users WHERE id = $1
	`, studentUserID).Scan(&accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if accountType != "student" {
		return nil, ErrNotStudent
	}

	internship, err := s.Get(ctx, internshipID)
	if err != nil {
		return nil, err
	}
	if internship.Status != StatusOpen {
		return nil, ErrInternshipClosed
	}

	var app Application
	err = s.pool.QueryRow(ctx, `
		INSERT INTO applications (internship_id, student_user_id, cover_letter)
		VALUES ($1, $2, $3)
		RETURNING id, internship_id, student_user_id, cover_letter, status, created_at, updated_at
	`, internshipID, studentUserID, coverLetter).Scan(
		&app.ID, &app.InternshipID, &app.StudentUserID, &app.CoverLetter,
		&app.Status, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &app, nil
}

// ListApplications returns a posting's applications with applicant profiles.
// The actor needs VIEW_APPLICATIONS in the posting's company.
func (s *Service) ListApplications(ctx context.Context, companyID, actorUserID, internshipID uuid.UUID) ([]ApplicationInfo, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermViewApplications); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.internship_id, a.student_user_id, a.cover_letter,
		       a.status, a.created_at, a.updated_at,
		       u.email, u.full_name
		FROM applications a
		JOIN internships i ON i.id = a.internship_id
		JOIN users u ON u.id = a.student_user_id
		WHERE a.internship_id = $1 AND i.company_id = $2
		ORDER BY a.created_at ASC
	`, internshipID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var out []ApplicationInfo
	for rows.Next() {
		var info ApplicationInfo
		if err := rows.Scan(
			&info.ID, &info.InternshipID, &info.StudentUserID, &info.CoverLetter,
			&info.Status, &info.CreatedAt, &info.UpdatedAt,
			&info.StudentEmail, &info.StudentFullName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return out, nil
}

// ListMyApplications returns the student's own applications, newest first.
func (s *Service) ListMyApplications(ctx context.Context, studentUserID uuid.UUID) ([]Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, internship_id, student_user_id, cover_letter, status, created_at, updated_at
		FROM applications
		WHERE student_user_id = $1
		ORDER BY created_at DESC
	`, studentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(
			&app.ID, &app.InternshipID, &app.StudentUserID, &app.CoverLetter,
			&app.Status, &app.CreatedAt, &app.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return out, nil
}

// ReviewApplication moves an application to a new status and notifies the
// student. The actor needs REVIEW_APPLICATIONS in the posting's company.
func (s *Service) ReviewApplication(ctx context.Context, companyID, actorUserID, applicationID uuid.UUID, status ApplicationStatus) (*Application, error) {
	if !status.IsValid() || status == ApplicationSubmitted {
		return nil, ErrInvalidStatus
	}

	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermReviewApplications); err != nil {
		return nil, err
	}

	var app Application
	var internshipTitle string
	err := s.pool.QueryRow(ctx, `
		UPDATE applications a
		SET status = $3, updated_at = NOW()
		FROM internships i
		WHERE a.id = $1 AND a.internship_id = i.id AND i.company_id = $2
		RETURNING a.id, a.internship_id, a.student_user_id, a.cover_letter,
		          a.status, a.created_at, a.updated_at, i.title
	`, applicationID, companyID, status).Scan(
		&app.ID, &app.InternshipID, &app.StudentUserID, &app.CoverLetter,
		&app.Status, &app.CreatedAt, &app.UpdatedAt, &internshipTitle,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to review application: %w", err)
	}

	s.notifier.ApplicationReviewed(ctx, app.StudentUserID, internshipTitle, string(app.Status))

	return &app, nil
}

// ScheduleInterview creates an interview slot on an application and notifies
// the student. The actor needs SCHEDULE_INTERVIEWS in the posting's company.
func (s *Service) ScheduleInterview(ctx context.Context, companyID, actorUserID, applicationID uuid.UUID, scheduledAt time.Time, location, notes string) (*Interview, error) {
	if scheduledAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: interview must be scheduled in the future", ErrInvalidPosting)
	}
	if len(location) > 160 {
		return nil, fmt.Errorf("%w: location is too long", ErrInvalidPosting)
	}

	member, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermScheduleInterviews)
	if err != nil {
		return nil, err
	}

	var studentUserID uuid.UUID
	var internshipTitle string
	err = s.pool.QueryRow(ctx, `
		SELECT a.student_user_id, i.title
		FROM applications a
		JOIN internships i ON i.id = a.internship_id
		WHERE a.id = $1 AND i.company_id = $2
	`, applicationID, companyID).Scan(&studentUserID, &internshipTitle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to load application: %w", err)
	}

	var iv Interview
	err = s.pool.QueryRow(ctx, `
		INSERT INTO interviews (application_id, scheduled_at, location, notes, created_by_member_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, application_id, scheduled_at, location, notes, created_by_member_id, created_at
	`, applicationID, scheduledAt.UTC(), location, notes, member.ID).Scan(
		&iv.ID, &iv.ApplicationID, &iv.ScheduledAt, &iv.Location,
		&iv.Notes, &iv.CreatedByMemberID, &iv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule interview: %w", err)
	}

	s.notifier.InterviewScheduled(ctx, studentUserID, internshipTitle, iv.ScheduledAt)

	return &iv, nil
}

// ListInterviews returns the interviews of an application. The actor needs
// MANAGE_INTERVIEWS in the posting's company.
func (s *Service) ListInterviews(ctx context.Context, companyID, actorUserID, applicationID uuid.UUID) ([]Interview, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermManageInterviews); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT iv.id, iv.application_id, iv.scheduled_at, iv.location, iv.notes,
		       iv.created_by_member_id, iv.created_at
		FROM interviews iv
		JOIN applications a ON a.id = iv.application_id
		JOIN internships i ON i.id = a.internship_id
		WHERE iv.application_id = $1 AND i.company_id = $2
		ORDER BY iv.scheduled_at ASC
	`, applicationID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		var iv Interview
		if err := rows.Scan(
			&iv.ID, &iv.ApplicationID, &iv.ScheduledAt, &iv.Location,
			&iv.Notes, &iv.CreatedByMemberID, &iv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interview: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interviews: %w", err)
	}

	return out, nil
}
