package internships

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InternshipStatus controls whether a posting accepts new applications.
type InternshipStatus string

const (
	StatusOpen   InternshipStatus = "OPEN"
	StatusClosed InternshipStatus = "CLOSED"
)

// ApplicationStatus tracks an application through review.
type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "SUBMITTED"
	ApplicationInReview  ApplicationStatus = "IN_REVIEW"
	ApplicationAccepted  ApplicationStatus = "ACCEPTED"
	ApplicationRejected  ApplicationStatus = "REJECTED"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationSubmitted, ApplicationInReview, ApplicationAccepted, ApplicationRejected:
		return true
	}
	return false
}

var (
	ErrInvalidPosting      = errors.New("invalid posting")
	ErrInternshipNotFound  = errors.New("internship not found")
	ErrInternshipClosed    = errors.New("internship is closed")
	ErrAlreadyApplied      = errors.New("you have already applied to this internship")
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidStatus       = errors.New("invalid application status")
	ErrNotStudent          = errors.New("only student accounts can apply")
)

// Internship is a company's posting.
type Internship struct {
	ID                uuid.UUID        `db:"id" json:"id"`
	CompanyID         uuid.UUID        `db:"company_id" json:"company_id"`
	Title             string           `db:"title" json:"title"`
	Description       string           `db:"description" json:"description"`
	Location          string           `db:"location" json:"location"`
	Status            InternshipStatus `db:"status" json:"status"`
	CreatedByMemberID uuid.UUID        `db:"created_by_member_id" json:"created_by_member_id"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// Application is a student's application to an internship.
type Application struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	InternshipID  uuid.UUID         `db:"internship_id" json:"internship_id"`
	StudentUserID uuid.UUID         `db:"student_user_id" json:"student_user_id"`
	CoverLetter   string            `db:"cover_letter" json:"cover_letter"`
	Status        ApplicationStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationInfo is an application joined with the applicant's profile for
// company-side review listings.
type ApplicationInfo struct {
	Application
	StudentEmail    string `db:"student_email" json:"student_email"`
	StudentFullName string `db:"student_full_name" json:"student_full_name"`
}

// Interview is a scheduled interview slot for an application.
type Interview struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ApplicationID     uuid.UUID `db:"application_id" json:"application_id"`
	ScheduledAt       time.Time `db:"scheduled_at" json:"scheduled_at"`
	Location          string    `db:"location" json:"location"`
	Notes             string    `db:"notes" json:"notes"`
	CreatedByMemberID uuid.UUID `db:"created_by_member_id" json:"created_by_member_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
