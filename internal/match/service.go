package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/internships"
	"github.com/internhub/internhub/internal/rbac"
)

// Suggestion is a generated match summary for one application.
type Suggestion struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Summary       string    `json:"summary"`
}

// Service ranks a posting's applicants with a generated summary.
type Service struct {
	client      *Client
	companies   *companies.Service
	internships *internships.Service
}

func NewService(client *Client, companySvc *companies.Service, internshipSvc *internships.Service) *Service {
	return &Service{client: client, companies: companySvc, internships: internshipSvc}
}

// SuggestCandidates generates a short match summary for each application on a
// posting. The actor needs VIEW_CANDIDATES in the posting's company.
func (s *Service) SuggestCandidates(ctx context.Context, companyID, actorUserID, internshipID uuid.UUID) ([]Suggestion, error) {
	if _, err := s.companies.RequirePermission(ctx, actorUserID, companyID, rbac.PermViewCandidates); err != nil {
		return nil, err
	}

	internship, err := s.internships.Get(ctx, internshipID)
	if err != nil {
		return nil, err
	}
	if internship.CompanyID != companyID {
		return nil, internships.ErrInternshipNotFound
	}

	apps, err := s.internships.ListApplications(ctx, companyID, actorUserID, internshipID)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(apps))
	for _, app := range apps {
		summary, err := s.client.Generate(ctx, buildPrompt(internship, app))
		if err != nil {
			return nil, fmt.Errorf("failed to generate suggestion for application %s: %w", app.ID, err)
		}
		out = append(out, Suggestion{
			ApplicationID: app.ID,
			Summary:       strings.TrimSpace(summary),
		})
	}

	return out, nil
}

func buildPrompt(in *internships.Internship, app internships.ApplicationInfo) string {
	var b strings.Builder
	b.WriteString("Summarize in two sentences how well this applicant fits the internship.\n\n")
	fmt.Fprintf(&b, "Internship: %s\n", in.Title)
	if in.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", in.Location)
	}
	fmt.Fprintf(&b, "Description: %s\n\n", truncate(in.Description, 2000))
	fmt.Fprintf(&b, "Applicant: %s\n", app.StudentFullName)
	fmt.Fprintf(&b, "Cover letter: %s\n", truncate(app.CoverLetter, 2000))
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
