package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/app"
	"github.com/internhub/internhub/internal/internships"
	"github.com/internhub/internhub/internal/notify"
	"github.com/stretchr/testify/require"
)

func TestE2E_Internships_ApplyReviewInterview_Notifications(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerBoot := newCSRFClient(t, srv.URL)
	studentClient, studentBoot := newCSRFClient(t, srv.URL)

	_, ownerCSRF := signupAndLogin(t, ownerClient, srv.URL, ownerBoot, "owner@example.com", "password123")
	_, studentCSRF := signupAndLogin(t, studentClient, srv.URL, studentBoot, "student@example.com", "password123")

	companyID := createCompany(t, ownerClient, srv.URL, ownerCSRF, "Initech", "initech")

	internship := createInternship(t, ownerClient, srv.URL, ownerCSRF, companyID, "Backend Intern", "Build APIs in Go", "Berlin")
	require.Equal(t, internships.StatusOpen, internship.Status)

	// Students browse open postings without any membership.
	open := listOpenInternships(t, studentClient, srv.URL)
	require.Len(t, open, 1)
	require.Equal(t, internship.ID, open[0].ID)

	// Company accounts cannot apply.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/internships/"+internship.ID.String()+"/apply", ownerCSRF, http.StatusForbidden, map[string]any{
			"cover_letter": "hi",
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	applyResp := doJSONExpectSuccess(t, studentClient, http.MethodPost, srv.URL+"/api/v1/internships/"+internship.ID.String()+"/apply", studentCSRF, http.StatusCreated, map[string]any{
		"cover_letter": "I would like to apply.",
	})

	var application internships.Application
	require.NoError(t, json.Unmarshal(applyResp.Data, &application))
	require.Equal(t, internships.ApplicationSubmitted, application.Status)

	// One application per student per posting.
	{
		errEnv := doJSONExpectError(t, studentClient, http.MethodPost, srv.URL+"/api/v1/internships/"+internship.ID.String()+"/apply", studentCSRF, http.StatusConflict, map[string]any{
			"cover_letter": "again",
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	mine := listMyApplications(t, studentClient, srv.URL)
	require.Len(t, mine, 1)
	require.Equal(t, application.ID, mine[0].ID)

	apps := listApplications(t, ownerClient, srv.URL, companyID, internship.ID)
	require.Len(t, apps, 1)
	require.Equal(t, "student@example.com", apps[0].StudentEmail)

	// Reviewing back to SUBMITTED is not a review.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/applications/"+application.ID.String()+"/status", ownerCSRF, http.StatusBadRequest, map[string]any{
			"status": string(internships.ApplicationSubmitted),
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	reviewResp := doJSONExpectSuccess(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/applications/"+application.ID.String()+"/status", ownerCSRF, http.StatusOK, map[string]any{
		"status": string(internships.ApplicationInReview),
	})
	var reviewed internships.Application
	require.NoError(t, json.Unmarshal(reviewResp.Data, &reviewed))
	require.Equal(t, internships.ApplicationInReview, reviewed.Status)

	// Interviews must sit in the future.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/applications/"+application.ID.String()+"/interviews", ownerCSRF, http.StatusBadRequest, map[string]any{
			"scheduled_at": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
			"location":     "Office",
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	scheduledAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	interviewResp := doJSONExpectSuccess(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/applications/"+application.ID.String()+"/interviews", ownerCSRF, http.StatusCreated, map[string]any{
		"scheduled_at": scheduledAt.Format(time.RFC3339),
		"location":     "Office 4B",
		"notes":        "Bring a laptop",
	})
	var interview internships.Interview
	require.NoError(t, json.Unmarshal(interviewResp.Data, &interview))
	require.Equal(t, application.ID, interview.ApplicationID)

	interviews := listInterviews(t, ownerClient, srv.URL, companyID, application.ID)
	require.Len(t, interviews, 1)

	// The student got both notifications, newest first.
	notifications := listNotifications(t, studentClient, srv.URL)
	require.Len(t, notifications, 2)
	kinds := map[string]bool{}
	for _, n := range notifications {
		require.Nil(t, n.ReadAt)
		kinds[n.Kind] = true
	}
	require.True(t, kinds[notify.KindApplicationReviewed])
	require.True(t, kinds[notify.KindInterviewScheduled])

	doJSONExpectSuccess(t, studentClient, http.MethodPost, srv.URL+"/api/v1/notifications/"+notifications[0].ID.String()+"/read", studentCSRF, http.StatusOK, nil)
	doJSONExpectSuccess(t, studentClient, http.MethodPost, srv.URL+"/api/v1/notifications/read-all", studentCSRF, http.StatusOK, nil)

	notifications = listNotifications(t, studentClient, srv.URL)
	for _, n := range notifications {
		require.NotNil(t, n.ReadAt)
	}

	// Closing the posting stops new applications.
	doJSONExpectSuccess(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/internships/"+internship.ID.String(), ownerCSRF, http.StatusOK, map[string]any{
		"title":       internship.Title,
		"description": internship.Description,
		"location":    internship.Location,
		"status":      string(internships.StatusClosed),
	})

	lateClient, lateBoot := newCSRFClient(t, srv.URL)
	_, lateCSRF := signupAndLogin(t, lateClient, srv.URL, lateBoot, "late-student@example.com", "password123")
	{
		errEnv := doJSONExpectError(t, lateClient, http.MethodPost, srv.URL+"/api/v1/internships/"+internship.ID.String()+"/apply", lateCSRF, http.StatusConflict, map[string]any{
			"cover_letter": "too late",
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	open = listOpenInternships(t, studentClient, srv.URL)
	require.Empty(t, open)

	events := listAudit(t, ownerClient, srv.URL, companyID)
	actions := make(map[string]bool)
	for _, ev := range events {
		actions[ev.Action] = true
	}
	require.True(t, actions["internship.created"], "missing internship.created audit event")
	require.True(t, actions["application.reviewed"], "missing application.reviewed audit event")
	require.True(t, actions["interview.scheduled"], "missing interview.scheduled audit event")
}

func createInternship(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID uuid.UUID, title, description, location string) internships.Internship {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/companies/"+companyID.String()+"/internships", csrfToken, http.StatusCreated, map[string]any{
		"title":       title,
		"description": description,
		"location":    location,
	})

	var internship internships.Internship
	require.NoError(t, json.Unmarshal(resp.Data, &internship))
	require.NotEqual(t, uuid.Nil, internship.ID)

	return internship
}

func listOpenInternships(t *testing.T, client *http.Client, baseURL string) []internships.Internship {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/internships")

	var parsed struct {
		Internships []internships.Internship `json:"internships"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Internships
}

func listMyApplications(t *testing.T, client *http.Client, baseURL string) []internships.Application {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/applications")

	var parsed struct {
		Applications []internships.Application `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Applications
}

func listApplications(t *testing.T, client *http.Client, baseURL string, companyID, internshipID uuid.UUID) []internships.ApplicationInfo {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/internships/"+internshipID.String()+"/applications")

	var parsed struct {
		Applications []internships.ApplicationInfo `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Applications
}

func listInterviews(t *testing.T, client *http.Client, baseURL string, companyID, applicationID uuid.UUID) []internships.Interview {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/applications/"+applicationID.String()+"/interviews")

	var parsed struct {
		Interviews []internships.Interview `json:"interviews"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Interviews
}

func listNotifications(t *testing.T, client *http.Client, baseURL string) []notify.Notification {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/notifications")

	var parsed struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Notifications
}
