package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/app"
	"github.com/internhub/internhub/internal/auth"
	"github.com/internhub/internhub/internal/companies"
	"github.com/internhub/internhub/internal/config"
	"github.com/internhub/internhub/internal/invites"
	"github.com/internhub/internhub/internal/rbac"
	"github.com/stretchr/testify/require"
)

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "dev",
		HTTPAddr:       ":0",
		BaseURL:        "http://localhost",
		DBDSN:          "unused",
		JWTSecret:      "test-secret",
		LogLevel:       "error",
		RateLimitRPM:   120,
		SessionDays:    7,
		EmailTimeoutMS: 2000,
		MatchTimeoutMS: 10000,
	}
}

func TestE2E_CompanyInvites_Members_Roles_Audit(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerBoot := newCSRFClient(t, srv.URL)
	inviteeClient, inviteeBoot := newCSRFClient(t, srv.URL)
	viewerClient, viewerBoot := newCSRFClient(t, srv.URL)

	ownerEmail := "owner@example.com"
	inviteeEmail := "invitee@example.com"
	viewerEmail := "viewer@example.com"
	password := "password123"

	_, ownerCSRF := signupAndLogin(t, ownerClient, srv.URL, ownerBoot, ownerEmail, password)
	inviteeUserID, inviteeCSRF := signupAndLogin(t, inviteeClient, srv.URL, inviteeBoot, inviteeEmail, password)
	viewerUserID, viewerCSRF := signupAndLogin(t, viewerClient, srv.URL, viewerBoot, viewerEmail, password)

	companyID := createCompany(t, ownerClient, srv.URL, ownerCSRF, "Acme", "acme")

	// The creator is the OWNER with the full permission set.
	me := getMe(t, ownerClient, srv.URL, companyID)
	require.NotNil(t, me.DefaultRole)
	require.Equal(t, rbac.RoleOwner, *me.DefaultRole)
	require.NotEmpty(t, me.Permissions)

	inviteToken := createInvite(t, ownerClient, srv.URL, ownerCSRF, companyID, inviteeEmail, rbac.RoleHRManager)
	require.True(t, strings.HasPrefix(inviteToken, invites.InviteTokenPrefix))

	// A second open invitation for the same email is rejected.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/invites", ownerCSRF, http.StatusConflict, map[string]any{
			"email":        inviteeEmail,
			"default_role": string(rbac.RoleHRManager),
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// OWNER is not a grantable role.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/invites", ownerCSRF, http.StatusBadRequest, map[string]any{
			"email":        "someoneelse@example.com",
			"default_role": string(rbac.RoleOwner),
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	pending := listInvites(t, ownerClient, srv.URL, companyID)
	require.Len(t, pending, 1)
	require.Equal(t, inviteeEmail, pending[0].Email)

	// Accepting with the wrong account fails; the invitee's account works.
	{
		errEnv := doJSONExpectError(t, viewerClient, http.MethodPost, srv.URL+"/api/v1/invites/accept", viewerCSRF, http.StatusForbidden, map[string]any{
			"token": inviteToken,
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}
	acceptInvite(t, inviteeClient, srv.URL, inviteeCSRF, inviteToken)

	// A consumed token is dead.
	{
		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPost, srv.URL+"/api/v1/invites/accept", inviteeCSRF, http.StatusConflict, map[string]any{
			"token": inviteToken,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	members := listMembers(t, ownerClient, srv.URL, companyID)
	require.Len(t, members, 2)

	inviteeMember := findMemberByUserID(t, members, inviteeUserID)
	require.NotNil(t, inviteeMember.DefaultRole)
	require.Equal(t, rbac.RoleHRManager, *inviteeMember.DefaultRole)

	// HR_MANAGER can invite, so bring in the viewer through the invitee.
	viewerToken := createInvite(t, inviteeClient, srv.URL, inviteeCSRF, companyID, viewerEmail, rbac.RoleViewer)
	acceptInvite(t, viewerClient, srv.URL, viewerCSRF, viewerToken)

	// VIEWER cannot invite.
	{
		errEnv := doJSONExpectError(t, viewerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/invites", viewerCSRF, http.StatusForbidden, map[string]any{
			"email":        "nobody@example.com",
			"default_role": string(rbac.RoleMember),
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	members = listMembers(t, ownerClient, srv.URL, companyID)
	require.Len(t, members, 3)
	viewerMember := findMemberByUserID(t, members, viewerUserID)
	ownerMember := findMemberByOwnerRole(t, members)

	// Role changes go through the member id, not the user id.
	doJSONExpectSuccess(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+inviteeMember.MemberID.String()+"/role", ownerCSRF, http.StatusOK, map[string]any{
		"default_role": string(rbac.RoleAdmin),
	})

	// The owner's own role can only move via ownership transfer.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+ownerMember.MemberID.String()+"/role", ownerCSRF, http.StatusForbidden, map[string]any{
			"default_role": string(rbac.RoleMember),
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	// Extra permission grants are additive on top of the base role.
	doJSONExpectSuccess(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+viewerMember.MemberID.String()+"/permissions", ownerCSRF, http.StatusOK, map[string]any{
		"permissions": []string{string(rbac.PermCreateInternships)},
	})

	viewerMe := getMe(t, viewerClient, srv.URL, companyID)
	require.Contains(t, viewerMe.Permissions, rbac.PermCreateInternships)

	doJSONExpectSuccess(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+viewerMember.MemberID.String(), ownerCSRF, http.StatusOK, nil)

	// A removed member loses access immediately.
	{
		resp, err := viewerClient.Get(srv.URL + "/api/v1/companies/" + companyID.String() + "/me")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	members = listMembers(t, ownerClient, srv.URL, companyID)
	require.Len(t, members, 2)

	// Ownership transfer swaps roles atomically.
	doJSONExpectSuccess(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/transfer-ownership", ownerCSRF, http.StatusOK, map[string]any{
		"new_owner_member_id": inviteeMember.MemberID,
	})

	inviteeMe := getMe(t, inviteeClient, srv.URL, companyID)
	require.NotNil(t, inviteeMe.DefaultRole)
	require.Equal(t, rbac.RoleOwner, *inviteeMe.DefaultRole)

	oldOwnerMe := getMe(t, ownerClient, srv.URL, companyID)
	require.NotNil(t, oldOwnerMe.DefaultRole)
	require.Equal(t, rbac.RoleAdmin, *oldOwnerMe.DefaultRole)

	events := listAudit(t, inviteeClient, srv.URL, companyID)
	actions := make(map[string]bool)
	for _, ev := range events {
		actions[ev.Action] = true
	}
	require.True(t, actions["company.created"], "missing company.created audit event")
	require.True(t, actions["invite.created"], "missing invite.created audit event")
	require.True(t, actions["invite.accepted"], "missing invite.accepted audit event")
	require.True(t, actions["member.role_updated"], "missing member.role_updated audit event")
	require.True(t, actions["member.permissions_updated"], "missing member.permissions_updated audit event")
	require.True(t, actions["member.removed"], "missing member.removed audit event")
	require.True(t, actions["ownership.transferred"], "missing ownership.transferred audit event")
}

// newCSRFClient builds a cookie-jar client pre-seeded with a bootstrap CSRF
// cookie so signup/login pass the double-submit check. Login replaces the
// cookie with a server-issued pair; use the token from the login response for
// everything after.
func newCSRFClient(t *testing.T, serverURL string) (*http.Client, string) {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	baseURL, err := url.Parse(serverURL)
	require.NoError(t, err)

	csrfToken, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{{
		Name:  auth.CSRFCookieName,
		Value: csrfToken,
		Path:  "/",
	}})

	return client, csrfToken
}

func signupAndLogin(t *testing.T, client *http.Client, baseURL, bootstrapCSRF, email, password string) (uuid.UUID, string) {
	t.Helper()

	signupResp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/auth/signup", bootstrapCSRF, http.StatusCreated, map[string]any{
		"email":     email,
		"password":  password,
		"full_name": "Test User",
	})

	var signup struct {
		UserID uuid.UUID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(signupResp.Data, &signup))
	require.NotEqual(t, uuid.Nil, signup.UserID)

	loginResp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", bootstrapCSRF, http.StatusOK, map[string]any{
		"email":    email,
		"password": password,
	})

	var login struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(loginResp.Data, &login))
	require.NotEmpty(t, login.CSRFToken)

	return signup.UserID, login.CSRFToken
}

func createCompany(t *testing.T, client *http.Client, baseURL, csrfToken, name, slug string) uuid.UUID {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/companies", csrfToken, http.StatusCreated, map[string]any{
		"name": name,
		"slug": slug,
	})

	var parsed struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.ID)

	return parsed.ID
}

func createInvite(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID uuid.UUID, email string, role rbac.DefaultRole) string {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/companies/"+companyID.String()+"/invites", csrfToken, http.StatusCreated, map[string]any{
		"email":        email,
		"default_role": string(role),
	})

	var parsed struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEmpty(t, parsed.Token)

	return parsed.Token
}

func acceptInvite(t *testing.T, client *http.Client, baseURL, csrfToken, token string) {
	t.Helper()

	doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/invites/accept", csrfToken, http.StatusOK, map[string]any{
		"token": token,
	})
}

func listInvites(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) []invites.ListItem {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/invites")

	var parsed struct {
		Invites []invites.ListItem `json:"invites"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Invites
}

func listMembers(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) []companies.MemberInfo {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/members")

	var parsed struct {
		Members []companies.MemberInfo `json:"members"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Members
}

func findMemberByUserID(t *testing.T, members []companies.MemberInfo, userID uuid.UUID) companies.MemberInfo {
	t.Helper()
	for _, m := range members {
		if m.UserID == userID {
			return m
		}
	}
	t.Fatalf("no member with user id %s", userID)
	return companies.MemberInfo{}
}

func findMemberByOwnerRole(t *testing.T, members []companies.MemberInfo) companies.MemberInfo {
	t.Helper()
	for _, m := range members {
		if m.DefaultRole != nil && *m.DefaultRole == rbac.RoleOwner {
			return m
		}
	}
	t.Fatal("no OWNER in member list")
	return companies.MemberInfo{}
}

func getMe(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) companies.MeResponse {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/me")

	var me companies.MeResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))

	return me
}

func listAudit(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) []struct {
	Action string `json:"action"`
} {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/audit")

	var parsed struct {
		Events []struct {
			Action string `json:"action"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed.Events
}

func getExpectSuccess(t *testing.T, client *http.Client, urlStr string) envelopeResponse {
	t.Helper()

	resp, err := client.Get(urlStr)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectSuccess(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectError(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) errorEnvelope {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.Error.RequestID)

	return env
}

func doJSONExpectStatus(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) []byte {
	t.Helper()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, bodyReader)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(body))

	return body
}
