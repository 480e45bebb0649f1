package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/internhub/internhub/internal/app"
	"github.com/internhub/internhub/internal/invites"
	"github.com/stretchr/testify/require"
)

func TestE2E_CompanyCode_JoinLifecycle(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerBoot := newCSRFClient(t, srv.URL)
	joinerClient, joinerBoot := newCSRFClient(t, srv.URL)
	lateClient, lateBoot := newCSRFClient(t, srv.URL)

	_, ownerCSRF := signupAndLogin(t, ownerClient, srv.URL, ownerBoot, "owner@example.com", "password123")
	joinerUserID, joinerCSRF := signupAndLogin(t, joinerClient, srv.URL, joinerBoot, "joiner@example.com", "password123")
	_, lateCSRF := signupAndLogin(t, lateClient, srv.URL, lateBoot, "late@example.com", "password123")

	companyID := createCompany(t, ownerClient, srv.URL, ownerCSRF, "Globex", "globex")

	// No code exists until the first regeneration.
	status := getCodeStatus(t, ownerClient, srv.URL, companyID)
	require.Empty(t, status.MaskedCode)
	require.False(t, status.Enabled)
	require.Zero(t, status.UsageCount)

	code := regenerateCode(t, ownerClient, srv.URL, ownerCSRF, companyID)
	require.True(t, invites.IsValidCodeFormat(code))

	// Back-to-back regeneration hits the cooldown.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/companies/"+companyID.String()+"/code/regenerate", ownerCSRF, http.StatusTooManyRequests, nil)
		require.Equal(t, "COOLDOWN", errEnv.Error.Code)
	}

	// A well-formed code that matches no company is indistinguishable from a
	// deleted one.
	{
		errEnv := doJSONExpectError(t, joinerClient, http.MethodPost, srv.URL+"/api/v1/companies/join", joinerCSRF, http.StatusNotFound, map[string]any{
			"code": "AAAA-AAAA-AAAA-AAAA",
		})
		require.Equal(t, "not_found", errEnv.Error.Code)
	}

	// Codes paste in any shape: lowercase without dashes still joins.
	pasted := strings.ToLower(strings.ReplaceAll(code, "-", ""))
	joinResp := doJSONExpectSuccess(t, joinerClient, http.MethodPost, srv.URL+"/api/v1/companies/join", joinerCSRF, http.StatusOK, map[string]any{
		"code": pasted,
	})

	var joined struct {
		CompanyID uuid.UUID `json:"company_id"`
		MemberID  uuid.UUID `json:"member_id"`
	}
	require.NoError(t, json.Unmarshal(joinResp.Data, &joined))
	require.Equal(t, companyID, joined.CompanyID)

	members := listMembers(t, ownerClient, srv.URL, companyID)
	require.Len(t, members, 2)
	joinerMember := findMemberByUserID(t, members, joinerUserID)
	require.NotNil(t, joinerMember.DefaultRole)
	require.Equal(t, "MEMBER", string(*joinerMember.DefaultRole))

	status = getCodeStatus(t, ownerClient, srv.URL, companyID)
	require.Equal(t, 1, status.UsageCount)
	require.True(t, status.Enabled)
	require.True(t, strings.HasPrefix(status.MaskedCode, "****-****-****-"))
	require.Equal(t, code[len(code)-4:], status.MaskedCode[len(status.MaskedCode)-4:])

	// Disabling the code blocks joins without invalidating the code string.
	doJSONExpectSuccess(t, ownerClient, http.MethodPatch, srv.URL+"/api/v1/companies/"+companyID.String()+"/code", ownerCSRF, http.StatusOK, map[string]any{
		"enabled": false,
	})
	{
		errEnv := doJSONExpectError(t, lateClient, http.MethodPost, srv.URL+"/api/v1/companies/join", lateCSRF, http.StatusForbidden, map[string]any{
			"code": code,
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	// Re-enable, but cap the team at its current size.
	doJSONExpectSuccess(t, ownerClient, http.MethodPatch, srv.URL+"/api/v1/companies/"+companyID.String()+"/code", ownerCSRF, http.StatusOK, map[string]any{
		"enabled":          true,
		"max_team_members": 2,
	})
	{
		errEnv := doJSONExpectError(t, lateClient, http.MethodPost, srv.URL+"/api/v1/companies/join", lateCSRF, http.StatusConflict, map[string]any{
			"code": code,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// A user with an active membership cannot join a second company.
	{
		errEnv := doJSONExpectError(t, joinerClient, http.MethodPost, srv.URL+"/api/v1/companies/join", joinerCSRF, http.StatusConflict, map[string]any{
			"code": code,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	events := listAudit(t, ownerClient, srv.URL, companyID)
	actions := make(map[string]bool)
	for _, ev := range events {
		actions[ev.Action] = true
	}
	require.True(t, actions["code.regenerated"], "missing code.regenerated audit event")
	require.True(t, actions["member.joined_via_code"], "missing member.joined_via_code audit event")
	require.True(t, actions["code.settings_updated"], "missing code.settings_updated audit event")
}

func getCodeStatus(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) invites.CodeStatus {
	t.Helper()

	env := getExpectSuccess(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/code")

	var status invites.CodeStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))

	return status
}

func regenerateCode(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID uuid.UUID) string {
	t.Helper()

	resp := doJSONExpectSuccess(t, client, http.MethodPost, baseURL+"/api/v1/companies/"+companyID.String()+"/code/regenerate", csrfToken, http.StatusOK, nil)

	var parsed struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEmpty(t, parsed.Code)

	return parsed.Code
}
