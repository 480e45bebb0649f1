package internships

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplicationStatus_IsValid(t *testing.T) {
	for _, s := range []ApplicationStatus{
		ApplicationSubmitted, ApplicationInReview, ApplicationAccepted, ApplicationRejected,
	} {
		require.True(t, s.IsValid(), string(s))
	}

	require.False(t, ApplicationStatus("PENDING").IsValid())
	require.False(t, ApplicationStatus("").IsValid())
}

func TestValidatePosting(t *testing.T) {
	require.NoError(t, validatePosting("Backend Intern", "Build APIs", "Berlin"))

	require.ErrorIs(t, validatePosting("", "", ""), ErrInvalidPosting)
	require.ErrorIs(t, validatePosting("   ", "", ""), ErrInvalidPosting)
	require.ErrorIs(t, validatePosting(strings.Repeat("x", 161), "", ""), ErrInvalidPosting)
	require.ErrorIs(t, validatePosting("ok", strings.Repeat("x", 20001), ""), ErrInvalidPosting)
	require.ErrorIs(t, validatePosting("ok", "", strings.Repeat("x", 121)), ErrInvalidPosting)
}
