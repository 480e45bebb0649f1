package invites

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateInviteToken_AndValidateFormatAndHash(t *testing.T) {
	token, hash, err := GenerateInviteToken()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(token, InviteTokenPrefix))
	require.True(t, ValidateInviteTokenFormat(token))
	require.Len(t, hash, sha256.Size)
	require.Equal(t, HashInviteToken(token), hash)
}

func TestGenerateInviteToken_Unique(t *testing.T) {
	a, _, err := GenerateInviteToken()
	require.NoError(t, err)
	b, _, err := GenerateInviteToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestValidateInviteTokenFormat_InvalidInputs(t *testing.T) {
	require.False(t, ValidateInviteTokenFormat(""))
	require.False(t, ValidateInviteTokenFormat("nope_abc"))
	require.False(t, ValidateInviteTokenFormat("ihv_%%%"))
	require.False(t, ValidateInviteTokenFormat("ihv_c2hvcnQ"))
}
