package invites

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateCode_FormatAndAlphabet(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)

	require.Len(t, code, 19)
	require.True(t, IsValidCodeFormat(code))

	for _, segment := range strings.Split(code, "-") {
		require.Len(t, segment, 4)
		for _, c := range segment {
			require.Contains(t, CodeAlphabet, string(c))
		}
	}
}

func TestGenerateCode_NeverUsesAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		for _, excluded := range "0O1IL" {
			require.NotContains(t, code, string(excluded))
		}
	}
}

func TestNormalizeCode_UppercasesAndStripsWhitespace(t *testing.T) {
	require.Equal(t, "ABCD-EFGH-JKMN-PQRS", NormalizeCode("  abcd-efgh-jkmn-pqrs\n"))
	require.Equal(t, "ABCD-EFGH-JKMN-PQRS", NormalizeCode("abcd efgh jkmn pqrs"))
}

func TestNormalizeCode_InsertsDashesForBareInput(t *testing.T) {
	require.Equal(t, "ABCD-EFGH-JKMN-PQRS", NormalizeCode("abcdefghjkmnpqrs"))
}

func TestNormalizeCode_LeavesWrongLengthAlone(t *testing.T) {
	require.Equal(t, "ABCDEF", NormalizeCode("abcdef"))
}

func TestNormalizeCode_Idempotent(t *testing.T) {
	inputs := []string{
		"abcd-efgh-jkmn-pqrs",
		"abcdefghjkmnpqrs",
		" ab cd ",
		"",
		"ABCD-1234-EFGH-5678",
	}
	for _, in := range inputs {
		once := NormalizeCode(in)
		require.Equal(t, once, NormalizeCode(once), "not idempotent for %q", in)
	}
}

func TestIsValidCodeFormat_RejectsExcludedAlphabet(t *testing.T) {
	// Correct length and shape after dash insertion, but contains excluded
	// characters (1 is outside the allowed alphabet).
	require.Equal(t, "ABCD-1234-EFGH-5678", NormalizeCode("ABCD1234EFGH5678"))
	require.False(t, IsValidCodeFormat("ABCD1234EFGH5678"))

	require.False(t, IsValidCodeFormat("ABCD-EFGH-JKMN-PQR0"))
	require.False(t, IsValidCodeFormat("ABCD-EFGH-JKMN-PQRI"))
	require.False(t, IsValidCodeFormat("ABCD-EFGH-JKMN-PQRL"))
	require.False(t, IsValidCodeFormat("ABCD-EFGH-JKMN-PQRO"))
}

func TestIsValidCodeFormat_RejectsMalformedShapes(t *testing.T) {
	require.False(t, IsValidCodeFormat(""))
	require.False(t, IsValidCodeFormat("ABCD-EFGH-JKMN"))
	require.False(t, IsValidCodeFormat("ABCDE-FGHJ-KMNP-QRST"))
	require.False(t, IsValidCodeFormat("ABCD_EFGH_JKMN_PQRS"))
}

func TestMaskCode_RevealsOnlyLastSegment(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)

	masked := MaskCode(code)
	require.Equal(t, "****-****-****-"+code[15:], masked)
	require.Equal(t, 4, len(masked)-len("****-****-****-"))
}

func TestMaskCode_InvalidInputYieldsPlaceholder(t *testing.T) {
	require.Equal(t, "****-****-****-****", MaskCode("not a code"))
	require.Equal(t, "****-****-****-****", MaskCode("ABCD-1234-EFGH-5678"))
	require.Equal(t, "****-****-****-****", MaskCode(""))
}

func TestIsCodeExpired(t *testing.T) {
	now := time.Now().UTC()

	past := now.Add(-time.Millisecond)
	require.True(t, IsCodeExpired(&past, now))

	future := now.Add(time.Hour)
	require.False(t, IsCodeExpired(&future, now))

	require.False(t, IsCodeExpired(nil, now))
}

func TestTimeUntilExpiry_Buckets(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"days", 49 * time.Hour, "2d"},
		{"exactly one day", 24 * time.Hour, "1d"},
		{"hours", 5*time.Hour + 30*time.Minute, "5h"},
		{"minutes", 42 * time.Minute, "42m"},
		{"sub-minute rounds up", 20 * time.Second, "1m"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := now.Add(tc.remaining)
			got, ok := TimeUntilExpiry(&at, now)
			require.True(t, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTimeUntilExpiry_ExpiredAndUnset(t *testing.T) {
	now := time.Now().UTC()

	past := now.Add(-time.Second)
	got, ok := TimeUntilExpiry(&past, now)
	require.True(t, ok)
	require.Equal(t, "Expired", got)

	_, ok = TimeUntilExpiry(nil, now)
	require.False(t, ok)
}
