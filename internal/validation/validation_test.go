package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSlug_Valid(t *testing.T) {
	for _, slug := range []string{"acme", "acme-corp", "a1b", "team-42", "abc"} {
		require.NoError(t, ValidateSlug(slug), slug)
	}
}

func TestValidateSlug_TooShort(t *testing.T) {
	require.ErrorIs(t, ValidateSlug("ab"), ErrSlugTooShort)
}

func TestValidateSlug_TooLong(t *testing.T) {
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	require.ErrorIs(t, ValidateSlug(string(long)), ErrSlugTooLong)
}

func TestValidateSlug_InvalidCharacters(t *testing.T) {
	for _, slug := range []string{"-acme", "acme-", "ac_me", "ac.me", "ac me"} {
		require.ErrorIs(t, ValidateSlug(slug), ErrInvalidSlug, slug)
	}
}

func TestNormalizeSlug(t *testing.T) {
	require.Equal(t, "acme-corp", NormalizeSlug("  Acme-Corp  "))
}
