package invites

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Company code format: 4 groups of 4 characters from a 31-symbol alphabet.
// 0, O, 1, I and L are excluded so a code read aloud or off a screen cannot
// be mistranscribed.
const (
	CodeAlphabet     = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeGroupLen     = 4
	CodeGroups       = 4
	codeBareLen      = CodeGroupLen * CodeGroups
	codeFormattedLen = codeBareLen + CodeGroups - 1
)

var codePattern = regexp.MustCompile(
	fmt.Sprintf(`^(?:[%s]{%d}-){%d}[%s]{%d}$`,
		CodeAlphabet, CodeGroupLen, CodeGroups-1, CodeAlphabet, CodeGroupLen))

// GenerateCode produces a new company code in the canonical
// XXXX-XXXX-XXXX-XXXX format. Each character is drawn independently from
// crypto/rand; math/rand is never acceptable here.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))

	var b strings.Builder
	b.Grow(codeFormattedLen)
	for group := 0; group < CodeGroups; group++ {
		if group > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < CodeGroupLen; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate random code character: %w", err)
			}
			b.WriteByte(CodeAlphabet[n.Int64()])
		}
	}

	return b.String(), nil
}

// NormalizeCode upper-cases the input, strips all whitespace, and re-inserts
// dashes when the input is a bare 16-character string. Humans paste codes
// inconsistently; normalization must happen before any comparison or
// validation. Idempotent.
func NormalizeCode(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.ToUpper(input))

	if !strings.Contains(cleaned, "-") && len(cleaned) == codeBareLen {
		var b strings.Builder
		b.Grow(codeFormattedLen)
		for i := 0; i < codeBareLen; i += CodeGroupLen {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteString(cleaned[i : i+CodeGroupLen])
		}
		return b.String()
	}

	return cleaned
}

// IsValidCodeFormat reports whether the code, after normalization, matches
// the canonical segment pattern using only the restricted alphabet.
func IsValidCodeFormat(code string) bool {
	return codePattern.MatchString(NormalizeCode(code))
}

// MaskCode returns the code with the first three segments replaced by
// asterisks, keeping only the last segment for safe display and logging.
// Invalid input yields an all-asterisk placeholder rather than an error.
func MaskCode(code string) string {
	normalized := NormalizeCode(code)
	if !codePattern.MatchString(normalized) {
		return "****-****-****-****"
	}
	return "****-****-****-" + normalized[len(normalized)-CodeGroupLen:]
}

// IsCodeExpired reports whether an expiry timestamp has passed. A nil expiry
// never expires.
func IsCodeExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}

// TimeUntilExpiry buckets the time remaining until expiry into the coarsest
// non-zero unit: whole days, else whole hours, else whole minutes. Returns
// ("Expired", true) when the expiry has passed and ("", false) when no expiry
// is configured.
func TimeUntilExpiry(expiresAt *time.Time, now time.Time) (string, bool) {
	if expiresAt == nil {
		return "", false
	}

	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "Expired", true
	}

	if days := int(remaining.Hours() / 24); days > 0 {
		return fmt.Sprintf("%dd", days), true
	}
	if hours := int(remaining.Hours()); hours > 0 {
		return fmt.Sprintf("%dh", hours), true
	}
	minutes := int(remaining.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%dm", minutes), true
}
