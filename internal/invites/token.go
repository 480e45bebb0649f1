package invites

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// InviteTokenPrefix is the prefix for all invitation tokens.
	InviteTokenPrefix = "ihv_"

	// InviteTokenBytes is the number of random bytes in a token (256 bits).
	InviteTokenBytes = 32
)

// GenerateInviteToken creates a new invitation token with the format
// ihv_<base64url>. Returns the plaintext token (sent to the invitee once)
// and its SHA256 hash (for storage).
func GenerateInviteToken() (token string, hash []byte, err error) {
	randomBytes := make([]byte, InviteTokenBytes)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = InviteTokenPrefix + encoded
	hash = HashInviteToken(token)

	return token, hash, nil
}

// HashInviteToken computes the SHA256 hash of a token for storage.
func HashInviteToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// ValidateInviteTokenFormat checks if a token has the correct format.
func ValidateInviteTokenFormat(token string) bool {
	if len(token) < len(InviteTokenPrefix) {
		return false
	}

	if token[:len(InviteTokenPrefix)] != InviteTokenPrefix {
		return false
	}

	encoded := token[len(InviteTokenPrefix):]
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return len(decoded) == InviteTokenBytes
}
