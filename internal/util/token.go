package util

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NewOpaqueToken returns a random 32-character hex token for email
// verification and password reset links.
func NewOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var digitsRe = regexp.MustCompile(`\d+`)

// NormalizeIdentifier normalizes phone number or email
func NormalizeIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return strings.ToLower(strings.TrimSpace(identifier))
	}
	return strings.Join(digitsRe.FindAllString(identifier, -1), "")
}
