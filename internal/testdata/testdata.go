// Package testdata generates unique, realistic test data so parallel tests
// never collide on emails, usernames, or tokens.
package testdata

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func randomSuffix(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := crand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to generate random suffix: %v", err))
	}
	return hex.EncodeToString(buf)
}

// UniqueEmail generates a unique email for test isolation.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, randomSuffix(8))
}

// UniqueUsername generates a globally unique username-safe identifier.
func UniqueUsername(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, randomSuffix(8))
}

// StrongPassword generates a random password that satisfies typical length
// rules. Not for production use; test accounts only.
func StrongPassword() string {
	return "Pw!" + randomSuffix(12)
}

// SessionToken generates an opaque API/session token.
func SessionToken() string {
	return uuid.NewString()
}

// =============================================================================
// Shared rapid generators
// =============================================================================

// EmailGenerator generates valid email addresses for testing.
func EmailGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z]{5,10}@example\.com`)
}

// PasswordGenerator generates valid passwords (8+ chars with mix of types).
func PasswordGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9!@#]{12,20}`)
}

// WeakPasswordGenerator generates weak passwords (less than 8 chars) for
// testing validation.
func WeakPasswordGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z]{1,7}`)
}

// OutcomeKeyGenerator generates outcome-store keys.
func OutcomeKeyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z][a-zA-Z0-9]{2,20}`)
}
