// Package code implements location-code minting, validation, and scanned
// payload resolution. A location code is an opaque string of the form
// PREFIX-XXXXXXXXXXXX: an uppercase category prefix, a dash, and a
// fixed-length random suffix drawn from the base64url alphabet.
package code

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

const (
	// SuffixLen is the fixed length of the random suffix.
	SuffixLen = 12
	// suffixBytes is the number of random bytes encoded into the suffix.
	// 9 bytes of base64url encode to exactly 12 characters, no padding.
	suffixBytes = 9
)

// codeRegexp is the canonical location-code shape: an uppercase prefix, a
// dash, and a 12-character suffix over [A-Za-z0-9_-].
var codeRegexp = regexp.MustCompile(`^[A-Z]+-[A-Za-z0-9_-]{12}$`)

// prefixRegexp validates a bare category prefix.
var prefixRegexp = regexp.MustCompile(`^[A-Z]+$`)

// Valid reports whether s matches the canonical location-code shape.
func Valid(s string) bool {
	return codeRegexp.MatchString(s)
}

// ValidPrefix reports whether p is a usable category prefix (one or more
// uppercase letters).
func ValidPrefix(p string) bool {
	return prefixRegexp.MatchString(p)
}

// newCandidate produces one code candidate for the given prefix using a
// cryptographically strong random source.
func newCandidate(prefix string) (string, error) {
	b := make([]byte, suffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random suffix: %w", err)
	}
	return prefix + "-" + base64.RawURLEncoding.EncodeToString(b), nil
}
