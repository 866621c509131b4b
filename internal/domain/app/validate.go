package app

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxVersionLength is the longest version string accepted, in characters
const MaxVersionLength = 50

// ValidateVersion checks a version string before it can become a Playing state
func ValidateVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return ErrEmptyVersion
	}

	if utf8.RuneCountInString(version) > MaxVersionLength {
		return &VersionFormatError{Reason: "version too long (max 50 characters)"}
	}

	// unicode.IsControl covers \n and \r
	if strings.IndexFunc(version, unicode.IsControl) >= 0 {
		return &VersionFormatError{Reason: "version contains invalid characters"}
	}

	return nil
}
