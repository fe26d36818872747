package utils

import (
	"errors"
	"regexp"
)

// Compiled regular expressions for validation
var (
	validUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// Detect potentially dangerous characters in free-text search input
	dangerousPattern = regexp.MustCompile(`[<>]|--|\/\*|\*\/|;.*--`)
)

// ValidateUsername checks that a username is safe and within limits.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}

	if len(username) > 64 {
		return errors.New("username too long (max 64 characters)")
	}

	if !validUsernamePattern.MatchString(username) {
		return errors.New("username contains invalid characters")
	}

	return nil
}

// ValidatePassword enforces minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > 128 {
		return errors.New("password too long (max 128 characters)")
	}
	return nil
}

// ValidateQuery validates search query strings.
func ValidateQuery(query string) error {
	// Empty queries are allowed
	if query == "" {
		return nil
	}

	if len(query) > 200 {
		return errors.New("query too long (max 200 characters)")
	}

	if dangerousPattern.MatchString(query) {
		return errors.New("query contains invalid characters")
	}

	return nil
}

// ValidatePositiveID validates a numeric identifier parsed from input.
func ValidatePositiveID(id int64) error {
	if id <= 0 {
		return errors.New("id must be a positive integer")
	}
	return nil
}
