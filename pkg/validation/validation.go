package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// SessionIDRegex validates session and negotiation identifier format.
	// Identifiers are opaque handles for the external negotiation library;
	// only their shape is checked, never their meaning.
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateNegotiationID validates a client-supplied negotiation identifier.
func ValidateNegotiationID(id string) error {
	if id == "" {
		return fmt.Errorf("negotiation ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("negotiation ID is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid negotiation ID format")
	}
	return nil
}

// ValidateSessionID validates a broadcast session identifier.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("session ID is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateStreamTitle validates a broadcast title.
func ValidateStreamTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > 100 {
		return fmt.Errorf("title is too long (max 100 characters)")
	}
	if !utf8.ValidString(title) {
		return fmt.Errorf("title contains invalid characters")
	}
	return nil
}

// ValidateChatText validates relayed chat text.
func ValidateChatText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	if utf8.RuneCountInString(text) > 2000 {
		return fmt.Errorf("text is too long (max 2000 characters)")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text contains invalid characters")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming.
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
