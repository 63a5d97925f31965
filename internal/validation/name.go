package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	UserNameMinLength    = 3
	UserNameMaxLength    = 35
	ProjectNameMaxLength = 75
)

// NormalizeName trims surrounding whitespace and applies NFC normalization so
// that composed and decomposed spellings count the same.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateUserName validates a normalized display name
func ValidateUserName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < UserNameMinLength {
		return fmt.Errorf("name must be at least %d characters", UserNameMinLength)
	}
	if n > UserNameMaxLength {
		return fmt.Errorf("name is too long (max %d characters)", UserNameMaxLength)
	}
	return nil
}

// ValidateProjectName validates a trimmed project name
func ValidateProjectName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > ProjectNameMaxLength {
		return fmt.Errorf("name is too long (max %d characters)", ProjectNameMaxLength)
	}
	return nil
}
