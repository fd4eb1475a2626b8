package util

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// PasswordRule describes what ValidatePassword enforces, for error messages.
const PasswordRule = "password must be at least 8 characters and contain upper and lower case letters, a digit and a symbol"

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims and lower-cases an address before it is stored or
// compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSpecial
}

// ValidateDisplayName allows 1 to 60 characters after trimming.
func ValidateDisplayName(name string) bool {
	n := len([]rune(strings.TrimSpace(name)))
	return n >= 1 && n <= 60
}
