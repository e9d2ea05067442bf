package validation

import (
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum accepted password length in characters
const MinPasswordLength = 8

// Password policy violations
const (
	PasswordTooShort = "must be at least 8 characters long"
	PasswordNoUpper  = "must contain an uppercase letter"
	PasswordNoLower  = "must contain a lowercase letter"
	PasswordNoDigit  = "must contain a digit"
	PasswordNoSymbol = "must contain a special character"
)

// CheckPassword returns every policy rule the password violates, empty when it is acceptable
func CheckPassword(password string) []string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	violations := []string{}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, PasswordTooShort)
	}
	if !hasUpper {
		violations = append(violations, PasswordNoUpper)
	}
	if !hasLower {
		violations = append(violations, PasswordNoLower)
	}
	if !hasDigit {
		violations = append(violations, PasswordNoDigit)
	}
	if !hasSymbol {
		violations = append(violations, PasswordNoSymbol)
	}
	return violations
}
