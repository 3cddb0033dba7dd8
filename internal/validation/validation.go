// Package validation holds the field-format predicates used while collecting
// merchant data. Every predicate is pure and never panics; callers decide how
// to re-prompt on a false result.
package validation

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

// IsValidEmail reports whether s looks like name@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsValidMobile reports whether s carries exactly 10 digits once every
// non-digit character is stripped ("98765 43210" and "98765-43210" pass).
func IsValidMobile(s string) bool {
	return len(Digits(s)) == 10
}

// IsValidPAN checks the upper-case PAN layout: 5 letters, 4 digits, 1 letter.
func IsValidPAN(s string) bool {
	return panPattern.MatchString(s)
}

// IsValidPinCode reports whether s carries exactly 6 digits after stripping.
func IsValidPinCode(s string) bool {
	return len(Digits(s)) == 6
}

// IsValidOTP reports whether s is exactly six digits, nothing else.
func IsValidOTP(s string) bool {
	return otpPattern.MatchString(s)
}

// Digits returns s with every non-digit rune removed.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// NormalizeEmail trims and lower-cases an address so it can be used as a key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
