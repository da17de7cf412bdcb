// Package validator normalizes and checks owner-supplied phone numbers.
package validator

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/apperr"
)

const (
	MinDigits = 10
	MaxDigits = 15
)

// CountryPrefixes is the ordered allow-list of calling-code prefixes.
// Matching is first-match by list order.
var CountryPrefixes = []string{
	"1", "7", "20", "27", "30", "31", "32", "33", "34", "36", "39", "40", "41",
	"43", "44", "45", "46", "47", "48", "49", "51", "52", "53", "54", "55", "56",
	"57", "58", "60", "61", "62", "63", "64", "65", "66", "81", "82", "84", "86",
	"90", "91", "92", "93", "94", "95", "98",
}

var stripper = strings.NewReplacer("+", "", "-", "", "(", "", ")", "")

// Normalize strips whitespace and the characters "+ - ( )".
func Normalize(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	return stripper.Replace(cleaned)
}

// ValidatePhoneNumber returns the digits-only form of raw or one of
// apperr.ErrInvalidFormat, apperr.ErrInvalidLength, apperr.ErrUnknownCountryCode.
func ValidatePhoneNumber(raw string) (string, error) {
	number := Normalize(raw)
	if number == "" || !isDigits(number) {
		return number, errors.WithStack(apperr.ErrInvalidFormat)
	}
	if len(number) < MinDigits || len(number) > MaxDigits {
		return number, errors.WithStack(apperr.ErrInvalidLength)
	}
	if MatchPrefix(number) == "" {
		return number, errors.WithStack(apperr.ErrUnknownCountryCode)
	}
	return number, nil
}

// MatchPrefix returns the first allow-listed prefix of number, or "".
func MatchPrefix(number string) string {
	for _, p := range CountryPrefixes {
		if strings.HasPrefix(number, p) {
			return p
		}
	}
	return ""
}

// Formatted renders a validated number in international notation.
func Formatted(number string) string {
	return "+" + number
}

// Reason maps a validation error to a sentence suitable for the owner.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperr.ErrInvalidFormat):
		return "The number may only contain digits."
	case errors.Is(err, apperr.ErrInvalidLength):
		return "The number must be 10-15 digits long."
	case errors.Is(err, apperr.ErrUnknownCountryCode):
		return "Unknown country code. Make sure the number starts with a valid country code."
	default:
		return err.Error()
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
