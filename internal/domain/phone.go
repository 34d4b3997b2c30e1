package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// stripPhone removes whitespace, hyphens and parentheses. All whitespace
// counts: quoted CSV fields and manual entry can carry embedded newlines.
func stripPhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidPhone reports whether the phone, after stripping separators,
// is an international-style number of 7 to 15 digits with an optional
// leading plus.
func ValidPhone(raw string) bool {
	return phonePattern.MatchString(stripPhone(raw))
}

// NormalizePhone canonicalizes a phone value. Separators are stripped;
// a value already carrying a leading plus is kept as-is; an exactly
// ten-digit value gets the default country code prefixed. Anything else
// is returned stripped but otherwise untouched, so normalization never
// guarantees validity. The function is idempotent.
func NormalizePhone(raw, defaultCountryCode string) string {
	cleaned := stripPhone(raw)
	if cleaned == "" {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if len(cleaned) == 10 && allDigits(cleaned) {
		return "+" + strings.TrimPrefix(defaultCountryCode, "+") + cleaned
	}
	return cleaned
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
