package email

import (
	"strings"
	"unicode"
)

// FallbackFirstName derives a usable first name from an email local part for
// records that carry no name, e.g. "jane.doe@x.com" -> "Jane". Returns the
// provided default when nothing can be derived.
func FallbackFirstName(email, def string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 || parts[0] == "" {
		return def
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
