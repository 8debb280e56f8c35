package logger

import (
	"strings"
	"unicode/utf8"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	local := MaskUsername(parts[0])

	// Mask all but the TLD
	domainParts := strings.Split(parts[1], ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", utf8.RuneCountInString(domainParts[i]))
		}
	}

	return local + "@" + strings.Join(domainParts, ".")
}

// MaskUsername keeps the first character and masks the rest
func MaskUsername(username string) string {
	r, size := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return ""
	}
	rest := utf8.RuneCountInString(username[size:])
	return string(r) + strings.Repeat("*", rest)
}

var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"assertion",
	"credential",
	"email",
	"auth",
}

// SanitizeQueryString reports whether a raw query string mentions a
// sensitive parameter and must be redacted before logging
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
