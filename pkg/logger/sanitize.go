package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters that must never appear in logs.
var sensitiveParams = []string{
	"password", "code", "token", "secret", "otp",
}

// SanitizeQueryString reports whether a raw query string contains sensitive
// parameters and should be redacted from request logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable query strings are redacted rather than logged raw
		return true
	}

	for key := range values {
		lower := strings.ToLower(key)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, sensitive) {
				return true
			}
		}
	}

	return false
}
