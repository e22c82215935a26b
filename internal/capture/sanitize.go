package capture

import (
	"net/http"
	"strings"
)

const Redacted = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"api-key":             true,
	"x-auth-token":        true,
}

func isSensitive(name string) bool {
	if sensitiveHeaders[name] {
		return true
	}
	return strings.Contains(name, "api-key") || strings.Contains(name, "apikey")
}

// SanitizeHeaders flattens h into lowercase keys, joining repeated values
// with ", ", and replaces credential-bearing values with Redacted.
func SanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if isSensitive(key) {
			out[key] = Redacted
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
