package middleware

import "strings"

// MaskSessionID keeps only a short prefix of a session id for logs.
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
