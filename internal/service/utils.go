package service

import (
	"strings"
)

// cleanQuestion trims the visitor's text and drops invalid UTF-8 bytes,
// which PostgreSQL rejects in query parameters.
func cleanQuestion(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}
