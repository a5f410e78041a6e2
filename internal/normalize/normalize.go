// Package normalize provides utilities for normalizing text carried on
// events.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxSearchTextLen caps searchable metadata values. Interoperating clients
// rely on this bound when building tag filters.
const maxSearchTextLen = 256

// SearchText lower-cases and NFC-normalizes a metadata value (title, author)
// so that independently published metadata events converge on the same
// searchable form. The result is capped at 256 characters.
func SearchText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxSearchTextLen {
		return string(runes[:maxSearchTextLen])
	}
	return s
}
