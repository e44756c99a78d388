package identity

import (
	"strings"
	"unicode"
)

// Normalize lowercases a scanned code and strips any whitespace, interior
// included, since some scanner firmwares inject separators mid-read. Two
// scans of the same label must always normalise to the same identity key.
func Normalize(code string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(code) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
