package util

import (
	"strings"
	"unicode"
)

// Slugify normalizes a display name into a stable identifier: lowercase,
// runs of non-alphanumerics collapsed to single hyphens, no leading or
// trailing hyphen. "Dr. Zaius Jr." becomes "dr-zaius-jr".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
