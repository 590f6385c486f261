package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases the NFKD form of s and collapses every run of characters
// outside [a-z0-9] into a single hyphen. Decomposed accents count as
// separators, so "Núñez" becomes "nun-ez"; published slugs depend on this.
func Slugify(s string) string {
	folded := strings.ToLower(norm.NFKD.String(s))

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
