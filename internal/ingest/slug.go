package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes characters and drops combining marks, so "žluťoučký"
// slugs as "zlutoucky".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases v, strips diacritics, and collapses every run of
// non-alphanumeric characters into a single hyphen.
func Slugify(v string) string {
	flat, _, err := transform.String(deaccent, v)
	if err != nil {
		flat = v
	}
	var b strings.Builder
	b.Grow(len(flat))
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(flat) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
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
