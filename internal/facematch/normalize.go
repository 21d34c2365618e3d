package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Satyā" -> "Satya").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name or code for report search (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// NormalizeIdentifier trims surrounding whitespace and byte order marks from a
// typed or scanned identifier. Interior characters and case are
// kept: lookups are exact.
func NormalizeIdentifier(id string) string {
	return strings.TrimFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
}
