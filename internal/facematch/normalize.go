package facematch

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g. "Śrīdevī" -> "Sridevi").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics,
// spaces for dashes and underscores, collapsed whitespace).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// NameFromFilename derives a normalized person name from a photo file name,
// e.g. "Asha_Devi.jpg" -> "asha devi".
func NameFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return NormalizePersonName(base)
}

// NameContains reports whether name contains query after normalization of both.
func NameContains(name, query string) bool {
	return strings.Contains(NormalizePersonName(name), NormalizePersonName(query))
}
