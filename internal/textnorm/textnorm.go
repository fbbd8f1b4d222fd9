// Package textnorm canonicalizes text for accent- and case-insensitive
// matching. The same rules are rendered into SQL by the postgres store, so
// changes here must be mirrored there.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents decomposes s and drops combining marks, so "México" becomes
// "Mexico" and "ñ" becomes "n". Base letters, digits and case are kept.
func StripAccents(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold is StripAccents followed by lower-casing: the form used for
// substring matching.
func Fold(s string) string {
	return strings.ToLower(StripAccents(s))
}

// NormalizeForExactMatch folds s and collapses every run of characters that
// are not letters or digits into a single space, trimming the ends.
// "GARCÍA. CHÁVEZ" becomes "garcia chavez".
func NormalizeForExactMatch(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Words splits the normalized form of s into words.
func Words(s string) []string {
	return strings.Fields(NormalizeForExactMatch(s))
}

// CorporateSuffixPattern matches a trailing Mexican company-form suffix on
// normalized text ("acme sa de cv", "acme s de rl"). It is valid in both Go
// RE2 and PostgreSQL ARE syntax.
const CorporateSuffixPattern = ` (s a p i|sapi|s a b|sab|s de r l|s de rl|s en c|s a|sa|s c|sc|a c|ac)( de (c v|cv))?$`

var corporateSuffix = regexp.MustCompile(CorporateSuffixPattern)

// SupplierKey is the identity of a supplier without a real tax id: its
// normalized name with the company-form suffix removed, so "ACME SA" and
// "Acme" group together.
func SupplierKey(name string) string {
	n := NormalizeForExactMatch(name)
	if stripped := corporateSuffix.ReplaceAllString(n, ""); stripped != "" {
		return stripped
	}
	return n
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
