package query

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
)

var taxIDShape = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

// Validate checks and scrubs raw query text before it is parsed. Text
// longer than maxLen runes is rejected; every rune outside the allow-list
// (Latin letters, digits, underscore, whitespace, hyphen, double quote,
// parentheses) is removed. For a tax-id-only search the result is the
// upper-cased identifier, which must have the registry's tax id shape.
func Validate(raw string, scopes contracts.ScopeSet, maxLen int) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperrors.Validation("query must not be empty")
	}
	if n := utf8.RuneCountInString(text); maxLen > 0 && n > maxLen {
		return "", apperrors.Validation("query is too long (%d characters, maximum %d)", n, maxLen)
	}

	taxIDOnly := scopes.IsTaxIDOnly()
	text = strings.Join(strings.Fields(scrub(text, taxIDOnly)), " ")
	if text == "" {
		return "", apperrors.Validation("query contains no searchable characters")
	}

	if taxIDOnly {
		id := strings.ToUpper(strings.Map(func(r rune) rune {
			switch {
			case r == '"', r == '-', r == '(', r == ')', unicode.IsSpace(r):
				return -1
			}
			return r
		}, text))
		if !taxIDShape.MatchString(id) {
			return "", apperrors.Validation("%q is not a valid tax id", id)
		}
		return id, nil
	}
	return text, nil
}

// scrub removes disallowed runes and turns any whitespace into a plain
// space. '&' is kept only for tax ids, where it is part of the format.
func scrub(s string, keepAmpersand bool) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.Is(unicode.Latin, r), unicode.IsDigit(r):
			return r
		case r == '_', r == '-', r == '"', r == '(', r == ')':
			return r
		case r == '&' && keepAmpersand:
			return r
		}
		return -1
	}, s)
}
