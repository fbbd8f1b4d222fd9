// Package parser extracts search operators from a raw query: quoted
// phrases, -exclusions, one OR group and implicit AND terms.
package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	phrasePattern  = regexp.MustCompile(`"([^"]+)"`)
	excludePattern = regexp.MustCompile(`(?:^|\s)-\s*([\p{L}\p{N}_]+)`)
	orSeparator    = regexp.MustCompile(`(?i)\s+OR\s+`)
)

// Intent is the structured form of a query. It is built once per request
// and not modified afterwards.
type Intent struct {
	ExactPhrases []string
	IncludeTerms []string
	ExcludeTerms []string
	// ORGroup holds the members of the single OR group, if any. A member may
	// span several words.
	ORGroup      []string
	HasOperators bool
}

// Parse extracts operators left to right, removing each match before the
// next step runs: phrases, then exclusions, then the OR group, which
// consumes everything that is left. Only without an OR group does the rest
// become include terms.
func Parse(raw string) Intent {
	intent := Intent{}
	text := raw

	for _, m := range phrasePattern.FindAllStringSubmatch(text, -1) {
		if phrase := strings.Join(strings.Fields(m[1]), " "); phrase != "" {
			intent.ExactPhrases = append(intent.ExactPhrases, phrase)
		}
	}
	text = phrasePattern.ReplaceAllString(text, " ")

	for _, m := range excludePattern.FindAllStringSubmatch(text, -1) {
		intent.ExcludeTerms = append(intent.ExcludeTerms, m[1])
	}
	text = excludePattern.ReplaceAllString(text, " ")

	if parts := orSeparator.Split(text, -1); len(parts) > 1 {
		for _, part := range parts {
			if member := strings.Join(cleanWords(part), " "); member != "" {
				intent.ORGroup = append(intent.ORGroup, member)
			}
		}
	} else {
		intent.IncludeTerms = cleanWords(text)
	}

	intent.HasOperators = len(intent.ExactPhrases) > 0 ||
		len(intent.ExcludeTerms) > 0 ||
		len(intent.ORGroup) > 0
	return intent
}

// cleanWords splits s on whitespace, drops the AND/OR keywords and strips
// stray quotes and parentheses. Words left without a letter or digit, such
// as a dangling "-", are dropped.
func cleanWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if strings.EqualFold(w, "and") || strings.EqualFold(w, "or") {
			continue
		}
		w = strings.Map(func(r rune) rune {
			switch r {
			case '"', '(', ')':
				return -1
			}
			return r
		}, w)
		if hasWordChar(w) {
			words = append(words, w)
		}
	}
	return words
}

func hasWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// SimpleQuery flattens the intent back into plain words: phrases, include
// terms and the first OR member. It is what clients show as the
// "simplified" query and what older, operator-unaware callers re-submit.
func (i Intent) SimpleQuery() string {
	parts := make([]string, 0, len(i.ExactPhrases)+len(i.IncludeTerms)+1)
	parts = append(parts, i.ExactPhrases...)
	parts = append(parts, i.IncludeTerms...)
	if len(i.ORGroup) > 0 {
		parts = append(parts, i.ORGroup[0])
	}
	return strings.Join(parts, " ")
}

// HasPositive reports whether the intent names something a row must
// contain. Exclusions alone only narrow a match and do not count.
func (i Intent) HasPositive() bool {
	return len(i.ExactPhrases) > 0 || len(i.IncludeTerms) > 0 || len(i.ORGroup) > 0
}

// Empty reports whether the intent would match nothing in particular.
func (i Intent) Empty() bool {
	return len(i.ExactPhrases) == 0 && len(i.IncludeTerms) == 0 &&
		len(i.ExcludeTerms) == 0 && len(i.ORGroup) == 0
}
