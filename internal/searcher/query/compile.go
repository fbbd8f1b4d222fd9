package query

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/textnorm"
)

// TextMatch selects how single terms are matched.
type TextMatch string

const (
	// TextMatchSubstring matches terms anywhere inside column text.
	TextMatchSubstring TextMatch = "substring"
	// TextMatchFullText matches alphabetic terms as whole words through the
	// full-text index. Terms with digits or punctuation stay substrings.
	TextMatchFullText TextMatch = "fulltext"
)

// Options tune compilation.
type Options struct {
	TextMatch TextMatch
}

// Compile turns validated text and its parsed intent into a predicate.
//
// A tax-id-only scope compiles to strict equality on the upper-cased text
// and nothing else. Otherwise each phrase, include term and OR member must
// match in at least one active column, each exclude term must match in
// none, and the filters are ANDed on top.
func Compile(text string, intent parser.Intent, scopes contracts.ScopeSet, filters Filters, opts Options) Predicate {
	filterPred := filters.Normalize().Predicate()
	if scopes.IsTaxIDOnly() {
		return And(Equals(contracts.ColumnTaxID, strings.ToUpper(text)), filterPred)
	}

	c := compiler{columns: scopes.Columns(), opts: opts}
	parts := make([]Predicate, 0, len(intent.ExactPhrases)+len(intent.IncludeTerms)+len(intent.ExcludeTerms)+2)
	for _, phrase := range intent.ExactPhrases {
		parts = append(parts, c.phrase(phrase))
	}
	for _, term := range intent.IncludeTerms {
		parts = append(parts, c.term(term))
	}
	if len(intent.ORGroup) > 0 {
		members := make([]Predicate, 0, len(intent.ORGroup))
		for _, member := range intent.ORGroup {
			members = append(members, c.allWords(member))
		}
		parts = append(parts, Or(members...))
	}
	for _, term := range intent.ExcludeTerms {
		parts = append(parts, Not(c.term(term)))
	}
	parts = append(parts, filterPred)
	return And(parts...)
}

type compiler struct {
	columns []contracts.Column
	opts    Options
}

func (c compiler) anyColumn(mode MatchMode, value string) Predicate {
	if value == "" {
		return True()
	}
	ps := make([]Predicate, len(c.columns))
	for i, col := range c.columns {
		ps[i] = Match(col, mode, value)
	}
	return Or(ps...)
}

func (c compiler) phrase(p string) Predicate {
	return c.anyColumn(MatchPhrase, textnorm.NormalizeForExactMatch(p))
}

func (c compiler) term(t string) Predicate {
	if c.opts.TextMatch == TextMatchFullText && isPlainWord(t) {
		return c.anyColumn(MatchWord, textnorm.Fold(t))
	}
	return c.anyColumn(MatchContains, textnorm.Fold(t))
}

// allWords requires every word of a multi-word OR member.
func (c compiler) allWords(member string) Predicate {
	words := strings.Fields(member)
	ps := make([]Predicate, len(words))
	for i, w := range words {
		ps[i] = c.term(w)
	}
	return And(ps...)
}

func isPlainWord(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
