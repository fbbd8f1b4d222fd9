package query

import (
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
)

// Search is the user-facing description of what to match.
type Search struct {
	Text string
	// Scope is a scope name; unknown names fall back to all columns.
	Scope string
	// Fields, when non-empty, replaces Scope with the union of several
	// scopes.
	Fields  []string
	Filters Filters
}

// Compiled is a validated, parsed and compiled search.
type Compiled struct {
	Text      string
	Scope     contracts.Scope
	Scopes    contracts.ScopeSet
	Intent    parser.Intent
	Predicate Predicate
}

// Build validates, parses and compiles s. Only validation can fail.
func Build(s Search, maxLen int, opts Options) (Compiled, error) {
	scope := contracts.ScopeOrAll(s.Scope)
	scopes := contracts.Effective(scope, contracts.ParseScopeSet(s.Fields))

	text, err := Validate(s.Text, scopes, maxLen)
	if err != nil {
		return Compiled{}, err
	}
	var intent parser.Intent
	if !scopes.IsTaxIDOnly() {
		intent = parser.Parse(text)
		if intent.Empty() {
			return Compiled{}, apperrors.Validation("query contains no search terms")
		}
		if !intent.HasPositive() {
			return Compiled{}, apperrors.Validation("query must contain at least one term that is not excluded")
		}
	}
	return Compiled{
		Text:      text,
		Scope:     scope,
		Scopes:    scopes,
		Intent:    intent,
		Predicate: Compile(text, intent, scopes, s.Filters, opts),
	}, nil
}
