package memory

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/textnorm"
)

// Matches evaluates p against c with the same text semantics the postgres
// store renders into SQL.
func Matches(p query.Predicate, c contracts.Contract) bool {
	return eval(p.Root(), c)
}

func eval(n query.Node, c contracts.Contract) bool {
	switch n.Kind() {
	case query.KindTrue:
		return true
	case query.KindFalse:
		return false
	case query.KindAnd:
		for _, child := range n.Children() {
			if !eval(child, c) {
				return false
			}
		}
		return true
	case query.KindOr:
		for _, child := range n.Children() {
			if eval(child, c) {
				return true
			}
		}
		return false
	case query.KindNot:
		return !eval(n.Children()[0], c)
	case query.KindEquals:
		return c.Field(n.Column()) == n.Value()
	case query.KindIn:
		v := c.Field(n.Column())
		for _, want := range n.Values() {
			if v == want {
				return true
			}
		}
		return false
	case query.KindMatch:
		return matchText(n.Mode(), c.Field(n.Column()), n.Value())
	}
	return false
}

func matchText(mode query.MatchMode, field, value string) bool {
	if field == "" {
		return false
	}
	switch mode {
	case query.MatchPhrase:
		return strings.Contains(textnorm.NormalizeForExactMatch(field), value)
	case query.MatchWord:
		have := make(map[string]bool)
		for _, w := range textnorm.Words(field) {
			have[w] = true
		}
		for _, w := range textnorm.Words(value) {
			if !have[w] {
				return false
			}
		}
		return true
	default:
		return strings.Contains(textnorm.Fold(field), value)
	}
}
