// Package query compiles a validated search into an immutable Predicate
// over contract columns. Every consumer (row paging, aggregation, facets)
// renders or evaluates the same Predicate independently; nothing about it
// can be changed once built.
package query

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
)

// Kind is the type of a predicate node.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindAnd
	KindOr
	KindNot
	KindMatch
	KindEquals
	KindIn
)

// MatchMode selects how a Match node compares text. All modes are accent
// and case insensitive; the node value is already folded accordingly.
type MatchMode int

const (
	// MatchContains: the folded value is a substring of the folded column.
	MatchContains MatchMode = iota
	// MatchWord: every word of the value appears as a word of the column.
	// Rendered as a full-text query so an index can serve it.
	MatchWord
	// MatchPhrase: the normalized value appears contiguously in the
	// normalized column.
	MatchPhrase
)

func (m MatchMode) String() string {
	switch m {
	case MatchWord:
		return "word"
	case MatchPhrase:
		return "phrase"
	default:
		return "contains"
	}
}

type node struct {
	kind     Kind
	children []*node
	column   contracts.Column
	mode     MatchMode
	value    string
	values   []string
}

var (
	trueNode  = &node{kind: KindTrue}
	falseNode = &node{kind: KindFalse}
)

// Predicate is an immutable boolean expression over contract columns. The
// zero value matches every row.
type Predicate struct {
	root *node
}

func (p Predicate) node() *node {
	if p.root == nil {
		return trueNode
	}
	return p.root
}

// True matches every row.
func True() Predicate { return Predicate{root: trueNode} }

// False matches no row.
func False() Predicate { return Predicate{root: falseNode} }

// And matches rows matching every operand. True operands are dropped and
// nested Ands are flattened.
func And(ps ...Predicate) Predicate {
	var children []*node
	for _, p := range ps {
		n := p.node()
		switch n.kind {
		case KindTrue:
			continue
		case KindFalse:
			return False()
		case KindAnd:
			children = append(children, n.children...)
		default:
			children = append(children, n)
		}
	}
	switch len(children) {
	case 0:
		return True()
	case 1:
		return Predicate{root: children[0]}
	}
	return Predicate{root: &node{kind: KindAnd, children: children}}
}

// Or matches rows matching any operand. An Or without operands matches
// nothing.
func Or(ps ...Predicate) Predicate {
	var children []*node
	for _, p := range ps {
		n := p.node()
		switch n.kind {
		case KindFalse:
			continue
		case KindTrue:
			return True()
		case KindOr:
			children = append(children, n.children...)
		default:
			children = append(children, n)
		}
	}
	switch len(children) {
	case 0:
		return False()
	case 1:
		return Predicate{root: children[0]}
	}
	return Predicate{root: &node{kind: KindOr, children: children}}
}

// Not negates p.
func Not(p Predicate) Predicate {
	n := p.node()
	switch n.kind {
	case KindTrue:
		return False()
	case KindFalse:
		return True()
	case KindNot:
		return Predicate{root: n.children[0]}
	}
	return Predicate{root: &node{kind: KindNot, children: []*node{n}}}
}

// Match tests col against value with the given mode. value must already be
// folded (see textnorm.Fold and textnorm.NormalizeForExactMatch).
func Match(col contracts.Column, mode MatchMode, value string) Predicate {
	return Predicate{root: &node{kind: KindMatch, column: col, mode: mode, value: value}}
}

// Equals is strict equality on the raw column value.
func Equals(col contracts.Column, value string) Predicate {
	return Predicate{root: &node{kind: KindEquals, column: col, value: value}}
}

// In matches rows whose col is one of values. An empty set matches nothing.
func In(col contracts.Column, values []string) Predicate {
	if len(values) == 0 {
		return False()
	}
	return Predicate{root: &node{kind: KindIn, column: col, values: slices.Clone(values)}}
}

// Root exposes the expression tree for rendering.
func (p Predicate) Root() Node { return Node{n: p.node()} }

// IsTrue reports whether p matches every row unconditionally.
func (p Predicate) IsTrue() bool { return p.node().kind == KindTrue }

// Node is a read-only view of one expression node.
type Node struct {
	n *node
}

func (n Node) Kind() Kind               { return n.n.kind }
func (n Node) Column() contracts.Column { return n.n.column }
func (n Node) Mode() MatchMode          { return n.n.mode }
func (n Node) Value() string            { return n.n.value }

// Values returns a copy of an In node's value set.
func (n Node) Values() []string { return slices.Clone(n.n.values) }

// Children returns the operands of And, Or and Not nodes.
func (n Node) Children() []Node {
	out := make([]Node, len(n.n.children))
	for i, c := range n.n.children {
		out[i] = Node{n: c}
	}
	return out
}

// String renders p as a canonical s-expression. Equal predicates render
// equally, which makes the output usable as a cache key.
func (p Predicate) String() string {
	var b strings.Builder
	writeNode(&b, p.node())
	return b.String()
}

func writeNode(b *strings.Builder, n *node) {
	switch n.kind {
	case KindTrue:
		b.WriteString("true")
	case KindFalse:
		b.WriteString("false")
	case KindAnd, KindOr, KindNot:
		b.WriteString(map[Kind]string{KindAnd: "(and", KindOr: "(or", KindNot: "(not"}[n.kind])
		for _, c := range n.children {
			b.WriteByte(' ')
			writeNode(b, c)
		}
		b.WriteByte(')')
	case KindMatch:
		b.WriteString("(" + n.mode.String() + " " + string(n.column) + " " + strconv.Quote(n.value) + ")")
	case KindEquals:
		b.WriteString("(= " + string(n.column) + " " + strconv.Quote(n.value) + ")")
	case KindIn:
		b.WriteString("(in " + string(n.column))
		for _, v := range n.values {
			b.WriteString(" " + strconv.Quote(v))
		}
		b.WriteByte(')')
	}
}
