// Package query parses transaction search strings into a query tree.
//
// A query is a sequence of nodes joined by implicit conjunction. Each node is
// a free-text Term, a field-scoped FieldTerm ("amount:10") or a parenthesized
// Group, and any of them may be negated with a leading "-":
//
//	merchant:"blue tokai" -category:travel (amount:>500 -label:reimbursed)
//
// Parsing never fails. Malformed input (unterminated quotes, unbalanced
// parentheses, stray colons) is absorbed and the best-effort tree is returned.
// Interpreting the tree is left to the caller; see package filter.
package query

import (
	"encoding/json"
	"strings"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	// KindTerm is a free-text Term.
	KindTerm Kind = iota
	// KindFieldTerm is a field-scoped FieldTerm.
	KindFieldTerm
	// KindGroup is a Group of child nodes.
	KindGroup
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindFieldTerm:
		return "field"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Node is one element of a query tree. The set of implementations is closed:
// Term, FieldTerm and Group are the only nodes, so a switch on Kind (or a type
// switch) over those three is exhaustive.
type Node interface {
	// Kind reports which variant the node is.
	Kind() Kind
	// Prohibited reports whether the node is negated.
	Prohibited() bool
	// String renders the node in query syntax.
	String() string

	node()
}

// Term is a free-text search token.
type Term struct {
	value      string
	prohibited bool
}

// NewTerm returns a Term with the given value, trimmed of surrounding whitespace.
func NewTerm(value string, prohibited bool) Term {
	return Term{value: strings.TrimSpace(value), prohibited: prohibited}
}

// Value returns the search text.
func (t Term) Value() string { return t.value }

// Kind returns KindTerm.
func (t Term) Kind() Kind { return KindTerm }

// Prohibited reports whether the term is negated.
func (t Term) Prohibited() bool { return t.prohibited }

func (Term) node() {}

// FieldTerm is a token scoped to a named field, e.g. amount:10.
type FieldTerm struct {
	field      string
	value      string
	prohibited bool
}

// NewFieldTerm returns a FieldTerm with field and value trimmed of surrounding
// whitespace. It panics if the trimmed field is empty: a token without a field
// name is a Term.
func NewFieldTerm(field, value string, prohibited bool) FieldTerm {
	field = strings.TrimSpace(field)
	if field == "" {
		panic("query: FieldTerm requires a field name")
	}
	return FieldTerm{field: field, value: strings.TrimSpace(value), prohibited: prohibited}
}

// Field returns the field name as written in the query.
func (f FieldTerm) Field() string { return f.field }

// Value returns the value the field is matched against. It may be empty.
func (f FieldTerm) Value() string { return f.value }

// Kind returns KindFieldTerm.
func (f FieldTerm) Kind() Kind { return KindFieldTerm }

// Prohibited reports whether the field term is negated.
func (f FieldTerm) Prohibited() bool { return f.prohibited }

func (FieldTerm) node() {}

// Group is an ordered conjunction of child nodes. The zero value is an empty,
// non-prohibited group.
type Group struct {
	children   []Node
	prohibited bool
}

// NewGroup returns a Group holding a copy of children.
func NewGroup(prohibited bool, children ...Node) Group {
	g := Group{prohibited: prohibited}
	if len(children) > 0 {
		g.children = make([]Node, len(children))
		copy(g.children, children)
	}
	return g
}

// Children returns a copy of the child nodes in input order.
func (g Group) Children() []Node {
	out := make([]Node, len(g.children))
	copy(out, g.children)
	return out
}

// Len returns the number of children.
func (g Group) Len() int { return len(g.children) }

// At returns the i-th child.
func (g Group) At(i int) Node { return g.children[i] }

// Empty reports whether the group has no children.
func (g Group) Empty() bool { return len(g.children) == 0 }

// Kind returns KindGroup.
func (g Group) Kind() Kind { return KindGroup }

// Prohibited reports whether the group is negated as a unit.
func (g Group) Prohibited() bool { return g.prohibited }

func (Group) node() {}

// Walk traverses the tree rooted at n in depth-first pre-order. If fn returns
// false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	if g, ok := n.(Group); ok {
		for _, child := range g.children {
			Walk(child, fn)
		}
	}
}

// Equal reports whether a and b are structurally identical trees.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Prohibited() != b.Prohibited() {
		return false
	}
	switch x := a.(type) {
	case Term:
		return x.value == b.(Term).value
	case FieldTerm:
		y := b.(FieldTerm)
		return x.field == y.field && x.value == y.value
	case Group:
		y := b.(Group)
		if len(x.children) != len(y.children) {
			return false
		}
		for i := range x.children {
			if !Equal(x.children[i], y.children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

type jsonTerm struct {
	Type       string `json:"type"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value"`
	Prohibited bool   `json:"prohibited"`
}

type jsonGroup struct {
	Type       string `json:"type"`
	Prohibited bool   `json:"prohibited"`
	Children   []Node `json:"children"`
}

// MarshalJSON encodes the term as {"type":"term","value":...}.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTerm{Type: KindTerm.String(), Value: t.value, Prohibited: t.prohibited})
}

// MarshalJSON encodes the field term as {"type":"field","field":...,"value":...}.
func (f FieldTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTerm{Type: KindFieldTerm.String(), Field: f.field, Value: f.value, Prohibited: f.prohibited})
}

// MarshalJSON encodes the group and its children recursively.
func (g Group) MarshalJSON() ([]byte, error) {
	children := g.children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(jsonGroup{Type: KindGroup.String(), Prohibited: g.prohibited, Children: children})
}
