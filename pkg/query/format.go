package query

import "strings"

// String renders the term, quoting the value where the parser would
// otherwise read it differently.
func (t Term) String() string {
	var b strings.Builder
	if t.prohibited {
		b.WriteByte('-')
	}
	b.WriteString(quote(t.value))
	return b.String()
}

// String renders the field term as field:value.
func (f FieldTerm) String() string {
	var b strings.Builder
	if f.prohibited {
		b.WriteByte('-')
	}
	b.WriteString(f.field)
	b.WriteByte(':')
	b.WriteString(quote(f.value))
	return b.String()
}

// String renders the group as a root query: children separated by spaces
// with no enclosing parentheses. A prohibited group is written as -( ... ).
// Parsing the result yields a tree equal to g for any tree Parse produced
// from input without unterminated quotes or parentheses.
func (g Group) String() string {
	var b strings.Builder
	if g.prohibited {
		writeNested(&b, g)
		return b.String()
	}
	writeChildren(&b, g)
	return b.String()
}

func writeChildren(b *strings.Builder, g Group) {
	for i, child := range g.children {
		if i > 0 {
			b.WriteByte(' ')
		}
		if sub, ok := child.(Group); ok {
			writeNested(b, sub)
			continue
		}
		b.WriteString(child.String())
	}
}

func writeNested(b *strings.Builder, g Group) {
	if g.prohibited {
		b.WriteByte('-')
	}
	b.WriteByte('(')
	writeChildren(b, g)
	b.WriteByte(')')
}

// quote wraps v in double quotes when it is empty, contains a separator or
// parenthesis, or starts with a character that is special at token start.
// A value holding a double quote cannot be quoted and is written raw.
func quote(v string) string {
	if !needsQuote(v) || strings.Contains(v, `"`) {
		return v
	}
	return `"` + v + `"`
}

func needsQuote(v string) bool {
	if v == "" {
		return true
	}
	switch v[0] {
	case '-', '"':
		return true
	}
	return strings.ContainsAny(v, " :()")
}
