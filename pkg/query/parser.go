package query

import "strings"

// DefaultMaxDepth is the parenthesis nesting depth a Parser honours unless
// configured otherwise.
const DefaultMaxDepth = 64

// Parser turns query strings into trees. A Parser holds only configuration,
// so a single value may be shared by any number of goroutines.
type Parser struct {
	maxDepth int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth limits how deeply parenthesized groups may nest. Once the limit
// is reached, a further "(" is read as an ordinary character instead of
// opening another group. Values below 1 select DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth < 1 {
			depth = DefaultMaxDepth
		}
		p.maxDepth = depth
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxDepth returns the configured nesting limit.
func (p *Parser) MaxDepth() int {
	return p.maxDepth
}

var defaultParser = New()

// Parse parses query with the default parser. See Parser.Parse.
func Parse(query string) Group {
	return defaultParser.Parse(query)
}

// Parse scans query once, left to right, and returns the root group. It never
// fails: an unterminated quote runs to the end of the input, an unmatched "("
// groups everything after it, and an unmatched ")" outside any group is kept
// as text.
func (p *Parser) Parse(query string) Group {
	s := &scanner{input: query, maxDepth: p.maxDepth}
	return s.buildGroup(false, false)
}

// scanner is the per-call scan state.
type scanner struct {
	input    string
	pos      int
	depth    int
	maxDepth int
}

func (s *scanner) buildGroup(subquery, prohibited bool) Group {
	var children []Node
	for s.pos < len(s.input) {
		n, end := s.buildNextNode(subquery)
		if n != nil {
			children = append(children, n)
		}
		if end {
			break
		}
	}
	return Group{children: children, prohibited: prohibited}
}

// buildNextNode consumes input up to the end of one node. It returns the node,
// or nil when nothing but separators was consumed, and whether the enclosing
// group is finished: either the input is exhausted or a ")" closed a subquery.
//
// Bytes are examined one at a time. All syntax characters are ASCII and never
// occur inside a multi-byte UTF-8 sequence, so other text passes through intact.
func (s *scanner) buildNextNode(subquery bool) (Node, bool) {
	var (
		token      strings.Builder
		field      string
		prohibited bool
		quoted     bool
	)

	for s.pos < len(s.input) {
		c := s.input[s.pos]
		s.pos++

		if quoted {
			if c == '"' {
				return newNode(token.String(), field, prohibited), false
			}
			token.WriteByte(c)
			continue
		}

		switch c {
		case '-':
			if token.Len() == 0 {
				prohibited = true
				continue
			}
		case '"':
			if token.Len() == 0 {
				quoted = true
				continue
			}
		case '(':
			if token.Len() == 0 && s.depth < s.maxDepth {
				s.depth++
				g := s.buildGroup(true, prohibited)
				s.depth--
				return g, false
			}
		case ')':
			if subquery {
				if token.Len() > 0 || field != "" {
					return newNode(token.String(), field, prohibited), true
				}
				return nil, true
			}
		case ':':
			if token.Len() > 0 {
				field = token.String()
				token.Reset()
				continue
			}
		case ' ':
			if token.Len() > 0 {
				return newNode(token.String(), field, prohibited), false
			}
			continue
		}

		token.WriteByte(c)
	}

	if token.Len() > 0 || field != "" {
		return newNode(token.String(), field, prohibited), true
	}
	return nil, true
}

func newNode(token, field string, prohibited bool) Node {
	if strings.TrimSpace(field) != "" {
		return NewFieldTerm(field, token, prohibited)
	}
	return NewTerm(token, prohibited)
}
