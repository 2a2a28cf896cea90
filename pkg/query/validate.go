package query

import "fmt"

// IssueKind classifies a Validate finding.
type IssueKind int

const (
	// IssueUnterminatedQuote is a quoted value with no closing quote.
	IssueUnterminatedQuote IssueKind = iota
	// IssueUnclosedGroup is a "(" with no matching ")".
	IssueUnclosedGroup
	// IssueUnmatchedClose is a ")" outside any group, kept as text by Parse.
	IssueUnmatchedClose
	// IssueFieldOverwrite is a second ":" in one token, which replaces the
	// field name read so far ("a:b:c" searches field b for c).
	IssueFieldOverwrite
	// IssueTooDeep is a "(" beyond the parser's nesting limit, kept as text.
	IssueTooDeep
)

func (k IssueKind) String() string {
	switch k {
	case IssueUnterminatedQuote:
		return "unterminated quote"
	case IssueUnclosedGroup:
		return "unclosed group"
	case IssueUnmatchedClose:
		return "unmatched ')'"
	case IssueFieldOverwrite:
		return "field name overwritten"
	case IssueTooDeep:
		return "nesting too deep"
	default:
		return "unknown issue"
	}
}

// Issue is a construct Parse accepts leniently but a strict caller may want
// to reject. Offset is the byte index of the offending character.
type Issue struct {
	Kind   IssueKind
	Offset int
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at offset %d", i.Kind, i.Offset)
}

// Validate reports the places where p would silently repair query. It
// follows the same scanning rules as Parse and never changes its result; an
// empty slice means the query is well formed.
func (p *Parser) Validate(query string) []Issue {
	var (
		issues   []Issue
		open     []int
		inToken  bool
		hasField bool
		textOpen int
		quoteAt  = -1
	)

	for i := 0; i < len(query); i++ {
		c := query[i]

		if quoteAt >= 0 {
			if c == '"' {
				quoteAt = -1
				inToken, hasField = false, false
				textOpen = 0
			}
			continue
		}

		switch c {
		case '-':
			if !inToken {
				continue
			}
		case '"':
			if !inToken {
				quoteAt = i
				continue
			}
		case '(':
			if !inToken {
				if len(open) < p.maxDepth {
					open = append(open, i)
					hasField = false
					textOpen = 0
					continue
				}
				issues = append(issues, Issue{Kind: IssueTooDeep, Offset: i})
			}
			textOpen++
		case ')':
			if len(open) > 0 {
				open = open[:len(open)-1]
				inToken, hasField = false, false
				textOpen = 0
				continue
			}
			// At top level a ")" is kept as text, so one that closes a "("
			// written earlier in the same token is balanced.
			if textOpen > 0 {
				textOpen--
				break
			}
			issues = append(issues, Issue{Kind: IssueUnmatchedClose, Offset: i})
		case ':':
			if inToken {
				if hasField {
					issues = append(issues, Issue{Kind: IssueFieldOverwrite, Offset: i})
				}
				hasField = true
				inToken = false
				continue
			}
		case ' ':
			if inToken {
				hasField = false
			}
			inToken = false
			textOpen = 0
			continue
		}

		inToken = true
	}

	if quoteAt >= 0 {
		issues = append(issues, Issue{Kind: IssueUnterminatedQuote, Offset: quoteAt})
	}
	for _, at := range open {
		issues = append(issues, Issue{Kind: IssueUnclosedGroup, Offset: at})
	}
	return issues
}

// Validate checks query with the default parser. See Parser.Validate.
func Validate(query string) []Issue {
	return defaultParser.Validate(query)
}
