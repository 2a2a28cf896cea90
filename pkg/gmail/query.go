package gmail

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/filter"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

// ErrUnsupportedField is returned by Render for a field term Gmail search
// cannot express.
var ErrUnsupportedField = errors.New("field not supported by gmail search")

// gmailOperators are passed through as Gmail search operators.
var gmailOperators = map[string]bool{
	"from": true, "to": true, "cc": true, "bcc": true, "subject": true,
	"label": true, "is": true, "has": true, "in": true,
	"filename": true, "after": true, "before": true, "older_than": true,
	"newer_than": true, "list": true,
}

// textFields are transaction fields that only appear in the mail body, so
// they are searched as plain words.
var textFields = map[string]bool{
	"merchant": true, "description": true, "amount": true, "source": true,
}

// Render translates a query tree into a Gmail search string. Terms become
// words, prohibited nodes are prefixed with "-", nested groups are
// parenthesised and empty groups are dropped.
func Render(g query.Group) (string, error) {
	return renderChildren(g)
}

func renderChildren(g query.Group) (string, error) {
	parts := make([]string, 0, g.Len())
	for _, child := range g.Children() {
		s, err := renderNode(child)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func renderNode(n query.Node) (string, error) {
	var (
		s   string
		err error
	)
	switch x := n.(type) {
	case query.Group:
		s, err = renderChildren(x)
		if s != "" {
			s = "(" + s + ")"
		}
	case query.Term:
		s = word(x.Value())
	case query.FieldTerm:
		s, err = renderField(x)
	default:
		return "", fmt.Errorf("unsupported node %T", n)
	}
	if err != nil || s == "" {
		return "", err
	}
	if n.Prohibited() {
		return "-" + s, nil
	}
	return s, nil
}

func renderField(ft query.FieldTerm) (string, error) {
	name := strings.ToLower(ft.Field())
	value := ft.Value()
	if value == "" {
		return "", fmt.Errorf("%w: empty value for %q", ErrUnsupportedField, ft.Field())
	}

	if gmailOperators[name] {
		return name + ":" + word(value), nil
	}

	f, ok := filter.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedField, ft.Field())
	}

	switch {
	case f.Name == "date":
		return renderDate(value)
	case f.Name == "amount":
		n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return "", fmt.Errorf("%w: amount %q", ErrUnsupportedField, value)
		}
		return word(value), nil
	case textFields[f.Name]:
		return word(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedField, ft.Field())
}

const gmailDate = "2006/01/02"

// renderDate maps a date value onto after:/before:. Gmail compares whole
// days, so both bounds are rendered as dates.
func renderDate(value string) (string, error) {
	from, to, err := filter.ParseDateRange(value, time.UTC)
	if err != nil {
		return "", err
	}

	var parts []string
	if !from.IsZero() {
		parts = append(parts, "after:"+from.Format(gmailDate))
	}
	if !to.IsZero() {
		parts = append(parts, "before:"+to.Format(gmailDate))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " ") + ")", nil
}

// word quotes a value that Gmail would otherwise split or misread.
func word(v string) string {
	v = strings.ReplaceAll(v, `"`, "")
	if v == "" {
		return ""
	}
	if strings.ContainsAny(v, " ():{}") || strings.HasPrefix(v, "-") {
		return `"` + v + `"`
	}
	return v
}
