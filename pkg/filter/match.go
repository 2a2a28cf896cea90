package filter

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

// Predicate reports whether a transaction matches a compiled query.
type Predicate func(*api.TransactionDetails) bool

// CompileMatcher builds an in-memory predicate with the same semantics as
// Compile. Text comparison uses Unicode case folding.
func CompileMatcher(g query.Group, opts Options) (Predicate, error) {
	m := &matcher{opts: opts}
	return m.node(g)
}

type matcher struct {
	opts Options
}

// folded case-folds s. A Caser is stateful, so predicates that may run
// concurrently take a fresh one per call.
func (m *matcher) folded(s string) string {
	return cases.Fold().String(s)
}

func (m *matcher) node(n query.Node) (Predicate, error) {
	var (
		p   Predicate
		err error
	)
	switch x := n.(type) {
	case query.Group:
		p, err = m.group(x)
	case query.Term:
		p = m.freeText(x.Value())
	case query.FieldTerm:
		p, err = m.field(x)
	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
	if err != nil {
		return nil, err
	}
	if n.Prohibited() {
		return func(t *api.TransactionDetails) bool { return !p(t) }, nil
	}
	return p, nil
}

func (m *matcher) group(g query.Group) (Predicate, error) {
	preds := make([]Predicate, 0, g.Len())
	for _, child := range g.Children() {
		p, err := m.node(child)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(t *api.TransactionDetails) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}, nil
}

func (m *matcher) contains(haystack, needle string) bool {
	return strings.Contains(m.folded(haystack), needle)
}

func (m *matcher) freeText(value string) Predicate {
	needle := m.folded(value)
	return func(t *api.TransactionDetails) bool {
		for _, column := range FreeTextColumns {
			if m.contains(columnValue(t, column), needle) {
				return true
			}
		}
		return false
	}
}

func (m *matcher) field(ft query.FieldTerm) (Predicate, error) {
	f, asText, err := m.opts.resolve(ft.Field())
	if err != nil {
		return nil, err
	}
	if asText {
		return m.freeText(ft.Field() + ":" + ft.Value()), nil
	}

	switch f.Kind {
	case Text:
		if ft.Value() == "" {
			return func(t *api.TransactionDetails) bool { return columnValue(t, f.Column) == "" }, nil
		}
		needle := m.folded(ft.Value())
		return func(t *api.TransactionDetails) bool {
			return m.contains(columnValue(t, f.Column), needle)
		}, nil
	case Label:
		if ft.Value() == "" {
			return func(t *api.TransactionDetails) bool { return len(t.Labels) == 0 }, nil
		}
		needle := m.folded(ft.Value())
		return func(t *api.TransactionDetails) bool {
			for _, l := range t.Labels {
				if m.contains(l, needle) {
					return true
				}
			}
			return false
		}, nil
	case Number:
		r, err := parseAmount(ft.Value())
		if err != nil {
			return nil, err
		}
		return func(t *api.TransactionDetails) bool { return r.contains(t.Amount) }, nil
	case Date:
		loc := m.opts.location()
		r, err := parseDate(ft.Value(), loc)
		if err != nil {
			return nil, err
		}
		return func(t *api.TransactionDetails) bool {
			ts, ok := ParseTimestamp(t.Timestamp, loc)
			return ok && r.contains(ts)
		}, nil
	}
	return nil, fmt.Errorf("field %q has unsupported kind %d", f.Name, f.Kind)
}

// columnValue reads the transaction attribute stored in a table column.
func columnValue(t *api.TransactionDetails, column string) string {
	switch column {
	case "merchant_info":
		return t.MerchantInfo
	case "category":
		return t.Category
	case "bucket":
		return t.Bucket
	case "source":
		return t.Source
	case "description":
		return t.Description
	case "currency":
		return t.Currency
	}
	return ""
}
