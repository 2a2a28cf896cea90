// Package filter compiles query trees into transaction filters: SQL WHERE
// clauses for the database stores and in-memory predicates for the JSON store.
//
// Both compilers share one field table and one set of value rules, so a query
// matches the same transactions whichever store runs it.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

var (
	// ErrUnknownField is returned for a field name that is not in the field table.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned when a number or date value cannot be read.
	ErrInvalidValue = errors.New("invalid value")
)

// Kind is the value type of a searchable field.
type Kind int

const (
	// Text fields match case-insensitive substrings.
	Text Kind = iota
	// Number fields match exact values, comparisons and ranges.
	Number
	// Date fields match calendar intervals, comparisons and ranges.
	Date
	// Label matches any label attached to the transaction.
	Label
)

// Field describes one searchable transaction attribute.
type Field struct {
	// Name is the canonical query name.
	Name string
	// Aliases are alternative query names.
	Aliases []string
	Kind    Kind
	// Column is the transactions table column. Empty for labels.
	Column string
}

// Fields lists every searchable field.
var Fields = []Field{
	{Name: "amount", Aliases: []string{"amt"}, Kind: Number, Column: "amount"},
	{Name: "currency", Aliases: []string{"cur"}, Kind: Text, Column: "currency"},
	{Name: "merchant", Aliases: []string{"merchant_info", "payee"}, Kind: Text, Column: "merchant_info"},
	{Name: "category", Aliases: []string{"cat"}, Kind: Text, Column: "category"},
	{Name: "bucket", Kind: Text, Column: "bucket"},
	{Name: "source", Aliases: []string{"src", "account"}, Kind: Text, Column: "source"},
	{Name: "description", Aliases: []string{"desc", "note"}, Kind: Text, Column: "description"},
	{Name: "label", Aliases: []string{"labels", "tag"}, Kind: Label},
	{Name: "date", Aliases: []string{"timestamp", "on"}, Kind: Date, Column: "timestamp"},
}

// FreeTextColumns are searched by terms without a field.
var FreeTextColumns = []string{"merchant_info", "category", "bucket", "description", "source"}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field)
	for _, f := range Fields {
		idx[f.Name] = f
		for _, alias := range f.Aliases {
			idx[alias] = f
		}
	}
	return idx
}()

// Lookup finds a field by name or alias, ignoring case.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[strings.ToLower(name)]
	return f, ok
}

// Options adjusts compilation.
type Options struct {
	// UnknownFieldsAsText searches a term with an unknown field as the free
	// text "field:value" instead of failing with ErrUnknownField.
	UnknownFieldsAsText bool
	// Location is the zone date values are read in. Defaults to UTC.
	Location *time.Location
}

// OptionsFrom takes the compilation settings out of search options.
func OptionsFrom(o api.SearchOptions) Options {
	return Options{UnknownFieldsAsText: o.UnknownFieldsAsText, Location: o.Location}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// resolve maps a field term's name to a Field, or reports that the term
// should be treated as free text.
func (o Options) resolve(name string) (f Field, asText bool, err error) {
	if f, ok := Lookup(name); ok {
		return f, false, nil
	}
	if o.UnknownFieldsAsText {
		return Field{}, true, nil
	}
	return Field{}, false, fmt.Errorf("%w: %q", ErrUnknownField, name)
}
