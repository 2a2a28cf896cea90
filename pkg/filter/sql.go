package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/query"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// like is the case-insensitive LIKE operator.
	like string
	// placeholderPrefix precedes the 1-based argument number.
	placeholderPrefix string
	// timeArg converts a bound into the driver's timestamp representation.
	timeArg func(time.Time) any
}

// Postgres targets PostgreSQL through pgx.
var Postgres = Dialect{
	Name:              "postgres",
	like:              "ILIKE",
	placeholderPrefix: "$",
	timeArg:           func(t time.Time) any { return t },
}

// SQLite targets SQLite, where timestamps are stored as RFC 3339 UTC text
// and LIKE is already case-insensitive for ASCII.
var SQLite = Dialect{
	Name:              "sqlite",
	like:              "LIKE",
	placeholderPrefix: "?",
	timeArg:           func(t time.Time) any { return FormatSQLiteTime(t) },
}

// FormatSQLiteTime renders t the way the SQLite store persists timestamps,
// so that text comparison orders them chronologically.
func FormatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Placeholder returns the parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	return d.placeholderPrefix + strconv.Itoa(n)
}

// Clause is a compiled WHERE condition with its positional arguments.
type Clause struct {
	SQL  string
	Args []any
}

// Compile translates a query tree into a condition over the transactions
// table. Group children are joined with AND, prohibited nodes are wrapped in
// NOT, and an empty group compiles to a condition that is always true.
func Compile(g query.Group, d Dialect, opts Options) (Clause, error) {
	c := &sqlCompiler{dialect: d, opts: opts}
	sql, err := c.node(g)
	if err != nil {
		return Clause{}, err
	}
	return Clause{SQL: sql, Args: c.args}, nil
}

type sqlCompiler struct {
	dialect Dialect
	opts    Options
	args    []any
}

func (c *sqlCompiler) bind(v any) string {
	c.args = append(c.args, v)
	return c.dialect.Placeholder(len(c.args))
}

func (c *sqlCompiler) node(n query.Node) (string, error) {
	var (
		sql string
		err error
	)
	switch x := n.(type) {
	case query.Group:
		sql, err = c.group(x)
	case query.Term:
		sql = c.freeText(x.Value())
	case query.FieldTerm:
		sql, err = c.field(x)
	default:
		return "", fmt.Errorf("unsupported node %T", n)
	}
	if err != nil {
		return "", err
	}
	if n.Prohibited() {
		return "NOT " + sql, nil
	}
	return sql, nil
}

func (c *sqlCompiler) group(g query.Group) (string, error) {
	if g.Empty() {
		return "(1=1)", nil
	}
	parts := make([]string, 0, g.Len())
	for _, child := range g.Children() {
		sql, err := c.node(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (c *sqlCompiler) likeExpr(column, placeholder string) string {
	return fmt.Sprintf(`COALESCE(%s, '') %s %s ESCAPE '\'`, column, c.dialect.like, placeholder)
}

func (c *sqlCompiler) freeText(value string) string {
	p := c.bind(likePattern(value))
	parts := make([]string, 0, len(FreeTextColumns))
	for _, column := range FreeTextColumns {
		parts = append(parts, c.likeExpr(column, p))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c *sqlCompiler) field(ft query.FieldTerm) (string, error) {
	f, asText, err := c.opts.resolve(ft.Field())
	if err != nil {
		return "", err
	}
	if asText {
		return c.freeText(ft.Field() + ":" + ft.Value()), nil
	}

	switch f.Kind {
	case Text:
		if ft.Value() == "" {
			return fmt.Sprintf("(COALESCE(%s, '') = '')", f.Column), nil
		}
		return "(" + c.likeExpr(f.Column, c.bind(likePattern(ft.Value()))) + ")", nil
	case Label:
		if ft.Value() == "" {
			return "(NOT EXISTS (SELECT 1 FROM transaction_labels l WHERE l.transaction_id = transactions.id))", nil
		}
		return fmt.Sprintf(
			`(EXISTS (SELECT 1 FROM transaction_labels l WHERE l.transaction_id = transactions.id AND l.label %s %s ESCAPE '\'))`,
			c.dialect.like, c.bind(likePattern(ft.Value())),
		), nil
	case Number:
		r, err := parseAmount(ft.Value())
		if err != nil {
			return "", err
		}
		return c.amount(f.Column, r), nil
	case Date:
		r, err := parseDate(ft.Value(), c.opts.location())
		if err != nil {
			return "", err
		}
		return c.date(f.Column, r), nil
	}
	return "", fmt.Errorf("field %q has unsupported kind %d", f.Name, f.Kind)
}

func (c *sqlCompiler) amount(column string, r numRange) string {
	if r.hasMin && r.hasMax && r.min == r.max && !r.minExcl && !r.maxExcl {
		return fmt.Sprintf("(%s = %s)", column, c.bind(r.min))
	}
	var parts []string
	if r.hasMin {
		op := ">="
		if r.minExcl {
			op = ">"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", column, op, c.bind(r.min)))
	}
	if r.hasMax {
		op := "<="
		if r.maxExcl {
			op = "<"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", column, op, c.bind(r.max)))
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (c *sqlCompiler) date(column string, r timeRange) string {
	var parts []string
	if !r.from.IsZero() {
		parts = append(parts, fmt.Sprintf("%s >= %s", column, c.bind(c.dialect.timeArg(r.from))))
	}
	if !r.to.IsZero() {
		parts = append(parts, fmt.Sprintf("%s < %s", column, c.bind(c.dialect.timeArg(r.to))))
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search value into a substring LIKE pattern.
func likePattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}
