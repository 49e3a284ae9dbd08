package odata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Condition is a SQL WHERE fragment with positional arguments.
type Condition struct {
	Clause string
	Args   []any
}

// TranslateFilter parses an AIP-160 filter against the set's declarations and
// renders it as SQL. Placeholders are numbered from offset+1 so the result can
// follow the set's scope arguments.
func TranslateFilter(set *EntitySet, filter string, offset int) (Condition, error) {
	if strings.TrimSpace(filter) == "" {
		return Condition{}, nil
	}
	decls, err := set.declarations()
	if err != nil {
		return Condition{}, fmt.Errorf("declarations for %s: %w", set.Name, err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return Condition{}, err
	}
	t := &translator{set: set, offset: offset}
	clause, err := t.expr(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return Condition{}, err
	}
	return Condition{Clause: clause, Args: t.args}, nil
}

type translator struct {
	set    *EntitySet
	offset int
	args   []any
}

func (t *translator) bind(v any) string {
	t.args = append(t.args, v)
	return fmt.Sprintf("$%d", t.offset+len(t.args))
}

func (t *translator) expr(e *expr.Expr) (string, error) {
	if e == nil {
		return "", nil
	}
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_CallExpr:
		return t.call(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		// A bare boolean field is a predicate on its own.
		f, ok := t.set.Field(kind.IdentExpr.GetName())
		if !ok || f.Type != Bool {
			return "", fmt.Errorf("%q is not a boolean field", kind.IdentExpr.GetName())
		}
		return f.Column, nil
	default:
		return "", fmt.Errorf("unsupported expression %T", kind)
	}
}

func (t *translator) call(call *expr.Expr_Call) (string, error) {
	args := call.GetArgs()
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return t.junction("AND", args)
	case filtering.FunctionOr:
		return t.junction("OR", args)
	case filtering.FunctionNot:
		if len(args) != 1 {
			return "", fmt.Errorf("NOT takes one argument")
		}
		inner, err := t.expr(args[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filtering.FunctionEquals, filtering.FunctionNotEquals,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
		return t.compare(call.GetFunction(), args)
	case filtering.FunctionHas:
		return t.has(args)
	default:
		return "", fmt.Errorf("unsupported function %s", call.GetFunction())
	}
}

func (t *translator) junction(op string, args []*expr.Expr) (string, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		p, err := t.expr(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", nil
}

func (t *translator) field(e *expr.Expr) (Field, error) {
	ident := e.GetIdentExpr()
	if ident == nil {
		return Field{}, fmt.Errorf("left side of a comparison must be a field")
	}
	f, ok := t.set.Field(ident.GetName())
	if !ok || f.NoFilter {
		return Field{}, fmt.Errorf("unknown field %q", ident.GetName())
	}
	return f, nil
}

func (t *translator) compare(op string, args []*expr.Expr) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%s takes two arguments", op)
	}
	f, err := t.field(args[0])
	if err != nil {
		return "", err
	}
	value, err := t.value(f, args[1])
	if err != nil {
		return "", err
	}
	if value == nil {
		switch op {
		case filtering.FunctionEquals:
			return f.Column + " IS NULL", nil
		case filtering.FunctionNotEquals:
			return f.Column + " IS NOT NULL", nil
		default:
			return "", fmt.Errorf("null can only be compared with = or !=")
		}
	}
	if op == filtering.FunctionNotEquals {
		op = "<>"
	}
	return fmt.Sprintf("%s %s %s", f.Column, op, t.bind(value)), nil
}

// has renders the ":" operator as a case-insensitive substring match.
func (t *translator) has(args []*expr.Expr) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf(": takes two arguments")
	}
	f, err := t.field(args[0])
	if err != nil {
		return "", err
	}
	if f.Type != String {
		return "", fmt.Errorf("%q does not support \":\"", f.Name)
	}
	s := args[1].GetConstExpr().GetStringValue()
	return fmt.Sprintf("%s ILIKE %s", f.Column, t.bind("%"+escapeLike(s)+"%")), nil
}

func (t *translator) value(f Field, e *expr.Expr) (any, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_IdentExpr:
		switch kind.IdentExpr.GetName() {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("unexpected identifier %q", kind.IdentExpr.GetName())
	case *expr.Expr_CallExpr:
		if kind.CallExpr.GetFunction() == filtering.FunctionTimestamp && len(kind.CallExpr.GetArgs()) == 1 {
			return parseTime(kind.CallExpr.GetArgs()[0].GetConstExpr().GetStringValue())
		}
		return nil, fmt.Errorf("unsupported function %s in value", kind.CallExpr.GetFunction())
	case *expr.Expr_ConstExpr:
		return t.constant(f, kind.ConstExpr)
	default:
		return nil, fmt.Errorf("unsupported value %T", kind)
	}
}

func (t *translator) constant(f Field, c *expr.Constant) (any, error) {
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		s := kind.StringValue
		switch f.Type {
		case UUID:
			if s == "" {
				return nil, nil
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("%q: invalid uuid %q", f.Name, s)
			}
			return id, nil
		case Timestamp:
			return parseTime(s)
		}
		return s, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	case *expr.Constant_NullValue:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", kind)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchFilter builds a filter matching term as a substring of any of fields.
// An empty term yields an empty filter.
func SearchFilter(term string, fields ...string) string {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return ""
	}
	quoted := strconv.Quote(term)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ":" + quoted
	}
	return strings.Join(parts, " OR ")
}

// AndFilters joins non-empty filters with AND.
func AndFilters(filters ...string) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, "("+f+")")
		}
	}
	return strings.Join(parts, " AND ")
}
