package odata

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/repo"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// Query is a compiled request against one entity set.
type Query struct {
	Set     *EntitySet
	Columns []Field
	Where   []string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// Compile validates opts against the set and builds the SQL pieces. Option
// errors are returned as *serrors.ValidationError.
func Compile(ctx context.Context, set *EntitySet, opts *Options) (*Query, error) {
	q := &Query{Set: set, Limit: opts.Top, Offset: opts.Skip}
	if set.Scope != nil {
		where, args, err := set.Scope(ctx)
		if err != nil {
			return nil, err
		}
		q.Where, q.Args = where, args
	}

	verr := serrors.NewValidationError()
	cond, err := TranslateFilter(set, opts.Filter, len(q.Args))
	if err != nil {
		verr.Add("$filter", err.Error())
	} else if cond.Clause != "" {
		q.Where = append(q.Where, cond.Clause)
		q.Args = append(q.Args, cond.Args...)
	}

	if len(opts.Select) == 0 {
		q.Columns = set.Visible()
	} else {
		for _, name := range opts.Select {
			f, ok := set.Field(name)
			if !ok || f.Hidden {
				verr.Add("$select", fmt.Sprintf("unknown field %q", name))
				continue
			}
			q.Columns = append(q.Columns, f)
		}
	}

	order := make([]string, 0, len(opts.OrderBy.Fields))
	for _, of := range opts.OrderBy.Fields {
		f, ok := set.Field(of.Path)
		if !ok || f.NoSort {
			verr.Add("$orderby", fmt.Sprintf("cannot sort by %q", of.Path))
			continue
		}
		dir := "ASC"
		if of.Desc {
			dir = "DESC"
		}
		order = append(order, f.Column+" "+dir)
	}
	if len(order) > 0 {
		q.OrderBy = "ORDER BY " + strings.Join(order, ", ")
	} else if set.DefaultOrder != "" {
		q.OrderBy = "ORDER BY " + set.DefaultOrder
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Query) selectList() string {
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = c.Column + " AS " + quoteIdent(c.Name)
	}
	return strings.Join(cols, ", ")
}

func (q *Query) SelectSQL() string {
	return repo.Join(
		"SELECT "+q.selectList()+" FROM "+q.Set.From,
		repo.JoinWhere(q.Where...),
		q.OrderBy,
		repo.FormatLimitOffset(q.Limit, q.Offset),
	)
}

func (q *Query) CountSQL() string {
	return repo.Join("SELECT COUNT(*) FROM "+q.Set.From, repo.JoinWhere(q.Where...))
}

type Row map[string]any

type Result struct {
	Columns []Field
	Rows    []Row
	Count   *int64
}

// Execute runs q in the transaction or pool carried by ctx.
func Execute(ctx context.Context, q *Query, withCount bool) (*Result, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: q.Columns, Rows: []Row{}}
	if withCount {
		var n int64
		if err := tx.QueryRow(ctx, q.CountSQL(), q.Args...).Scan(&n); err != nil {
			return nil, errors.Wrapf(err, "count %s", q.Set.Name)
		}
		res.Count = &n
	}
	if q.Limit == 0 {
		return res, nil
	}
	rows, err := tx.Query(ctx, q.SelectSQL(), q.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", q.Set.Name)
	}
	defer rows.Close()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", q.Set.Name)
		}
		row := make(Row, len(q.Columns))
		for i, c := range q.Columns {
			if i < len(values) {
				row[c.Name] = normalize(values[i])
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s", q.Set.Name)
	}
	return res, nil
}

// normalize converts driver values into JSON-friendly ones.
func normalize(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val)
	default:
		return v
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Run compiles opts against set and executes the query.
func Run(ctx context.Context, set *EntitySet, opts *Options) (*Result, error) {
	q, err := Compile(ctx, set, opts)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, q, opts.Count)
}
