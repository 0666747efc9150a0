// Package shortcuts provides the high-level statement builders: insert,
// upsert, update, delete, truncate, the select family, and aggregates.
// Every shortcut follows the same three steps: build (pure), execute
// (through a Queryable), and transform (pure, mapping the raw rows into
// the caller-visible shape). Statements emit JSON projections of the form
// to_jsonb("t".*) AS result so the transform step is uniform across
// shortcuts and across nested lateral subqueries.
package shortcuts

import (
	"context"
	"sort"

	"github.com/pgweave/pgweave/query/conditions"
	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// Values holds one row's column values for insert, upsert, and update.
// Entries may be plain values, fragment.Parameter, *fragment.Fragment
// expressions, or the fragment.Default sentinel.
type Values map[string]interface{}

// Queryable is the executor capability consumed by every run step: it
// accepts statement text with $1..$n placeholders and the bound values in
// matching order, and returns the raw rows.
type Queryable interface {
	Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error)
}

// Runnable is the explicit transform-step interface implemented by every
// statement type. Fragment exposes the built expression tree, Transform
// maps executor rows into the caller-visible result, and Err reports any
// error captured while the statement was built.
type Runnable interface {
	Fragment() *fragment.Fragment
	Transform(rows []types.Row) (interface{}, error)
	Err() error
}

// run compiles a statement, executes it, and returns the raw rows along
// with the compiled form for error reporting. Build errors surface here
// before any I/O is attempted.
func run(ctx context.Context, q Queryable, r Runnable) ([]types.Row, fragment.Compiled, error) {
	if err := r.Err(); err != nil {
		return nil, fragment.Compiled{}, err
	}
	compiled, err := r.Fragment().Compile()
	if err != nil {
		return nil, fragment.Compiled{}, err
	}
	rows, err := q.Query(ctx, compiled.Text, compiled.Values)
	if err != nil {
		return nil, compiled, &QueryError{Query: compiled, Err: err}
	}
	return rows, compiled, nil
}

// whereClause renders a filter as a leading " WHERE ..." fragment.
// fragment.All yields nil: the clause is omitted, not rendered as TRUE.
func whereClause(where interface{}) (*fragment.Fragment, error) {
	if s, ok := where.(fragment.Sentinel); ok && s == fragment.All {
		return nil, nil
	}
	f, err := conditions.Build(where)
	if err != nil {
		return nil, err
	}
	return fragment.SQL(" WHERE ", f), nil
}

// resultProjection builds the jsonb projection used by RETURNING clauses
// and select row shapes: the whole row, or an explicit column subset, with
// optional computed extras concatenated in.
func resultProjection(table string, returning []string, extras map[string]*fragment.Fragment) *fragment.Fragment {
	var base *fragment.Fragment
	if len(returning) == 0 {
		base = fragment.SQL("to_jsonb(", fragment.Ident(table), ".*)")
	} else {
		base = columnsObject(table, returning)
	}
	if len(extras) > 0 {
		base = fragment.SQL(base, " || ", extrasObject(extras))
	}
	return base
}

// columnsObject emits jsonb_build_object($n::text, "t"."c", ...) with the
// column names bound as parameters for the JSON keys.
func columnsObject(table string, cols []string) *fragment.Fragment {
	items := make([]interface{}, 0, len(cols)*6+2)
	items = append(items, "jsonb_build_object(")
	for i, c := range cols {
		if i > 0 {
			items = append(items, ", ")
		}
		items = append(items, fragment.CastParam(c, "text"), ", ", fragment.Ident(table), ".", fragment.Ident(c))
	}
	items = append(items, ")")
	return fragment.SQL(items...)
}

// extrasObject emits jsonb_build_object for computed extra expressions,
// keys in lexicographic order.
func extrasObject(extras map[string]*fragment.Fragment) *fragment.Fragment {
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]interface{}, 0, len(keys)*4+2)
	items = append(items, "jsonb_build_object(")
	for i, k := range keys {
		if i > 0 {
			items = append(items, ", ")
		}
		items = append(items, fragment.CastParam(k, "text"), ", ", extras[k])
	}
	items = append(items, ")")
	return fragment.SQL(items...)
}

// returnedRows decodes a RETURNING ... AS result row set into Rows.
func returnedRows(rows []types.Row) ([]types.Row, error) {
	out := make([]types.Row, 0, len(rows))
	for _, r := range rows {
		decoded, err := types.DecodeJSON(r["result"])
		if err != nil {
			return nil, err
		}
		row, err := types.AsRow(decoded)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
