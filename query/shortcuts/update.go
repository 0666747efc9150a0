package shortcuts

import (
	"context"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// UpdateOptions shapes the rows an update returns.
type UpdateOptions struct {
	// Returning restricts the returned columns; empty means the whole row.
	Returning []string

	// Extras adds computed expressions to each returned row.
	Extras map[string]*fragment.Fragment
}

// UpdateStatement is a built UPDATE ... RETURNING statement.
type UpdateStatement struct {
	table string
	frag  *fragment.Fragment
	err   error
}

// Update builds an UPDATE statement. A single assignment uses the plain
// form `"c" = $1`; several use `("a", "b") = ROW($1, $2)`. Assignment keys
// compile in lexicographic order. The where argument is a conditions.Where,
// a *fragment.Fragment, or fragment.All.
func Update(table string, values Values, where interface{}, opts *UpdateOptions) *UpdateStatement {
	if opts == nil {
		opts = &UpdateOptions{}
	}
	if len(values) == 0 {
		return &UpdateStatement{
			table: table,
			err:   fragment.Buildf("update", "at least one assignment required"),
		}
	}

	wf, err := whereClause(where)
	if err != nil {
		return &UpdateStatement{table: table, err: err}
	}

	items := []interface{}{"UPDATE ", fragment.Ident(table), " SET ", assignments(values)}
	if wf != nil {
		items = append(items, wf)
	}
	items = append(items, " RETURNING ", resultProjection(table, opts.Returning, opts.Extras), " AS result")
	return &UpdateStatement{table: table, frag: fragment.SQL(items...)}
}

// assignments builds the SET clause from sorted assignment keys.
func assignments(values Values) *fragment.Fragment {
	cols := fragment.SortedKeys(values)
	if len(cols) == 1 {
		c := cols[0]
		return fragment.SQL(fragment.Ident(c), " = ", assignExpr(c, values[c]))
	}
	exprs := make([]*fragment.Fragment, len(cols))
	for i, c := range cols {
		exprs[i] = assignExpr(c, values[c])
	}
	return fragment.SQL(fragment.ColumnNames(cols), " = ROW(", fragment.Join(exprs, ", "), ")")
}

// assignExpr wraps one assignment value. Fragments compile with the column
// in scope so Self refers to the column being assigned; plain values become
// bound parameters.
func assignExpr(col string, v interface{}) *fragment.Fragment {
	switch expr := v.(type) {
	case *fragment.Fragment:
		return fragment.WithColumnScope(col, expr)
	case fragment.Parameter, fragment.Raw, fragment.Sentinel, fragment.Ident:
		return fragment.SQL(expr)
	default:
		return fragment.SQL(fragment.Param(v))
	}
}

// Fragment returns the built expression tree.
func (s *UpdateStatement) Fragment() *fragment.Fragment { return s.frag }

// Err reports any error captured while building.
func (s *UpdateStatement) Err() error { return s.err }

// Compile renders the statement.
func (s *UpdateStatement) Compile() (fragment.Compiled, error) {
	if s.err != nil {
		return fragment.Compiled{}, s.err
	}
	return s.frag.Compile()
}

// Transform maps RETURNING rows into the updated row shapes.
func (s *UpdateStatement) Transform(rows []types.Row) (interface{}, error) {
	return returnedRows(rows)
}

// Run executes the statement and returns one row per updated row.
func (s *UpdateStatement) Run(ctx context.Context, q Queryable) ([]types.Row, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return returnedRows(rows)
}
