package shortcuts

import (
	"context"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// DeleteOptions shapes the rows a delete returns.
type DeleteOptions struct {
	// Returning restricts the returned columns; empty means the whole row.
	Returning []string

	// Extras adds computed expressions to each returned row.
	Extras map[string]*fragment.Fragment
}

// DeleteStatement is a built DELETE ... RETURNING statement.
type DeleteStatement struct {
	table string
	frag  *fragment.Fragment
	err   error
}

// Delete builds a DELETE statement. The where argument is a
// conditions.Where, a *fragment.Fragment, or fragment.All.
func Delete(table string, where interface{}, opts *DeleteOptions) *DeleteStatement {
	if opts == nil {
		opts = &DeleteOptions{}
	}

	wf, err := whereClause(where)
	if err != nil {
		return &DeleteStatement{table: table, err: err}
	}

	items := []interface{}{"DELETE FROM ", fragment.Ident(table)}
	if wf != nil {
		items = append(items, wf)
	}
	items = append(items, " RETURNING ", resultProjection(table, opts.Returning, opts.Extras), " AS result")
	return &DeleteStatement{table: table, frag: fragment.SQL(items...)}
}

// Fragment returns the built expression tree.
func (s *DeleteStatement) Fragment() *fragment.Fragment { return s.frag }

// Err reports any error captured while building.
func (s *DeleteStatement) Err() error { return s.err }

// Compile renders the statement.
func (s *DeleteStatement) Compile() (fragment.Compiled, error) {
	if s.err != nil {
		return fragment.Compiled{}, s.err
	}
	return s.frag.Compile()
}

// Transform maps RETURNING rows into the deleted row shapes.
func (s *DeleteStatement) Transform(rows []types.Row) (interface{}, error) {
	return returnedRows(rows)
}

// Run executes the statement and returns one row per deleted row.
func (s *DeleteStatement) Run(ctx context.Context, q Queryable) ([]types.Row, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return returnedRows(rows)
}
