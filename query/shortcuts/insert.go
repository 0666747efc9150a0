package shortcuts

import (
	"context"
	"sort"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// InsertOptions shapes the rows an insert returns.
type InsertOptions struct {
	// Returning restricts the returned columns; empty means the whole row.
	Returning []string

	// Extras adds computed expressions to each returned row.
	Extras map[string]*fragment.Fragment
}

// InsertStatement is a built INSERT ... RETURNING statement.
type InsertStatement struct {
	table string
	frag  *fragment.Fragment
	noop  bool
	err   error
}

// Insert builds a multi-row INSERT. The column set is the sorted union of
// all row keys; rows missing a key insert DEFAULT for it. An empty row
// slice builds a no-op statement whose Run returns an empty result without
// touching the executor.
func Insert(table string, rows []Values, opts *InsertOptions) *InsertStatement {
	if opts == nil {
		opts = &InsertOptions{}
	}
	if len(rows) == 0 {
		return &InsertStatement{
			table: table,
			noop:  true,
			frag:  fragment.SQL("SELECT null WHERE false").MarkNoOp(),
		}
	}

	cols := unionKeys(rows)
	items := make([]interface{}, 0, len(rows)*3+6)
	items = append(items, "INSERT INTO ", fragment.Ident(table), " ", fragment.ColumnNames(cols), " VALUES ")
	for i, row := range rows {
		if i > 0 {
			items = append(items, ", ")
		}
		items = append(items, "(", rowValues(cols, row), ")")
	}
	items = append(items, " RETURNING ", resultProjection(table, opts.Returning, opts.Extras), " AS result")

	return &InsertStatement{table: table, frag: fragment.SQL(items...)}
}

// unionKeys returns the sorted union of all row keys.
func unionKeys(rows []Values) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// rowValues lines a row's values up with the column union, filling gaps
// with DEFAULT.
func rowValues(cols []string, row Values) fragment.ColumnValues {
	vals := make(fragment.ColumnValues, len(cols))
	for i, c := range cols {
		if v, ok := row[c]; ok {
			vals[i] = v
		} else {
			vals[i] = fragment.Default
		}
	}
	return vals
}

// Fragment returns the built expression tree.
func (s *InsertStatement) Fragment() *fragment.Fragment { return s.frag }

// Err reports any error captured while building.
func (s *InsertStatement) Err() error { return s.err }

// NoOp reports whether the statement was built from zero rows and may be
// skipped entirely.
func (s *InsertStatement) NoOp() bool { return s.noop }

// Compile renders the statement.
func (s *InsertStatement) Compile() (fragment.Compiled, error) {
	if s.err != nil {
		return fragment.Compiled{}, s.err
	}
	return s.frag.Compile()
}

// Transform maps RETURNING rows into the inserted row shapes.
func (s *InsertStatement) Transform(rows []types.Row) (interface{}, error) {
	return returnedRows(rows)
}

// Run executes the statement and returns one row per inserted row. A no-op
// insert returns an empty slice without invoking the executor.
func (s *InsertStatement) Run(ctx context.Context, q Queryable) ([]types.Row, error) {
	if s.noop {
		return []types.Row{}, nil
	}
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return returnedRows(rows)
}
