package shortcuts

import (
	"context"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// ConflictTarget names what an upsert's ON CONFLICT clause targets: one or
// more columns, or a named unique constraint.
type ConflictTarget struct {
	columns    []string
	constraint string
}

// Conflict targets the given column list.
func Conflict(cols ...string) ConflictTarget { return ConflictTarget{columns: cols} }

// OnConstraint targets a named unique constraint.
func OnConstraint(name string) ConflictTarget { return ConflictTarget{constraint: name} }

// UpsertOptions shapes the conflict action and the rows an upsert returns.
type UpsertOptions struct {
	// UpdateColumns restricts the SET list of the conflict action. Nil means
	// the default: every insert column not named by the conflict target, or
	// every insert column when the target is a constraint. An explicitly
	// empty list means DO NOTHING.
	UpdateColumns []string

	// UpdateValues overrides the SET expression for individual columns.
	// Values may be literals or fragments; Self inside a fragment resolves
	// to the column being set.
	UpdateValues Values

	// DoNothing switches the conflict action to DO NOTHING.
	DoNothing bool

	// PreserveNonNull names columns whose existing value survives when the
	// incoming value is NULL. PreserveAllNonNull applies this to every
	// updated column.
	PreserveNonNull    []string
	PreserveAllNonNull bool

	// SuppressAction drops the "$action" discriminator from returned rows.
	SuppressAction bool

	// Returning restricts the returned columns; empty means the whole row.
	Returning []string

	// Extras adds computed expressions to each returned row.
	Extras map[string]*fragment.Fragment
}

// UpsertStatement is a built INSERT ... ON CONFLICT ... RETURNING statement.
type UpsertStatement struct {
	table string
	frag  *fragment.Fragment
	noop  bool
	err   error
}

// Upsert builds an INSERT ... ON CONFLICT statement over the given rows.
// Unless suppressed, each returned row carries a "$action" key reporting
// 'INSERT' or 'UPDATE' (derived from xmax). An empty row slice builds the
// same no-op statement as Insert.
func Upsert(table string, rows []Values, target ConflictTarget, opts *UpsertOptions) *UpsertStatement {
	if opts == nil {
		opts = &UpsertOptions{}
	}
	if len(rows) == 0 {
		return &UpsertStatement{
			table: table,
			noop:  true,
			frag:  fragment.SQL("SELECT null WHERE false").MarkNoOp(),
		}
	}
	if len(target.columns) == 0 && target.constraint == "" {
		return &UpsertStatement{
			table: table,
			err:   fragment.Buildf("upsert", "conflict target must name at least one column or a constraint"),
		}
	}

	cols := unionKeys(rows)
	updateCols := opts.UpdateColumns
	if updateCols == nil {
		updateCols = defaultUpdateColumns(cols, target)
	}
	doNothing := opts.DoNothing || len(updateCols) == 0

	items := make([]interface{}, 0, len(rows)*3+16)
	items = append(items, "INSERT INTO ", fragment.Ident(table), " ", fragment.ColumnNames(cols), " VALUES ")
	for i, row := range rows {
		if i > 0 {
			items = append(items, ", ")
		}
		items = append(items, "(", rowValues(cols, row), ")")
	}

	if target.constraint != "" {
		items = append(items, " ON CONFLICT ON CONSTRAINT ", fragment.Ident(target.constraint))
	} else {
		items = append(items, " ON CONFLICT ", fragment.ColumnNames(target.columns))
	}

	if doNothing {
		items = append(items, " DO NOTHING")
	} else {
		items = append(items, " DO UPDATE SET ", conflictSet(table, updateCols, opts))
	}

	items = append(items, " RETURNING ", resultProjection(table, opts.Returning, opts.Extras))
	if !opts.SuppressAction {
		items = append(items, " || jsonb_build_object('$action', CASE xmax WHEN 0 THEN 'INSERT' ELSE 'UPDATE' END)")
	}
	items = append(items, " AS result")

	return &UpsertStatement{table: table, frag: fragment.SQL(items...)}
}

// defaultUpdateColumns is the insert column union minus the conflict-target
// columns, or the whole union when the target is a constraint.
func defaultUpdateColumns(cols []string, target ConflictTarget) []string {
	if target.constraint != "" {
		return cols
	}
	targeted := make(map[string]struct{}, len(target.columns))
	for _, c := range target.columns {
		targeted[c] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := targeted[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// conflictSet builds the SET clause of the conflict action: simple
// assignment for a single column, the ROW form for several.
func conflictSet(table string, updateCols []string, opts *UpsertOptions) *fragment.Fragment {
	if len(updateCols) == 1 {
		c := updateCols[0]
		return fragment.SQL(fragment.Ident(c), " = ", setExpr(table, c, opts))
	}
	exprs := make([]*fragment.Fragment, len(updateCols))
	for i, c := range updateCols {
		exprs[i] = setExpr(table, c, opts)
	}
	return fragment.SQL(fragment.ColumnNames(updateCols), " = ROW(", fragment.Join(exprs, ", "), ")")
}

// setExpr picks the SET expression for one column: an explicit override,
// the NULL-preserving CASE form, or plain EXCLUDED.
func setExpr(table, col string, opts *UpsertOptions) *fragment.Fragment {
	if v, ok := opts.UpdateValues[col]; ok {
		return assignExpr(col, v)
	}
	if opts.PreserveAllNonNull || containsColumn(opts.PreserveNonNull, col) {
		return fragment.SQL(
			"CASE WHEN EXCLUDED.", fragment.Ident(col),
			" IS NULL THEN ", fragment.Ident(table), ".", fragment.Ident(col),
			" ELSE EXCLUDED.", fragment.Ident(col), " END",
		)
	}
	return fragment.SQL("EXCLUDED.", fragment.Ident(col))
}

func containsColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// Fragment returns the built expression tree.
func (s *UpsertStatement) Fragment() *fragment.Fragment { return s.frag }

// Err reports any error captured while building.
func (s *UpsertStatement) Err() error { return s.err }

// NoOp reports whether the statement was built from zero rows.
func (s *UpsertStatement) NoOp() bool { return s.noop }

// Compile renders the statement.
func (s *UpsertStatement) Compile() (fragment.Compiled, error) {
	if s.err != nil {
		return fragment.Compiled{}, s.err
	}
	return s.frag.Compile()
}

// Transform maps RETURNING rows into the upserted row shapes.
func (s *UpsertStatement) Transform(rows []types.Row) (interface{}, error) {
	return returnedRows(rows)
}

// Run executes the statement and returns one row per affected row. Rows
// skipped by DO NOTHING are absent. A no-op upsert returns an empty slice
// without invoking the executor.
func (s *UpsertStatement) Run(ctx context.Context, q Queryable) ([]types.Row, error) {
	if s.noop {
		return []types.Row{}, nil
	}
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return returnedRows(rows)
}
