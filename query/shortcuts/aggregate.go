package shortcuts

import (
	"context"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// CountOptions shapes a count statement.
type CountOptions struct {
	// Column counts non-null values of one column instead of whole rows.
	Column string

	// Distinct counts each distinct column value once; requires Column.
	Distinct bool

	// Alias renames the table within the statement.
	Alias string
}

// AggregateOptions shapes the sum, avg, min and max statements.
type AggregateOptions struct {
	// Distinct aggregates each distinct value once.
	Distinct bool

	// Alias renames the table within the statement.
	Alias string
}

// aggregateCore carries what the aggregate statements share.
type aggregateCore struct {
	table string
	frag  *fragment.Fragment
	err   error
}

// Fragment returns the built expression tree.
func (c *aggregateCore) Fragment() *fragment.Fragment { return c.frag }

// Err reports any error captured while building.
func (c *aggregateCore) Err() error { return c.err }

// Compile renders the statement.
func (c *aggregateCore) Compile() (fragment.Compiled, error) {
	if c.err != nil {
		return fragment.Compiled{}, c.err
	}
	return c.frag.Compile()
}

func buildAggregate(table string, where interface{}, alias string, expr *fragment.Fragment) aggregateCore {
	core := aggregateCore{table: table}
	wf, err := whereClause(where)
	if err != nil {
		core.err = err
		return core
	}
	items := []interface{}{"SELECT ", expr, " AS result FROM ", fragment.Ident(table)}
	if alias != table {
		items = append(items, " AS ", fragment.Ident(alias))
	}
	if wf != nil {
		items = append(items, wf)
	}
	core.frag = fragment.SQL(items...)
	return core
}

// columnAggregate builds the shared sum/avg/min/max core. The aggregate
// is wrapped in to_jsonb so the result decodes the same way on every
// driver; lib/pq would otherwise hand text columns back as raw bytes.
func columnAggregate(name, table, column string, where interface{}, opts *AggregateOptions) aggregateCore {
	if opts == nil {
		opts = &AggregateOptions{}
	}
	if column == "" {
		return aggregateCore{table: table, err: fragment.Buildf(name, "column required")}
	}
	alias := opts.Alias
	if alias == "" {
		alias = table
	}
	items := make([]interface{}, 0, 6)
	items = append(items, "to_jsonb("+name+"(")
	if opts.Distinct {
		items = append(items, "DISTINCT ")
	}
	items = append(items, fragment.Ident(alias), ".", fragment.Ident(column), "))")
	return buildAggregate(table, where, alias, fragment.SQL(items...))
}

// CountStatement is a built SELECT count(...) statement.
type CountStatement struct {
	aggregateCore
}

// Count builds a row count over the matching rows.
func Count(table string, where interface{}, opts *CountOptions) *CountStatement {
	if opts == nil {
		opts = &CountOptions{}
	}
	if opts.Distinct && opts.Column == "" {
		return &CountStatement{aggregateCore{table: table, err: fragment.Buildf("count", "Distinct requires Column")}}
	}
	alias := opts.Alias
	if alias == "" {
		alias = table
	}
	var expr *fragment.Fragment
	switch {
	case opts.Column == "":
		expr = fragment.SQL("count(*)")
	case opts.Distinct:
		expr = fragment.SQL("count(DISTINCT ", fragment.Ident(alias), ".", fragment.Ident(opts.Column), ")")
	default:
		expr = fragment.SQL("count(", fragment.Ident(alias), ".", fragment.Ident(opts.Column), ")")
	}
	return &CountStatement{buildAggregate(table, where, alias, expr)}
}

// Transform coerces the count into an int64.
func (s *CountStatement) Transform(rows []types.Row) (interface{}, error) {
	if len(rows) == 0 || rows[0]["result"] == nil {
		return int64(0), nil
	}
	return types.Int64(rows[0]["result"])
}

// Run executes the statement and returns the count.
func (s *CountStatement) Run(ctx context.Context, q Queryable) (int64, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return 0, err
	}
	v, err := s.Transform(rows)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// NumericStatement is a built sum or avg statement.
type NumericStatement struct {
	aggregateCore
}

// Sum builds a sum over one column of the matching rows.
func Sum(table, column string, where interface{}, opts *AggregateOptions) *NumericStatement {
	return &NumericStatement{columnAggregate("sum", table, column, where, opts)}
}

// Avg builds an average over one column of the matching rows.
func Avg(table, column string, where interface{}, opts *AggregateOptions) *NumericStatement {
	return &NumericStatement{columnAggregate("avg", table, column, where, opts)}
}

// Transform coerces the aggregate into a float64. SQL NULL, the aggregate
// of zero rows, coerces to 0.
func (s *NumericStatement) Transform(rows []types.Row) (interface{}, error) {
	if len(rows) == 0 || rows[0]["result"] == nil {
		return float64(0), nil
	}
	return types.Float64(rows[0]["result"])
}

// Run executes the statement and returns the aggregate value.
func (s *NumericStatement) Run(ctx context.Context, q Queryable) (float64, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return 0, err
	}
	v, err := s.Transform(rows)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// ScalarStatement is a built min or max statement.
type ScalarStatement struct {
	aggregateCore
}

// Min builds a minimum over one column of the matching rows.
func Min(table, column string, where interface{}, opts *AggregateOptions) *ScalarStatement {
	return &ScalarStatement{columnAggregate("min", table, column, where, opts)}
}

// Max builds a maximum over one column of the matching rows.
func Max(table, column string, where interface{}, opts *AggregateOptions) *ScalarStatement {
	return &ScalarStatement{columnAggregate("max", table, column, where, opts)}
}

// Transform yields the extreme value in the column's own shape; zero
// matching rows yield nil.
func (s *ScalarStatement) Transform(rows []types.Row) (interface{}, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	return types.DecodeJSON(rows[0]["result"])
}

// Run executes the statement and returns the extreme value, nil when no
// rows match.
func (s *ScalarStatement) Run(ctx context.Context, q Queryable) (interface{}, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return s.Transform(rows)
}
