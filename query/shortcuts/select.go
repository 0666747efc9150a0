package shortcuts

import (
	"context"
	"fmt"

	"github.com/pgweave/pgweave/query/conditions"
	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// OrderSpec is one ORDER BY key.
type OrderSpec struct {
	// By is a column name or a *fragment.Fragment expression.
	By interface{}

	// Direction is "ASC" or "DESC".
	Direction string

	// Nulls optionally places NULLs "FIRST" or "LAST".
	Nulls string
}

func (o OrderSpec) validate() error {
	switch o.By.(type) {
	case string, fragment.Ident, *fragment.Fragment:
	default:
		return fragment.Buildf("order", "By must be a column name or fragment, got %T", o.By)
	}
	if o.Direction != "ASC" && o.Direction != "DESC" {
		return fragment.Buildf("order", "direction must be ASC or DESC, got %q", o.Direction)
	}
	if o.Nulls != "" && o.Nulls != "FIRST" && o.Nulls != "LAST" {
		return fragment.Buildf("order", "nulls placement must be FIRST or LAST, got %q", o.Nulls)
	}
	return nil
}

func (o OrderSpec) fragment() *fragment.Fragment {
	items := make([]interface{}, 0, 3)
	switch by := o.By.(type) {
	case string:
		items = append(items, fragment.Ident(by))
	case fragment.Ident:
		items = append(items, by)
	case *fragment.Fragment:
		items = append(items, by)
	}
	items = append(items, " "+o.Direction)
	if o.Nulls != "" {
		items = append(items, " NULLS "+o.Nulls)
	}
	return fragment.SQL(items...)
}

// LockStrength names a row-level lock mode.
type LockStrength int

const (
	LockUpdate LockStrength = iota
	LockNoKeyUpdate
	LockShare
	LockKeyShare
)

// LockWait names the waiting policy for a row-level lock.
type LockWait int

const (
	// LockWaitBlock waits for conflicting locks, Postgres's default.
	LockWaitBlock LockWait = iota
	LockNoWait
	LockSkipLocked
)

// LockClause is a FOR UPDATE / SHARE row-locking clause.
type LockClause struct {
	Strength LockStrength
	Of       []string
	Wait     LockWait
}

func (l *LockClause) clause() (*fragment.Fragment, error) {
	var kw string
	switch l.Strength {
	case LockUpdate:
		kw = " FOR UPDATE"
	case LockNoKeyUpdate:
		kw = " FOR NO KEY UPDATE"
	case LockShare:
		kw = " FOR SHARE"
	case LockKeyShare:
		kw = " FOR KEY SHARE"
	default:
		return nil, fragment.Buildf("lock", "unknown lock strength %d", l.Strength)
	}
	items := []interface{}{kw}
	if len(l.Of) > 0 {
		items = append(items, " OF ", identList(l.Of))
	}
	switch l.Wait {
	case LockWaitBlock:
	case LockNoWait:
		items = append(items, " NOWAIT")
	case LockSkipLocked:
		items = append(items, " SKIP LOCKED")
	default:
		return nil, fragment.Buildf("lock", "unknown lock wait policy %d", l.Wait)
	}
	return fragment.SQL(items...), nil
}

// SelectOptions shapes a select statement.
type SelectOptions struct {
	// Columns restricts the selected columns; empty means the whole row.
	Columns []string

	// Extras adds computed expressions to each returned row.
	Extras map[string]*fragment.Fragment

	// Distinct deduplicates whole rows; DistinctOn keeps the first row per
	// value of the named columns. The two are mutually exclusive.
	Distinct   bool
	DistinctOn []string

	// Order lists ORDER BY keys.
	Order []OrderSpec

	// Limit and Offset bound the result window. WithTies turns the limit
	// into FETCH FIRST ... ROWS WITH TIES and requires both Limit and Order.
	Limit    *int
	Offset   *int
	WithTies bool

	// GroupBy and Having aggregate rows before projection.
	GroupBy []string
	Having  interface{}

	// Lock appends a row-locking clause.
	Lock *LockClause

	// Alias renames the table within the statement, needed when a lateral
	// subquery targets the same table.
	Alias string

	// Lateral attaches correlated subqueries whose results are embedded in
	// (or replace) each returned row.
	Lateral *Lateral
}

type selectMode int

const (
	modeMany selectMode = iota
	modeOne
	modeExactlyOne
)

// selectCore carries what the select variants share: the built fragment,
// the table identity and any lateral to replay during transforms.
type selectCore struct {
	table   string
	alias   string
	lateral *Lateral
	frag    *fragment.Fragment
	err     error
}

func buildSelect(table string, where interface{}, opts *SelectOptions, mode selectMode) selectCore {
	if opts == nil {
		opts = &SelectOptions{}
	}
	core := selectCore{table: table, alias: table, lateral: opts.Lateral}
	if opts.Alias != "" {
		core.alias = opts.Alias
	}

	if opts.Distinct && len(opts.DistinctOn) > 0 {
		core.err = fragment.Buildf("select", "Distinct and DistinctOn are mutually exclusive")
		return core
	}
	if opts.WithTies {
		if mode != modeMany {
			core.err = fragment.Buildf("select", "WithTies applies only to multi-row selects")
			return core
		}
		if opts.Limit == nil || len(opts.Order) == 0 {
			core.err = fragment.Buildf("select", "WithTies requires Limit and Order")
			return core
		}
	}
	for _, o := range opts.Order {
		if err := o.validate(); err != nil {
			core.err = err
			return core
		}
	}
	if opts.Lateral != nil {
		if err := opts.Lateral.validate(); err != nil {
			core.err = err
			return core
		}
	}

	wf, err := whereClause(where)
	if err != nil {
		core.err = err
		return core
	}

	items := make([]interface{}, 0, 32)
	items = append(items, "SELECT ")
	if opts.Distinct {
		items = append(items, "DISTINCT ")
	}
	if len(opts.DistinctOn) > 0 {
		items = append(items, "DISTINCT ON ", fragment.ColumnNames(opts.DistinctOn), " ")
	}
	items = append(items, rowProjection(core.alias, opts), " AS result FROM ", fragment.Ident(table))
	if core.alias != table {
		items = append(items, " AS ", fragment.Ident(core.alias))
	}
	if opts.Lateral != nil {
		items = append(items, opts.Lateral.joins(core.alias))
	}
	if wf != nil {
		items = append(items, wf)
	}
	if len(opts.GroupBy) > 0 {
		items = append(items, " GROUP BY ", identList(opts.GroupBy))
	}
	if opts.Having != nil {
		havingFrag, err := conditions.Build(opts.Having)
		if err != nil {
			core.err = err
			return core
		}
		items = append(items, " HAVING ", havingFrag)
	}
	if len(opts.Order) > 0 {
		items = append(items, " ORDER BY ", orderClause(opts.Order))
	}
	// OFFSET precedes the limit so the FETCH FIRST form stays valid.
	if opts.Offset != nil {
		items = append(items, " OFFSET ", fragment.Param(*opts.Offset))
		if opts.WithTies {
			items = append(items, " ROWS")
		}
	}
	switch {
	case mode != modeMany:
		items = append(items, " LIMIT ", fragment.Param(1))
	case opts.Limit != nil && opts.WithTies:
		items = append(items, " FETCH FIRST ", fragment.Param(*opts.Limit), " ROWS WITH TIES")
	case opts.Limit != nil:
		items = append(items, " LIMIT ", fragment.Param(*opts.Limit))
	}
	if opts.Lock != nil {
		lockFrag, err := opts.Lock.clause()
		if err != nil {
			core.err = err
			return core
		}
		items = append(items, lockFrag)
	}

	inner := fragment.SQL(items...)
	if mode == modeMany {
		core.frag = fragment.SQL(
			"SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (",
			inner, ") AS ", fragment.Ident("sq_"+core.alias),
		)
	} else {
		core.frag = inner
	}
	return core
}

// rowProjection builds the JSON expression selected for each row.
func rowProjection(alias string, opts *SelectOptions) *fragment.Fragment {
	if opts.Lateral != nil && opts.Lateral.Passthrough != nil {
		return fragment.SQL(fragment.Ident(passthroughAlias), ".result")
	}
	proj := resultProjection(alias, opts.Columns, opts.Extras)
	if opts.Lateral != nil {
		proj = fragment.SQL(proj, opts.Lateral.resultKeys())
	}
	return proj
}

// identList renders a comma-joined quoted identifier list without parens.
func identList(names []string) *fragment.Fragment {
	frags := make([]*fragment.Fragment, len(names))
	for i, n := range names {
		frags[i] = fragment.SQL(fragment.Ident(n))
	}
	return fragment.Join(frags, ", ")
}

func orderClause(specs []OrderSpec) *fragment.Fragment {
	frags := make([]*fragment.Fragment, len(specs))
	for i, o := range specs {
		frags[i] = o.fragment()
	}
	return fragment.Join(frags, ", ")
}

// Fragment returns the built expression tree.
func (c *selectCore) Fragment() *fragment.Fragment { return c.frag }

// Err reports any error captured while building.
func (c *selectCore) Err() error { return c.err }

// Compile renders the statement.
func (c *selectCore) Compile() (fragment.Compiled, error) {
	if c.err != nil {
		return fragment.Compiled{}, c.err
	}
	return c.frag.Compile()
}

// manyPayload unwraps the single aggregated result row into its decoded
// JSON array.
func (c *selectCore) manyPayload(rows []types.Row) ([]interface{}, error) {
	if len(rows) == 0 {
		return []interface{}{}, nil
	}
	decoded, err := types.DecodeJSON(rows[0]["result"])
	if err != nil {
		return nil, err
	}
	if decoded == nil {
		return []interface{}{}, nil
	}
	list, ok := decoded.([]interface{})
	if !ok {
		return nil, fmt.Errorf("pgweave: select transform: expected a json array, got %T", decoded)
	}
	return list, nil
}

// oneTransform decodes a single-row result, replaying lateral transforms.
// ok reports whether any row was observed.
func (c *selectCore) oneTransform(rows []types.Row) (interface{}, bool, error) {
	if len(rows) == 0 {
		return nil, false, nil
	}
	payload, err := types.DecodeJSON(rows[0]["result"])
	if err != nil {
		return nil, false, err
	}
	if c.lateral != nil && c.lateral.Passthrough != nil {
		v, err := transformPayload(c.lateral.Passthrough, payload)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	row, err := types.AsRow(payload)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, true, nil
	}
	if c.lateral != nil {
		if err := c.lateral.replay(row); err != nil {
			return nil, false, err
		}
	}
	return row, true, nil
}

// SelectStatement selects every matching row.
type SelectStatement struct {
	selectCore
}

// Select builds a query returning every row matching where, aggregated into
// a single JSON payload inside the database. The where argument is a
// conditions.Where, a *fragment.Fragment, or fragment.All.
func Select(table string, where interface{}, opts *SelectOptions) *SelectStatement {
	return &SelectStatement{buildSelect(table, where, opts, modeMany)}
}

// Transform decodes the aggregated JSON payload and replays lateral
// transforms per row.
func (s *SelectStatement) Transform(rows []types.Row) (interface{}, error) {
	list, err := s.manyPayload(rows)
	if err != nil {
		return nil, err
	}
	if s.lateral != nil && s.lateral.Passthrough != nil {
		out := make([]interface{}, len(list))
		for i, p := range list {
			v, err := transformPayload(s.lateral.Passthrough, p)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	out := make([]types.Row, 0, len(list))
	for _, p := range list {
		row, err := types.AsRow(p)
		if err != nil {
			return nil, err
		}
		if s.lateral != nil {
			if err := s.lateral.replay(row); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// Run executes the statement and returns the matching rows. A passthrough
// lateral producing non-object values needs RunRaw instead.
func (s *SelectStatement) Run(ctx context.Context, q Queryable) ([]types.Row, error) {
	v, err := s.RunRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	switch out := v.(type) {
	case []types.Row:
		return out, nil
	case []interface{}:
		rows := make([]types.Row, len(out))
		for i, item := range out {
			row, err := types.AsRow(item)
			if err != nil {
				return nil, fmt.Errorf("pgweave: passthrough result is not a row, use RunRaw: %w", err)
			}
			rows[i] = row
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("pgweave: unexpected select result %T", v)
	}
}

// RunRaw executes the statement and returns the transform output uncoerced.
func (s *SelectStatement) RunRaw(ctx context.Context, q Queryable) (interface{}, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return s.Transform(rows)
}

// SelectOneStatement selects at most one matching row.
type SelectOneStatement struct {
	selectCore
}

// SelectOne builds a query returning the first matching row, if any.
func SelectOne(table string, where interface{}, opts *SelectOptions) *SelectOneStatement {
	return &SelectOneStatement{buildSelect(table, where, opts, modeOne)}
}

// Transform yields the decoded row, or nil when no row matched.
func (s *SelectOneStatement) Transform(rows []types.Row) (interface{}, error) {
	v, ok, err := s.oneTransform(rows)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// Run executes the statement; ok reports whether a row matched.
func (s *SelectOneStatement) Run(ctx context.Context, q Queryable) (types.Row, bool, error) {
	v, ok, err := s.RunRaw(ctx, q)
	if err != nil || !ok {
		return nil, ok, err
	}
	row, err := types.AsRow(v)
	if err != nil {
		return nil, true, fmt.Errorf("pgweave: passthrough result is not a row, use RunRaw: %w", err)
	}
	return row, true, nil
}

// RunRaw executes the statement and returns the transform output uncoerced;
// ok reports whether a row matched.
func (s *SelectOneStatement) RunRaw(ctx context.Context, q Queryable) (interface{}, bool, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, false, err
	}
	return s.oneTransform(rows)
}

// SelectExactlyOneStatement selects exactly one matching row and treats
// absence as an error.
type SelectExactlyOneStatement struct {
	selectCore
}

// SelectExactlyOne builds a query returning the single matching row,
// failing with a *RowCountError when none matches. A second physical match
// is masked by the LIMIT 1, so only absence is reported.
func SelectExactlyOne(table string, where interface{}, opts *SelectOptions) *SelectExactlyOneStatement {
	return &SelectExactlyOneStatement{buildSelect(table, where, opts, modeExactlyOne)}
}

// Transform yields the decoded row; zero observed rows is a *RowCountError.
func (s *SelectExactlyOneStatement) Transform(rows []types.Row) (interface{}, error) {
	v, ok, err := s.oneTransform(rows)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &RowCountError{Table: s.table, Statement: s}
	}
	return v, nil
}

// Run executes the statement and returns the single matching row.
func (s *SelectExactlyOneStatement) Run(ctx context.Context, q Queryable) (types.Row, error) {
	v, err := s.RunRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	row, err := types.AsRow(v)
	if err != nil {
		return nil, fmt.Errorf("pgweave: passthrough result is not a row, use RunRaw: %w", err)
	}
	return row, nil
}

// RunRaw executes the statement and returns the transform output uncoerced.
func (s *SelectExactlyOneStatement) RunRaw(ctx context.Context, q Queryable) (interface{}, error) {
	rows, _, err := run(ctx, q, s)
	if err != nil {
		return nil, err
	}
	return s.Transform(rows)
}
