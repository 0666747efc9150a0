package shortcuts

import (
	"context"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// ForeignKeys selects how TRUNCATE treats tables that reference the
// truncated ones.
type ForeignKeys int

const (
	// Restrict refuses to truncate when other tables reference these. This
	// is Postgres's default and emits no keyword.
	Restrict ForeignKeys = iota

	// Cascade truncates referencing tables too.
	Cascade
)

// TruncateOptions shapes a TRUNCATE statement.
type TruncateOptions struct {
	// RestartIdentity resets sequences owned by the truncated tables.
	RestartIdentity bool

	// ForeignKeys adds CASCADE when set to Cascade.
	ForeignKeys ForeignKeys
}

// TruncateStatement is a built TRUNCATE statement.
type TruncateStatement struct {
	frag *fragment.Fragment
	err  error
}

// Truncate builds a TRUNCATE over one or more tables.
func Truncate(tables []string, opts *TruncateOptions) *TruncateStatement {
	if opts == nil {
		opts = &TruncateOptions{}
	}
	if len(tables) == 0 {
		return &TruncateStatement{err: fragment.Buildf("truncate", "at least one table required")}
	}

	items := []interface{}{"TRUNCATE ", identList(tables)}
	if opts.RestartIdentity {
		items = append(items, " RESTART IDENTITY")
	}
	if opts.ForeignKeys == Cascade {
		items = append(items, " CASCADE")
	}
	return &TruncateStatement{frag: fragment.SQL(items...)}
}

// Fragment returns the built expression tree.
func (s *TruncateStatement) Fragment() *fragment.Fragment { return s.frag }

// Err reports any error captured while building.
func (s *TruncateStatement) Err() error { return s.err }

// Compile renders the statement.
func (s *TruncateStatement) Compile() (fragment.Compiled, error) {
	if s.err != nil {
		return fragment.Compiled{}, s.err
	}
	return s.frag.Compile()
}

// Transform is a no-op; TRUNCATE returns no rows.
func (s *TruncateStatement) Transform(rows []types.Row) (interface{}, error) {
	return nil, nil
}

// Run executes the statement.
func (s *TruncateStatement) Run(ctx context.Context, q Queryable) error {
	_, _, err := run(ctx, q, s)
	return err
}
