package shortcuts

import (
	"github.com/pgweave/pgweave/query/conditions"
	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/schema"
)

// Builder issues statement shortcuts checked against a schema vocabulary.
// A misspelled table or column name surfaces as a build error before any
// SQL compiles or executes. The vocabulary is an explicit value, normally
// the one pgweave generate emitted; construct with NewBuilder.
type Builder struct {
	vocab schema.Vocabulary
}

// NewBuilder returns a Builder validating statements against v.
func NewBuilder(v schema.Vocabulary) (*Builder, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &Builder{vocab: v}, nil
}

// Vocabulary returns the vocabulary the builder validates against.
func (b *Builder) Vocabulary() schema.Vocabulary { return b.vocab }

// check verifies the table exists and carries every named column.
func (b *Builder) check(op, table string, columns []string) error {
	t, ok := b.vocab.Table(table)
	if !ok {
		return fragment.Buildf(op, "unknown table %q", table)
	}
	for _, c := range columns {
		if _, ok := t.Column(c); !ok {
			return fragment.Buildf(op, "unknown column %q on table %q", c, table)
		}
	}
	return nil
}

// stampErr records a vocabulary error unless the statement already
// failed to build; the earlier error is the more specific one.
func stampErr(dst *error, err error) {
	if *dst == nil && err != nil {
		*dst = err
	}
}

// whereColumns extracts the column names a Where map filters on. Other
// filter forms carry no checkable names.
func whereColumns(where interface{}) []string {
	w, ok := where.(conditions.Where)
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(w))
	for c := range w {
		cols = append(cols, c)
	}
	return cols
}

func selectColumns(where interface{}, opts *SelectOptions) []string {
	cols := whereColumns(where)
	if opts == nil {
		return cols
	}
	cols = append(cols, opts.Columns...)
	cols = append(cols, opts.DistinctOn...)
	cols = append(cols, opts.GroupBy...)
	for _, o := range opts.Order {
		switch by := o.By.(type) {
		case string:
			cols = append(cols, by)
		case fragment.Ident:
			cols = append(cols, string(by))
		}
	}
	return cols
}

// Insert is Insert checked against the vocabulary.
func (b *Builder) Insert(table string, rows []Values, opts *InsertOptions) *InsertStatement {
	s := Insert(table, rows, opts)
	stampErr(&s.err, b.check("insert", table, unionKeys(rows)))
	return s
}

// Upsert is Upsert checked against the vocabulary, including the
// conflict target's columns or constraint name.
func (b *Builder) Upsert(table string, rows []Values, target ConflictTarget, opts *UpsertOptions) *UpsertStatement {
	s := Upsert(table, rows, target, opts)
	cols := unionKeys(rows)
	cols = append(cols, target.columns...)
	if opts != nil {
		cols = append(cols, opts.UpdateColumns...)
		cols = append(cols, opts.PreserveNonNull...)
		for c := range opts.UpdateValues {
			cols = append(cols, c)
		}
	}
	stampErr(&s.err, b.check("upsert", table, cols))
	if target.constraint != "" {
		if t, ok := b.vocab.Table(table); ok {
			if _, ok := t.Constraint(target.constraint); !ok {
				stampErr(&s.err, fragment.Buildf("upsert", "unknown constraint %q on table %q", target.constraint, table))
			}
		}
	}
	return s
}

// Update is Update checked against the vocabulary.
func (b *Builder) Update(table string, values Values, where interface{}, opts *UpdateOptions) *UpdateStatement {
	s := Update(table, values, where, opts)
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	cols = append(cols, whereColumns(where)...)
	stampErr(&s.err, b.check("update", table, cols))
	return s
}

// Delete is Delete checked against the vocabulary.
func (b *Builder) Delete(table string, where interface{}, opts *DeleteOptions) *DeleteStatement {
	s := Delete(table, where, opts)
	stampErr(&s.err, b.check("delete", table, whereColumns(where)))
	return s
}

// Truncate is Truncate checked against the vocabulary.
func (b *Builder) Truncate(tables []string, opts *TruncateOptions) *TruncateStatement {
	s := Truncate(tables, opts)
	for _, table := range tables {
		if _, ok := b.vocab.Table(table); !ok {
			stampErr(&s.err, fragment.Buildf("truncate", "unknown table %q", table))
			break
		}
	}
	return s
}

// Select is Select checked against the vocabulary.
func (b *Builder) Select(table string, where interface{}, opts *SelectOptions) *SelectStatement {
	s := Select(table, where, opts)
	stampErr(&s.err, b.check("select", table, selectColumns(where, opts)))
	return s
}

// SelectOne is SelectOne checked against the vocabulary.
func (b *Builder) SelectOne(table string, where interface{}, opts *SelectOptions) *SelectOneStatement {
	s := SelectOne(table, where, opts)
	stampErr(&s.err, b.check("selectOne", table, selectColumns(where, opts)))
	return s
}

// SelectExactlyOne is SelectExactlyOne checked against the vocabulary.
func (b *Builder) SelectExactlyOne(table string, where interface{}, opts *SelectOptions) *SelectExactlyOneStatement {
	s := SelectExactlyOne(table, where, opts)
	stampErr(&s.err, b.check("selectExactlyOne", table, selectColumns(where, opts)))
	return s
}

// Count is Count checked against the vocabulary.
func (b *Builder) Count(table string, where interface{}, opts *CountOptions) *CountStatement {
	s := Count(table, where, opts)
	cols := whereColumns(where)
	if opts != nil && opts.Column != "" {
		cols = append(cols, opts.Column)
	}
	stampErr(&s.err, b.check("count", table, cols))
	return s
}

// Sum is Sum checked against the vocabulary.
func (b *Builder) Sum(table, column string, where interface{}, opts *AggregateOptions) *NumericStatement {
	s := Sum(table, column, where, opts)
	stampErr(&s.err, b.check("sum", table, append(whereColumns(where), column)))
	return s
}

// Avg is Avg checked against the vocabulary.
func (b *Builder) Avg(table, column string, where interface{}, opts *AggregateOptions) *NumericStatement {
	s := Avg(table, column, where, opts)
	stampErr(&s.err, b.check("avg", table, append(whereColumns(where), column)))
	return s
}

// Min is Min checked against the vocabulary.
func (b *Builder) Min(table, column string, where interface{}, opts *AggregateOptions) *ScalarStatement {
	s := Min(table, column, where, opts)
	stampErr(&s.err, b.check("min", table, append(whereColumns(where), column)))
	return s
}

// Max is Max checked against the vocabulary.
func (b *Builder) Max(table, column string, where interface{}, opts *AggregateOptions) *ScalarStatement {
	s := Max(table, column, where, opts)
	stampErr(&s.err, b.check("max", table, append(whereColumns(where), column)))
	return s
}
