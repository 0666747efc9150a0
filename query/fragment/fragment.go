// Package fragment provides the composable SQL expression tree and its
// compiler. A Fragment is an immutable sequence of literal text spans and
// typed expression holes; compiling one is a pure function of the tree and
// an optional parent context, producing statement text with $1..$n
// placeholders and the bound values in matching order.
package fragment

import "sort"

// Fragment is a composable SQL expression tree node. Build one with SQL.
type Fragment struct {
	items []interface{}
	noop  bool
}

// SQL builds a Fragment from literal text interleaved with expression
// values. String items are emitted verbatim and are trusted,
// developer-authored SQL. Every other item must be one of the expression
// types of this package: Parameter, Ident, Raw, ColumnNames, ColumnValues,
// ParentColumn, a Sentinel, or a nested *Fragment. Unknown item types are
// reported at compile time.
func SQL(items ...interface{}) *Fragment {
	return &Fragment{items: items}
}

// deferredError is a segment carrying a builder error to compile time.
type deferredError struct {
	err error
}

// Errored returns a fragment whose compilation fails with err. Builders
// use it to carry an argument-validation error through composition to the
// Compile call instead of splicing the rejected argument into the tree.
func Errored(err error) *Fragment {
	return &Fragment{items: []interface{}{deferredError{err: err}}}
}

// Join composes fragments with a literal separator between consecutive
// entries.
func Join(frags []*Fragment, sep string) *Fragment {
	items := make([]interface{}, 0, len(frags)*2)
	for i, f := range frags {
		if i > 0 {
			items = append(items, sep)
		}
		items = append(items, f)
	}
	return &Fragment{items: items}
}

// MarkNoOp flags the fragment as a statement callers may skip executing
// (an insert of zero rows builds one) and returns it.
func (f *Fragment) MarkNoOp() *Fragment {
	f.noop = true
	return f
}

// NoOp reports whether the fragment was marked as skippable.
func (f *Fragment) NoOp() bool {
	return f.noop
}

// Parameter is a bound value destined for a positional placeholder. The
// value is opaque to the compiler. A non-empty Cast is emitted as $n::cast.
type Parameter struct {
	Value interface{}
	Cast  string
}

// Param wraps a value as a bound parameter.
func Param(v interface{}) Parameter {
	return Parameter{Value: v}
}

// CastParam wraps a value as a bound parameter with a Postgres type cast.
func CastParam(v interface{}, cast string) Parameter {
	return Parameter{Value: v, Cast: cast}
}

// Ident is a table or column identifier, always emitted double-quoted with
// embedded quotes doubled.
type Ident string

// Raw is SQL text spliced into the statement unescaped. It is the only way
// text reaches the output without quoting or parameterization; never pass
// untrusted input through it.
type Raw string

// ParentColumn names a column on the nearest enclosing lateral parent
// table. It has no meaning outside a lateral compilation scope; compiling
// one with no active parent is a ContextError.
type ParentColumn string

// ColumnNames expands to a parenthesized, comma-joined, double-quoted
// identifier list.
type ColumnNames []string

// ColumnValues expands to a comma-joined placeholder list, one parameter
// per entry. Entries that are Parameter, *Fragment, or Sentinel values are
// emitted as such instead of being re-wrapped.
type ColumnValues []interface{}

// Sentinel is a zero-argument marker usable as an expression.
type Sentinel int

const (
	// Default compiles to the SQL DEFAULT keyword.
	Default Sentinel = iota
	// All marks the absence of a filter. Statement builders omit the WHERE
	// clause for it; compiling it directly is a build error.
	All
	// Self compiles to the column currently being assigned or filtered.
	Self
)

// Cols derives a ColumnNames list from a value map's keys, sorted
// lexicographically so compilation is deterministic.
func Cols(m map[string]interface{}) ColumnNames {
	return ColumnNames(SortedKeys(m))
}

// Vals derives a ColumnValues list from a value map, ordered by the sorted
// keys so it lines up with Cols of the same map.
func Vals(m map[string]interface{}) ColumnValues {
	keys := SortedKeys(m)
	vals := make(ColumnValues, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return vals
}

// SortedKeys returns the map's keys in lexicographic order.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parentScope marks a lateral subquery boundary: alias is the active
// parent table while sub compiles.
type parentScope struct {
	alias string
	sub   *Fragment
}

// WithParentScope wraps sub so that alias is pushed onto the parent-context
// stack for the duration of sub's compilation.
func WithParentScope(alias string, sub *Fragment) *Fragment {
	return &Fragment{items: []interface{}{parentScope{alias: alias, sub: sub}}}
}

// columnScope makes column the active Self target while sub compiles.
type columnScope struct {
	column string
	sub    *Fragment
}

// WithColumnScope wraps sub so that Self resolves to column inside it.
func WithColumnScope(column string, sub *Fragment) *Fragment {
	return &Fragment{items: []interface{}{columnScope{column: column, sub: sub}}}
}
