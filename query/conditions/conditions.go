// Package conditions provides the condition builders and boolean
// combinators used to express WHERE clauses. Each builder yields a small
// fragment of the form <column> <op> <value>; combinators compose filters
// with explicit parenthesization so operator precedence never depends on
// reading order.
package conditions

import (
	"sort"

	"github.com/pgweave/pgweave/query/fragment"
)

type condKind int

const (
	kindEquals condKind = iota
	kindNotEquals
	kindGreaterThan
	kindGreaterOrEqual
	kindLessThan
	kindLessOrEqual
	kindLike
	kindILike
	kindIn
	kindNotIn
	kindBetween
	kindIsNull
	kindIsNotNull
)

// Condition is a tagged comparison applied to a column by a Where map.
// Zero-argument null tests are the exported IsNull/IsNotNull values, kept
// distinct from value-bearing variants by the tag, not by runtime identity.
type Condition struct {
	kind   condKind
	value  interface{}
	list   []interface{}
	lo, hi interface{}
}

// Null-test sentinel values, used positionally: Where{"deletedAt": IsNull}.
var (
	// IsNull compiles to <column> IS NULL.
	IsNull = Condition{kind: kindIsNull}

	// IsNotNull compiles to <column> IS NOT NULL.
	IsNotNull = Condition{kind: kindIsNotNull}
)

// Equals compiles to <column> = $n.
func Equals(v interface{}) Condition { return Condition{kind: kindEquals, value: v} }

// NotEquals compiles to <column> <> $n.
func NotEquals(v interface{}) Condition { return Condition{kind: kindNotEquals, value: v} }

// GreaterThan compiles to <column> > $n.
func GreaterThan(v interface{}) Condition { return Condition{kind: kindGreaterThan, value: v} }

// GreaterOrEqual compiles to <column> >= $n.
func GreaterOrEqual(v interface{}) Condition { return Condition{kind: kindGreaterOrEqual, value: v} }

// LessThan compiles to <column> < $n.
func LessThan(v interface{}) Condition { return Condition{kind: kindLessThan, value: v} }

// LessOrEqual compiles to <column> <= $n.
func LessOrEqual(v interface{}) Condition { return Condition{kind: kindLessOrEqual, value: v} }

// Like compiles to <column> LIKE $n.
func Like(pattern string) Condition { return Condition{kind: kindLike, value: pattern} }

// CaseInsensitiveLike compiles to <column> ILIKE $n.
func CaseInsensitiveLike(pattern string) Condition { return Condition{kind: kindILike, value: pattern} }

// IsIn compiles to <column> IN ($1, ...). With no values it compiles to
// FALSE, never to the invalid IN ().
func IsIn(vals ...interface{}) Condition { return Condition{kind: kindIn, list: vals} }

// IsNotIn compiles to <column> NOT IN ($1, ...). With no values it
// compiles to TRUE.
func IsNotIn(vals ...interface{}) Condition { return Condition{kind: kindNotIn, list: vals} }

// Between compiles to <column> BETWEEN $a AND $b.
func Between(lo, hi interface{}) Condition { return Condition{kind: kindBetween, lo: lo, hi: hi} }

// Where maps column names to filters: a literal value (implicit equality),
// a Condition, or a *fragment.Fragment beginning with its operator, e.g.
// fragment.SQL("= ", fragment.Param(1)). Keys compile in lexicographic
// order so the emitted text is deterministic.
type Where map[string]interface{}

// Build renders a filter into a parenthesized predicate fragment. Accepted
// shapes: a Where map, a *fragment.Fragment used verbatim, or fragment.All
// for the vacuous TRUE predicate. Statement builders omit the WHERE clause
// entirely for fragment.All; Build renders it as TRUE for use inside
// combinators.
func Build(where interface{}) (*fragment.Fragment, error) {
	switch w := where.(type) {
	case Where:
		return buildWhere(w), nil
	case map[string]interface{}:
		return buildWhere(Where(w)), nil
	case *fragment.Fragment:
		return fragment.SQL("(", w, ")"), nil
	case fragment.Sentinel:
		if w == fragment.All {
			return fragment.SQL("TRUE"), nil
		}
		return nil, fragment.Buildf("where", "sentinel %d is not a filter", int(w))
	case nil:
		return nil, fragment.Buildf("where", "nil filter; use fragment.All for no filter")
	default:
		return nil, fragment.Buildf("where", "unsupported filter type %T", where)
	}
}

func buildWhere(w Where) *fragment.Fragment {
	if len(w) == 0 {
		return fragment.SQL("TRUE")
	}
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	frags := make([]*fragment.Fragment, 0, len(keys))
	for _, col := range keys {
		frags = append(frags, buildEntry(col, w[col]))
	}
	return fragment.SQL("(", fragment.Join(frags, " AND "), ")")
}

// buildEntry renders a single column filter.
func buildEntry(col string, val interface{}) *fragment.Fragment {
	switch v := val.(type) {
	case Condition:
		return v.forColumn(col)
	case *fragment.Fragment:
		// Operator-leading fragment; Self resolves to this column inside it.
		return fragment.SQL(fragment.Ident(col), " ", fragment.WithColumnScope(col, v))
	default:
		return fragment.SQL(fragment.Ident(col), " = ", fragment.ColumnValues{val})
	}
}

// forColumn renders the condition against a quoted column.
func (c Condition) forColumn(col string) *fragment.Fragment {
	id := fragment.Ident(col)
	switch c.kind {
	case kindEquals:
		return scoped(col, id, " = ", c.value)
	case kindNotEquals:
		return scoped(col, id, " <> ", c.value)
	case kindGreaterThan:
		return scoped(col, id, " > ", c.value)
	case kindGreaterOrEqual:
		return scoped(col, id, " >= ", c.value)
	case kindLessThan:
		return scoped(col, id, " < ", c.value)
	case kindLessOrEqual:
		return scoped(col, id, " <= ", c.value)
	case kindLike:
		return scoped(col, id, " LIKE ", c.value)
	case kindILike:
		return scoped(col, id, " ILIKE ", c.value)
	case kindIn:
		if len(c.list) == 0 {
			return fragment.SQL("FALSE")
		}
		return fragment.SQL(id, " IN (", fragment.ColumnValues(c.list), ")")
	case kindNotIn:
		if len(c.list) == 0 {
			return fragment.SQL("TRUE")
		}
		return fragment.SQL(id, " NOT IN (", fragment.ColumnValues(c.list), ")")
	case kindBetween:
		return fragment.SQL(id, " BETWEEN ", fragment.ColumnValues{c.lo}, " AND ", fragment.ColumnValues{c.hi})
	case kindIsNull:
		return fragment.SQL(id, " IS NULL")
	case kindIsNotNull:
		return fragment.SQL(id, " IS NOT NULL")
	default:
		return fragment.SQL(id, " = ", fragment.ColumnValues{c.value})
	}
}

// scoped emits <ident><op><value> with the column scope active so Self
// references inside fragment values resolve.
func scoped(col string, id fragment.Ident, op string, val interface{}) *fragment.Fragment {
	if sub, ok := val.(*fragment.Fragment); ok {
		return fragment.SQL(id, op, fragment.WithColumnScope(col, sub))
	}
	return fragment.SQL(id, op, fragment.ColumnValues{val})
}

// And composes filters with AND. Each item is a Where map, a
// *fragment.Fragment, or another combinator result; every operand is
// parenthesized. No items compiles to the trivially-true predicate.
func And(items ...interface{}) *fragment.Fragment {
	return combine(items, " AND ", "TRUE")
}

// Or composes filters with OR. No items compiles to the trivially-false
// predicate.
func Or(items ...interface{}) *fragment.Fragment {
	return combine(items, " OR ", "FALSE")
}

// Not negates a filter.
func Not(item interface{}) *fragment.Fragment {
	return fragment.SQL("NOT ", operand(item))
}

func combine(items []interface{}, sep, empty string) *fragment.Fragment {
	if len(items) == 0 {
		return fragment.SQL(empty)
	}
	frags := make([]*fragment.Fragment, 0, len(items))
	for _, item := range items {
		frags = append(frags, operand(item))
	}
	return fragment.SQL("(", fragment.Join(frags, sep), ")")
}

// operand renders a combinator argument. Anything Build rejects is
// carried as a deferred error so the combined tree fails to compile;
// plain strings in particular are never spliced in as literal SQL.
func operand(item interface{}) *fragment.Fragment {
	f, err := Build(item)
	if err != nil {
		return fragment.Errored(err)
	}
	return f
}
