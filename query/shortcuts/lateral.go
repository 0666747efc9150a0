package shortcuts

import (
	"reflect"
	"sort"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// passthroughAlias names the join of a passthrough-mode lateral.
const passthroughAlias = "lateral_passthru"

// Lateral attaches correlated subqueries to a select. In map mode each
// entry joins as LEFT JOIN LATERAL and its single-row result is embedded in
// the parent row under the entry's key; in passthrough mode the subquery's
// result replaces the parent row entirely. Subqueries reference parent
// columns through fragment.ParentColumn.
type Lateral struct {
	// Map embeds each subquery's result under its key. Keys compile in
	// lexicographic order.
	Map map[string]Runnable

	// Passthrough replaces the parent row with the subquery's result.
	Passthrough Runnable
}

// validate rejects shapes that cannot compile: both modes at once, neither,
// or a nil subquery under a key. Subquery build errors surface here too, so
// a broken inner statement fails the outer build before any I/O.
func (l *Lateral) validate() error {
	if l.Passthrough != nil && len(l.Map) > 0 {
		return fragment.Buildf("lateral", "map and passthrough modes are mutually exclusive")
	}
	if l.Passthrough == nil && len(l.Map) == 0 {
		return fragment.Buildf("lateral", "at least one subquery required")
	}
	if l.Passthrough != nil {
		if nilStatement(l.Passthrough) {
			return fragment.Buildf("lateral", "nil passthrough subquery")
		}
		return l.Passthrough.Err()
	}
	for _, k := range l.keys() {
		sub := l.Map[k]
		if nilStatement(sub) {
			return fragment.Buildf("lateral", "nil subquery under key %q", k)
		}
		if err := sub.Err(); err != nil {
			return err
		}
	}
	return nil
}

// nilStatement reports whether r is nil directly or a typed-nil statement
// pointer stored in the interface, which an interface comparison misses.
func nilStatement(r Runnable) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// keys returns the map keys in lexicographic order.
func (l *Lateral) keys() []string {
	keys := make([]string, 0, len(l.Map))
	for k := range l.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joins emits the LEFT JOIN LATERAL clauses. The outer alias becomes the
// parent scope of each subquery for the duration of its compilation.
func (l *Lateral) joins(alias string) *fragment.Fragment {
	if l.Passthrough != nil {
		return fragment.SQL(
			" LEFT JOIN LATERAL (", fragment.WithParentScope(alias, l.Passthrough.Fragment()),
			") AS ", fragment.Ident(passthroughAlias), " ON true",
		)
	}
	items := make([]interface{}, 0, len(l.Map)*6)
	for _, k := range l.keys() {
		items = append(items,
			" LEFT JOIN LATERAL (", fragment.WithParentScope(alias, l.Map[k].Fragment()),
			") AS ", fragment.Ident("lateral_"+k), " ON true",
		)
	}
	return fragment.SQL(items...)
}

// resultKeys appends the lateral results to the row JSON. Key names are
// bound as parameters, so the sorted order shows in both text and values.
func (l *Lateral) resultKeys() *fragment.Fragment {
	items := make([]interface{}, 0, len(l.Map)*4+2)
	items = append(items, " || jsonb_build_object(")
	for i, k := range l.keys() {
		if i > 0 {
			items = append(items, ", ")
		}
		items = append(items, fragment.CastParam(k, "text"), ", ", fragment.Ident("lateral_"+k), ".result")
	}
	items = append(items, ")")
	return fragment.SQL(items...)
}

// replay re-applies each subquery's transform to its nested payload in one
// decoded parent row. Nested laterals recurse through their own statements'
// transforms; one failing row fails the whole call.
func (l *Lateral) replay(row types.Row) error {
	for _, k := range l.keys() {
		v, err := transformPayload(l.Map[k], row[k])
		if err != nil {
			return err
		}
		row[k] = v
	}
	return nil
}

// transformPayload replays one subquery's transform over a nested payload.
// A JSON null payload means the subquery produced no rows; anything else is
// the single row the executor would have returned.
func transformPayload(sub Runnable, payload interface{}) (interface{}, error) {
	rows := []types.Row{}
	if payload != nil {
		rows = []types.Row{{"result": payload}}
	}
	return sub.Transform(rows)
}
