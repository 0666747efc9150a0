// Package types provides the runtime value types shared by statement
// transforms and executor adapters: the generic row shape, JSON
// normalization across drivers, and scalar coercion for aggregate results.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// DecodeJSON normalizes a JSON-typed column value. pgx decodes json/jsonb
// columns into Go values already; database/sql drivers hand back raw bytes.
// Everything else passes through untouched, string values included, since a
// string here is an already-decoded JSON value rather than wire text.
func DecodeJSON(v interface{}) (interface{}, error) {
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("pgweave: decoding json column: %w", err)
		}
		return out, nil
	case json.RawMessage:
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("pgweave: decoding json column: %w", err)
		}
		return out, nil
	default:
		return v, nil
	}
}

// AsRow coerces a decoded JSON value into a Row. A nil value stays nil.
func AsRow(v interface{}) (Row, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case Row:
		return m, nil
	case map[string]interface{}:
		return Row(m), nil
	default:
		return nil, fmt.Errorf("pgweave: expected a json object, got %T", v)
	}
}

// AsRows coerces a decoded JSON value into a Row slice. A nil value yields
// an empty slice.
func AsRows(v interface{}) ([]Row, error) {
	if v == nil {
		return []Row{}, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("pgweave: expected a json array, got %T", v)
	}
	rows := make([]Row, 0, len(list))
	for _, item := range list {
		row, err := AsRow(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Int64 coerces an aggregate scalar into an int64. Large counts may arrive
// string-typed from the driver.
func Int64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("pgweave: cannot coerce %T to int64", v)
	}
}

// String coerces a text-typed column value into a string. database/sql
// drivers hand text columns back as raw bytes.
func String(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("pgweave: cannot coerce %T to string", v)
	}
}

// Bool coerces a boolean column value into a bool.
func Bool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case []byte:
		return strconv.ParseBool(string(b))
	default:
		return false, fmt.Errorf("pgweave: cannot coerce %T to bool", v)
	}
}

// Float64 coerces an aggregate scalar into a float64. Postgres numeric
// results commonly arrive as strings.
func Float64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	default:
		return 0, fmt.Errorf("pgweave: cannot coerce %T to float64", v)
	}
}
