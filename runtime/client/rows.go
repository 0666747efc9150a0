package client

import (
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/pgweave/pgweave/runtime/types"
)

// scanRows drains a database/sql result set into the engine's row form.
// Column values stay in driver representation; lib/pq hands jsonb back
// as []byte, which types.DecodeJSON normalizes later.
func scanRows(rows *sql.Rows) ([]types.Row, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []types.Row{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// collectRows drains a pgx result set into the engine's row form. pgx
// decodes jsonb itself, so values arrive as Go maps, slices and scalars.
func collectRows(rows pgx.Rows) ([]types.Row, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := []types.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(types.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
