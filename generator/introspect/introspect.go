// Package introspect reads the table vocabulary out of a live PostgreSQL
// database. It drives pgweave generate and the drift check in pgweave
// check; the statement builders themselves never touch the catalog.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgweave/pgweave/internal/debug"
	"github.com/pgweave/pgweave/runtime/types"
	"github.com/pgweave/pgweave/schema"
)

// Queryable executes introspection statements. Both runtime clients
// satisfy it.
type Queryable interface {
	Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error)
}

// Vocabulary reads the full vocabulary of the named schema.
func Vocabulary(ctx context.Context, q Queryable, schemaName string) (schema.Vocabulary, error) {
	tables, err := Tables(ctx, q, schemaName)
	if err != nil {
		return schema.Vocabulary{}, err
	}
	return schema.Vocabulary{Schema: schemaName, Tables: tables}, nil
}

// Tables reads every base table in the named schema. Output order is
// deterministic: tables by name, columns by ordinal position, constraint
// columns by their position in the constraint key.
func Tables(ctx context.Context, q Queryable, schemaName string) ([]schema.Table, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := q.Query(ctx, query, []interface{}{schemaName})
	if err != nil {
		return nil, fmt.Errorf("pgweave: introspect tables: %w", err)
	}

	tables := make([]schema.Table, 0, len(rows))
	for _, row := range rows {
		name, err := types.String(row["table_name"])
		if err != nil {
			return nil, fmt.Errorf("pgweave: introspect tables: %w", err)
		}

		table := schema.Table{Name: name, Schema: schemaName}
		if table.Columns, err = tableColumns(ctx, q, schemaName, name); err != nil {
			return nil, err
		}
		if table.Constraints, err = tableConstraints(ctx, q, schemaName, name); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	debug.Component("introspect").Debug("schema introspected", "schema", schemaName, "tables", len(tables))
	return tables, nil
}

// ServerVersion reports the server_version setting, e.g. "16.4".
func ServerVersion(ctx context.Context, q Queryable) (string, error) {
	query := `SELECT current_setting('server_version') AS server_version`

	rows, err := q.Query(ctx, query, nil)
	if err != nil {
		return "", fmt.Errorf("pgweave: read server version: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("pgweave: read server version: no row returned")
	}
	v, err := types.String(rows[0]["server_version"])
	if err != nil {
		return "", fmt.Errorf("pgweave: read server version: %w", err)
	}
	return v, nil
}

// tableColumns reads one table's columns. Nullability and default
// presence are computed server-side so the row carries plain booleans on
// every driver.
func tableColumns(ctx context.Context, q Queryable, schemaName, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			udt_name,
			is_nullable = 'YES' AS nullable,
			column_default IS NOT NULL AS has_default
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := q.Query(ctx, query, []interface{}{schemaName, tableName})
	if err != nil {
		return nil, fmt.Errorf("pgweave: introspect columns of %q: %w", tableName, err)
	}

	columns := make([]schema.Column, 0, len(rows))
	for _, row := range rows {
		col, err := scanColumn(row)
		if err != nil {
			return nil, fmt.Errorf("pgweave: introspect columns of %q: %w", tableName, err)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func scanColumn(row types.Row) (schema.Column, error) {
	var col schema.Column
	var err error
	if col.Name, err = types.String(row["column_name"]); err != nil {
		return col, err
	}
	dataType, err := types.String(row["data_type"])
	if err != nil {
		return col, err
	}
	udtName, err := types.String(row["udt_name"])
	if err != nil {
		return col, err
	}
	col.Type = columnType(dataType, udtName)
	if col.Nullable, err = types.Bool(row["nullable"]); err != nil {
		return col, err
	}
	if col.HasDefault, err = types.Bool(row["has_default"]); err != nil {
		return col, err
	}
	return col, nil
}

// tableConstraints reads one table's primary key and unique constraints,
// the valid ON CONFLICT targets. The query yields one row per constraint
// column; rows are grouped here.
func tableConstraints(ctx context.Context, q Queryable, schemaName, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT
			con.conname AS constraint_name,
			att.attname AS column_name
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class rel ON rel.oid = con.conrelid
		JOIN pg_catalog.pg_namespace nsp ON nsp.oid = rel.relnamespace
		JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_catalog.pg_attribute att ON att.attrelid = rel.oid AND att.attnum = k.attnum
		WHERE nsp.nspname = $1
		  AND rel.relname = $2
		  AND con.contype IN ('p', 'u')
		ORDER BY con.conname, k.ord
	`

	rows, err := q.Query(ctx, query, []interface{}{schemaName, tableName})
	if err != nil {
		return nil, fmt.Errorf("pgweave: introspect constraints of %q: %w", tableName, err)
	}

	var constraints []schema.Constraint
	index := make(map[string]int)
	for _, row := range rows {
		name, err := types.String(row["constraint_name"])
		if err != nil {
			return nil, fmt.Errorf("pgweave: introspect constraints of %q: %w", tableName, err)
		}
		column, err := types.String(row["column_name"])
		if err != nil {
			return nil, fmt.Errorf("pgweave: introspect constraints of %q: %w", tableName, err)
		}
		i, ok := index[name]
		if !ok {
			i = len(constraints)
			index[name] = i
			constraints = append(constraints, schema.Constraint{Name: name})
		}
		constraints[i].Columns = append(constraints[i].Columns, column)
	}
	return constraints, nil
}

// columnType resolves the reported type name. information_schema hides
// enum and array element names behind generic markers; udt_name carries
// the real name.
func columnType(dataType, udtName string) string {
	switch dataType {
	case "USER-DEFINED":
		return udtName
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	default:
		return dataType
	}
}
