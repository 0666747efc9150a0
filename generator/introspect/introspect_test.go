package introspect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/runtime/types"
	"github.com/pgweave/pgweave/schema"
)

// scriptedQueryable dispatches introspection queries to canned rows. The
// authors rows use []byte values the way database/sql drivers hand text
// back; the books rows use plain strings the way pgx decodes them.
type scriptedQueryable struct {
	tables      []types.Row
	columns     map[string][]types.Row
	constraints map[string][]types.Row
	version     []types.Row
	failOn      string
	queries     []string
}

func (s *scriptedQueryable) Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	s.queries = append(s.queries, text)
	if s.failOn != "" && strings.Contains(text, s.failOn) {
		return nil, errors.New("connection reset")
	}
	switch {
	case strings.Contains(text, "information_schema.tables"):
		return s.tables, nil
	case strings.Contains(text, "information_schema.columns"):
		return s.columns[args[1].(string)], nil
	case strings.Contains(text, "pg_constraint"):
		return s.constraints[args[1].(string)], nil
	case strings.Contains(text, "server_version"):
		return s.version, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", text)
}

func catalogFixture() *scriptedQueryable {
	return &scriptedQueryable{
		tables: []types.Row{
			{"table_name": []byte("authors")},
			{"table_name": "books"},
		},
		columns: map[string][]types.Row{
			"authors": {
				{"column_name": []byte("id"), "data_type": []byte("integer"), "udt_name": []byte("int4"), "nullable": false, "has_default": true},
				{"column_name": []byte("name"), "data_type": []byte("text"), "udt_name": []byte("text"), "nullable": false, "has_default": false},
			},
			"books": {
				{"column_name": "id", "data_type": "integer", "udt_name": "int4", "nullable": false, "has_default": true},
				{"column_name": "title", "data_type": "text", "udt_name": "text", "nullable": false, "has_default": false},
				{"column_name": "author_id", "data_type": "integer", "udt_name": "int4", "nullable": false, "has_default": false},
				{"column_name": "tags", "data_type": "ARRAY", "udt_name": "_text", "nullable": true, "has_default": false},
				{"column_name": "mood", "data_type": "USER-DEFINED", "udt_name": "book_mood", "nullable": true, "has_default": false},
			},
		},
		constraints: map[string][]types.Row{
			"authors": {
				{"constraint_name": []byte("authors_pkey"), "column_name": []byte("id")},
			},
			"books": {
				{"constraint_name": "books_pkey", "column_name": "id"},
				{"constraint_name": "books_title_author_key", "column_name": "title"},
				{"constraint_name": "books_title_author_key", "column_name": "author_id"},
			},
		},
		version: []types.Row{{"server_version": []byte("16.4")}},
	}
}

func TestTablesReadsVocabulary(t *testing.T) {
	q := catalogFixture()
	tables, err := Tables(context.Background(), q, "public")
	require.NoError(t, err)

	want := []schema.Table{
		{
			Name:   "authors",
			Schema: "public",
			Columns: []schema.Column{
				{Name: "id", Type: "integer", HasDefault: true},
				{Name: "name", Type: "text"},
			},
			Constraints: []schema.Constraint{
				{Name: "authors_pkey", Columns: []string{"id"}},
			},
		},
		{
			Name:   "books",
			Schema: "public",
			Columns: []schema.Column{
				{Name: "id", Type: "integer", HasDefault: true},
				{Name: "title", Type: "text"},
				{Name: "author_id", Type: "integer"},
				{Name: "tags", Type: "text[]", Nullable: true},
				{Name: "mood", Type: "book_mood", Nullable: true},
			},
			Constraints: []schema.Constraint{
				{Name: "books_pkey", Columns: []string{"id"}},
				// Multi-column keys keep the constraint's column order.
				{Name: "books_title_author_key", Columns: []string{"title", "author_id"}},
			},
		},
	}
	assert.Equal(t, want, tables)
}

func TestVocabularyWrapsTables(t *testing.T) {
	q := catalogFixture()
	v, err := Vocabulary(context.Background(), q, "public")
	require.NoError(t, err)
	assert.Equal(t, "public", v.Schema)
	require.Len(t, v.Tables, 2)
	require.NoError(t, v.Validate())
}

func TestTablesPropagatesErrors(t *testing.T) {
	q := catalogFixture()
	q.failOn = "information_schema.columns"
	_, err := Tables(context.Background(), q, "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `introspect columns of "authors"`)

	q = catalogFixture()
	q.failOn = "pg_constraint"
	_, err = Tables(context.Background(), q, "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `introspect constraints of "authors"`)
}

func TestServerVersion(t *testing.T) {
	q := catalogFixture()
	v, err := ServerVersion(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "16.4", v)

	q.version = nil
	_, err = ServerVersion(context.Background(), q)
	assert.Error(t, err)
}

func TestColumnTypeResolution(t *testing.T) {
	tests := []struct {
		dataType string
		udtName  string
		want     string
	}{
		{"integer", "int4", "integer"},
		{"timestamp with time zone", "timestamptz", "timestamp with time zone"},
		{"USER-DEFINED", "book_mood", "book_mood"},
		{"ARRAY", "_int4", "int4[]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnType(tt.dataType, tt.udtName), "%s/%s", tt.dataType, tt.udtName)
	}
}
