package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booksVocabulary() Vocabulary {
	return Vocabulary{
		Schema: "public",
		Tables: []Table{
			{
				Name: "authors",
				Columns: []Column{
					{Name: "id", Type: "integer"},
					{Name: "name", Type: "text"},
				},
				Constraints: []Constraint{
					{Name: "authors_pkey", Columns: []string{"id"}},
				},
			},
			{
				Name: "books",
				Columns: []Column{
					{Name: "id", Type: "integer"},
					{Name: "author_id", Type: "integer", Nullable: true},
					{Name: "title", Type: "text"},
					{Name: "created_at", Type: "timestamptz", HasDefault: true},
				},
			},
		},
	}
}

func TestVocabularyLookups(t *testing.T) {
	v := booksVocabulary()

	tbl, ok := v.Table("books")
	require.True(t, ok)
	assert.Equal(t, "books", tbl.Name)

	_, ok = v.Table("missing")
	assert.False(t, ok)

	col, ok := tbl.Column("author_id")
	require.True(t, ok)
	assert.True(t, col.Nullable)

	_, ok = tbl.Column("isbn")
	assert.False(t, ok)

	authors, _ := v.Table("authors")
	cons, ok := authors.Constraint("authors_pkey")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, cons.Columns)

	_, ok = authors.Constraint("authors_name_key")
	assert.False(t, ok)
}

func TestVocabularyNames(t *testing.T) {
	v := booksVocabulary()
	assert.Equal(t, []string{"authors", "books"}, v.TableNames())

	tbl, _ := v.Table("books")
	assert.Equal(t, []string{"id", "author_id", "title", "created_at"}, tbl.ColumnNames())
}

func TestVocabularyValidate(t *testing.T) {
	require.NoError(t, booksVocabulary().Validate())

	tests := []struct {
		name  string
		vocab Vocabulary
		want  string
	}{
		{
			name:  "duplicate table",
			vocab: Vocabulary{Tables: []Table{{Name: "t"}, {Name: "t"}}},
			want:  `duplicate table "t"`,
		},
		{
			name:  "unnamed table",
			vocab: Vocabulary{Tables: []Table{{}}},
			want:  "table with no name",
		},
		{
			name: "duplicate column",
			vocab: Vocabulary{Tables: []Table{
				{Name: "t", Columns: []Column{{Name: "c"}, {Name: "c"}}},
			}},
			want: `duplicate column "c"`,
		},
		{
			name: "constraint on unknown column",
			vocab: Vocabulary{Tables: []Table{
				{
					Name:        "t",
					Columns:     []Column{{Name: "c"}},
					Constraints: []Constraint{{Name: "t_x_key", Columns: []string{"x"}}},
				},
			}},
			want: `unknown column "x"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vocab.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
