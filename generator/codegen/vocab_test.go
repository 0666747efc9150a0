package codegen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/schema"
)

func generatedFixture() []schema.Table {
	return []schema.Table{
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
				{Name: "isbn", Type: "text", Nullable: true},
				{Name: "tags", Type: "text[]", Nullable: true},
			},
			Constraints: []schema.Constraint{
				{Name: "books_isbn_key", Columns: []string{"isbn"}},
				{Name: "books_pkey", Columns: []string{"id"}},
			},
		},
	}
}

func TestFileGolden(t *testing.T) {
	src, err := File("vocab", "public", generatedFixture())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "vocab_file", src)
}

func TestFileIsStable(t *testing.T) {
	first, err := File("vocab", "public", generatedFixture())
	require.NoError(t, err)
	second, err := File("vocab", "public", generatedFixture())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileRejectsBadPackage(t *testing.T) {
	for _, pkg := range []string{"", "9lives", "my-vocab", "package"} {
		_, err := File(pkg, "public", nil)
		assert.Error(t, err, "package %q", pkg)
	}
}

func TestFileEmptySchema(t *testing.T) {
	src, err := File("vocab", "empty", nil)
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, "package vocab")
	assert.Contains(t, out, `Schema: "empty",`)
	assert.NotContains(t, out, "const")
}

func TestFileDedupesGoNames(t *testing.T) {
	tables := []schema.Table{
		{Name: "author_books", Schema: "public"},
		{Name: "authorBooks", Schema: "public"},
	}
	src, err := File("vocab", "public", tables)
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, "AuthorBooksTable ")
	assert.Contains(t, out, `AuthorBooksTable2 = "authorBooks"`)
}

func TestGoName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"books", "Books"},
		{"author_books", "AuthorBooks"},
		{"users-archive", "UsersArchive"},
		{"2fa_tokens", "X2faTokens"},
		{"", "X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, goName(tt.in), "goName(%q)", tt.in)
	}
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := WriteFile(fs, "gen/vocab/vocab.go", []byte("package vocab\n"))
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "gen/vocab/vocab.go")
	require.NoError(t, err)
	assert.Equal(t, "package vocab\n", string(data))
}
