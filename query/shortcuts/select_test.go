package shortcuts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/query/conditions"
	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

func TestSelectManyShape(t *testing.T) {
	s := Select("books", conditions.Where{"author_id": 1}, nil)
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (SELECT to_jsonb("books".*) AS result FROM "books" WHERE ("author_id" = $1)) AS "sq_books"`,
		c.Text)
	assert.Equal(t, []interface{}{1}, c.Values)
}

func TestSelectColumnsAndExtras(t *testing.T) {
	s := Select("books", fragment.All, &SelectOptions{
		Columns: []string{"id", "title"},
		Extras: map[string]*fragment.Fragment{
			"title_length": fragment.SQL("char_length(", fragment.Ident("books"), ".", fragment.Ident("title"), ")"),
		},
	})
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (SELECT jsonb_build_object($1::text, "books"."id", $2::text, "books"."title") || jsonb_build_object($3::text, char_length("books"."title")) AS result FROM "books") AS "sq_books"`,
		c.Text)
	assert.Equal(t, []interface{}{"id", "title", "title_length"}, c.Values)
}

func TestSelectOrderLimitOffset(t *testing.T) {
	limit, offset := 10, 20
	s := Select("books", fragment.All, &SelectOptions{
		Order:  []OrderSpec{{By: "title", Direction: "ASC", Nulls: "LAST"}, {By: "id", Direction: "DESC"}},
		Limit:  &limit,
		Offset: &offset,
	})
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (SELECT to_jsonb("books".*) AS result FROM "books" ORDER BY "title" ASC NULLS LAST, "id" DESC OFFSET $1 LIMIT $2) AS "sq_books"`,
		c.Text)
	assert.Equal(t, []interface{}{20, 10}, c.Values)
}

func TestSelectWithTies(t *testing.T) {
	limit := 3
	s := Select("scores", fragment.All, &SelectOptions{
		Order:    []OrderSpec{{By: "points", Direction: "DESC"}},
		Limit:    &limit,
		WithTies: true,
	})
	c := mustCompile(t, s)
	assert.Contains(t, c.Text, `ORDER BY "points" DESC FETCH FIRST $1 ROWS WITH TIES`)

	s = Select("scores", fragment.All, &SelectOptions{WithTies: true})
	require.Error(t, s.Err())
	assert.True(t, fragment.IsBuildError(s.Err()))
}

func TestWithTiesRejectedOnSingleRowModes(t *testing.T) {
	// The one-row variants always emit a plain LIMIT, so the option is an
	// input error rather than a silent no-op.
	limit := 1
	opts := &SelectOptions{
		Order:    []OrderSpec{{By: "points", Direction: "DESC"}},
		Limit:    &limit,
		WithTies: true,
	}

	one := SelectOne("scores", fragment.All, opts)
	require.Error(t, one.Err())
	assert.True(t, fragment.IsBuildError(one.Err()))
	assert.Contains(t, one.Err().Error(), "multi-row")

	exactly := SelectExactlyOne("scores", fragment.All, opts)
	require.Error(t, exactly.Err())
	assert.True(t, fragment.IsBuildError(exactly.Err()))
}

func TestSelectDistinct(t *testing.T) {
	s := Select("books", fragment.All, &SelectOptions{Distinct: true})
	c := mustCompile(t, s)
	assert.Contains(t, c.Text, `SELECT DISTINCT to_jsonb("books".*)`)

	s = Select("books", fragment.All, &SelectOptions{
		DistinctOn: []string{"author_id"},
		Order:      []OrderSpec{{By: "author_id", Direction: "ASC"}},
	})
	c = mustCompile(t, s)
	assert.Contains(t, c.Text, `SELECT DISTINCT ON ("author_id") to_jsonb("books".*)`)

	s = Select("books", fragment.All, &SelectOptions{Distinct: true, DistinctOn: []string{"author_id"}})
	require.Error(t, s.Err())
}

func TestSelectGroupByHaving(t *testing.T) {
	s := Select("books", fragment.All, &SelectOptions{
		Columns: []string{"author_id"},
		Extras:  map[string]*fragment.Fragment{"n": fragment.SQL("count(*)")},
		GroupBy: []string{"author_id"},
		Having:  fragment.SQL("count(*) > ", fragment.Param(1)),
	})
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (SELECT jsonb_build_object($1::text, "books"."author_id") || jsonb_build_object($2::text, count(*)) AS result FROM "books" GROUP BY "author_id" HAVING (count(*) > $3)) AS "sq_books"`,
		c.Text)
	assert.Equal(t, []interface{}{"author_id", "n", 1}, c.Values)
}

func TestSelectLockClause(t *testing.T) {
	s := SelectOne("jobs", conditions.Where{"state": "queued"}, &SelectOptions{
		Lock: &LockClause{Strength: LockUpdate, Wait: LockSkipLocked},
	})
	c := mustCompile(t, s)
	assert.Equal(t,
		`SELECT to_jsonb("jobs".*) AS result FROM "jobs" WHERE ("state" = $1) LIMIT $2 FOR UPDATE SKIP LOCKED`,
		c.Text)
	assert.Equal(t, []interface{}{"queued", 1}, c.Values)

	s2 := Select("jobs", fragment.All, &SelectOptions{
		Lock: &LockClause{Strength: LockShare, Of: []string{"jobs"}, Wait: LockNoWait},
	})
	c = mustCompile(t, s2)
	assert.Contains(t, c.Text, ` FOR SHARE OF "jobs" NOWAIT`)
}

func TestSelectAlias(t *testing.T) {
	s := Select("employees", fragment.All, &SelectOptions{Alias: "mgr"})
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT coalesce(jsonb_agg(result), '[]') AS result FROM (SELECT to_jsonb("mgr".*) AS result FROM "employees" AS "mgr") AS "sq_mgr"`,
		c.Text)
}

func TestSelectOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		spec OrderSpec
	}{
		{name: "bad direction", spec: OrderSpec{By: "id", Direction: "SIDEWAYS"}},
		{name: "missing direction", spec: OrderSpec{By: "id"}},
		{name: "bad nulls", spec: OrderSpec{By: "id", Direction: "ASC", Nulls: "MIDDLE"}},
		{name: "bad by type", spec: OrderSpec{By: 42, Direction: "ASC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Select("books", fragment.All, &SelectOptions{Order: []OrderSpec{tt.spec}})
			require.Error(t, s.Err())
			assert.True(t, fragment.IsBuildError(s.Err()))
		})
	}
}

func TestSelectOneLimitIsBoundParameter(t *testing.T) {
	s := SelectOne("authors", conditions.Where{"id": 1}, nil)
	c := mustCompile(t, s)

	assert.Equal(t,
		`SELECT to_jsonb("authors".*) AS result FROM "authors" WHERE ("id" = $1) LIMIT $2`,
		c.Text)
	assert.Equal(t, []interface{}{1, 1}, c.Values)
}

func TestSelectRunDecodesAggregatedPayload(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": []byte(`[{"id": 1}, {"id": 2}]`)}}}
	s := Select("books", fragment.All, nil)

	rows, err := s.Run(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.Row{"id": float64(1)}, rows[0])
}

func TestSelectRunEmptyPayload(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": []byte(`[]`)}}}
	s := Select("books", fragment.All, nil)

	rows, err := s.Run(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSelectOneRun(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": []byte(`{"id": 1}`)}}}
	s := SelectOne("authors", conditions.Where{"id": 1}, nil)

	row, ok, err := s.Run(context.Background(), q)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Row{"id": float64(1)}, row)

	q = &fakeQueryable{}
	row, ok, err = s.Run(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, row)
}

func TestSelectExactlyOneAbsenceIsRowCountError(t *testing.T) {
	q := &fakeQueryable{}
	s := SelectExactlyOne("authors", conditions.Where{"id": 1}, nil)

	_, err := s.Run(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooFewRows))

	var rce *RowCountError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, "authors", rce.Table)
	assert.Same(t, s, rce.Statement)
}

func TestSelectRunWrapsExecutorErrors(t *testing.T) {
	boom := errors.New("connection reset")
	q := &fakeQueryable{err: boom}
	s := Select("books", fragment.All, nil)

	_, err := s.Run(context.Background(), q)
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, qe.Query.Text, `FROM "books"`)
}

func TestSelectCompileIsDeterministic(t *testing.T) {
	build := func() fragment.Compiled {
		s := Select("books", conditions.Where{
			"a": 1, "b": 2, "c": 3, "d": 4, "e": 5,
		}, &SelectOptions{Columns: []string{"id", "title"}})
		c, err := s.Compile()
		require.NoError(t, err)
		return c
	}
	first := build()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, build())
	}
}
