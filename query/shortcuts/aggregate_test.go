package shortcuts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/query/conditions"
	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

func TestCountShapes(t *testing.T) {
	c := mustCompile(t, Count("books", conditions.Where{"author_id": 1}, nil))
	assert.Equal(t, `SELECT count(*) AS result FROM "books" WHERE ("author_id" = $1)`, c.Text)
	assert.Equal(t, []interface{}{1}, c.Values)

	c = mustCompile(t, Count("books", fragment.All, &CountOptions{Column: "author_id"}))
	assert.Equal(t, `SELECT count("books"."author_id") AS result FROM "books"`, c.Text)

	c = mustCompile(t, Count("books", fragment.All, &CountOptions{Column: "author_id", Distinct: true}))
	assert.Equal(t, `SELECT count(DISTINCT "books"."author_id") AS result FROM "books"`, c.Text)

	s := Count("books", fragment.All, &CountOptions{Distinct: true})
	require.Error(t, s.Err())
	assert.True(t, fragment.IsBuildError(s.Err()))
}

func TestNumericAggregateShapes(t *testing.T) {
	c := mustCompile(t, Sum("orders", "amount", conditions.Where{"status": "paid"}, nil))
	assert.Equal(t, `SELECT to_jsonb(sum("orders"."amount")) AS result FROM "orders" WHERE ("status" = $1)`, c.Text)
	assert.Equal(t, []interface{}{"paid"}, c.Values)

	c = mustCompile(t, Avg("orders", "amount", fragment.All, &AggregateOptions{Distinct: true}))
	assert.Equal(t, `SELECT to_jsonb(avg(DISTINCT "orders"."amount")) AS result FROM "orders"`, c.Text)

	c = mustCompile(t, Min("orders", "placed_at", fragment.All, &AggregateOptions{Alias: "o"}))
	assert.Equal(t, `SELECT to_jsonb(min("o"."placed_at")) AS result FROM "orders" AS "o"`, c.Text)

	c = mustCompile(t, Max("orders", "amount", fragment.All, nil))
	assert.Equal(t, `SELECT to_jsonb(max("orders"."amount")) AS result FROM "orders"`, c.Text)

	s := Sum("orders", "", fragment.All, nil)
	require.Error(t, s.Err())
}

func TestCountRunCoercion(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": int64(42)}}}
	n, err := Count("books", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	// Counts past float64 precision arrive as strings.
	q = &fakeQueryable{rows: []types.Row{{"result": "9007199254740993"}}}
	n, err = Count("books", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), n)
}

func TestNumericAggregateNullIsZero(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": nil}}}
	v, err := Sum("orders", "amount", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v)

	q = &fakeQueryable{rows: []types.Row{{"result": []byte("123.5")}}}
	v, err = Avg("orders", "amount", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 123.5, v)
}

func TestScalarAggregateRun(t *testing.T) {
	q := &fakeQueryable{rows: []types.Row{{"result": "aardvark"}}}
	v, err := Min("words", "text", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "aardvark", v)

	q = &fakeQueryable{rows: []types.Row{{"result": nil}}}
	v, err = Max("words", "text", fragment.All, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Nil(t, v)
}
