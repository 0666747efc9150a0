package shortcuts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgweave/pgweave/query/fragment"
	"github.com/pgweave/pgweave/runtime/types"
)

// fakeQueryable records every executed statement and replays canned rows.
type fakeQueryable struct {
	rows  []types.Row
	err   error
	calls []fragment.Compiled
}

func (f *fakeQueryable) Query(ctx context.Context, text string, args []interface{}) ([]types.Row, error) {
	f.calls = append(f.calls, fragment.Compiled{Text: text, Values: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type compiler interface {
	Compile() (fragment.Compiled, error)
}

func mustCompile(t *testing.T, s compiler) fragment.Compiled {
	t.Helper()
	c, err := s.Compile()
	require.NoError(t, err)
	return c
}
