package commands

import (
	"github.com/spf13/cobra"

	"github.com/pgweave/pgweave/cli/internal/ui"
)

const usageDoc = `# pgweave

pgweave builds parameterized PostgreSQL statements from declarative
descriptions and transforms the raw rows back into the shape the caller
asked for. The ` + "`pgweave`" + ` binary maintains the *vocabulary*: the table,
column and unique-constraint names the statement builders are checked
against.

## Workflow

1. ` + "`pgweave init`" + ` — write ` + "`.pgweave.yaml`" + ` and seed ` + "`.env`" + ` with the
   database URL.
2. ` + "`pgweave check`" + ` — confirm the connection string and schema name.
3. ` + "`pgweave generate`" + ` — introspect the schema and write the vocabulary
   file. Re-run after every migration; output is deterministic.

## Using the generated vocabulary

` + "```go" + `
builder, err := shortcuts.NewBuilder(vocab.Vocabulary)

stmt := builder.Select(vocab.UsersTable, conditions.Where{
    "active": conditions.Equals(true),
}, &shortcuts.SelectOptions{
    Order: []shortcuts.OrderSpec{{By: "created_at", Direction: "DESC"}},
})
rows, err = stmt.Run(ctx, client)
` + "```" + `

## Configuration

Settings resolve in ascending priority: built-in defaults,
` + "`.pgweave.yaml`" + ` (current directory, ` + "`$HOME`" + `, or
` + "`$HOME/.config/pgweave`" + `), ` + "`PGWEAVE_*`" + ` environment variables, then
` + "`DATABASE_URL`" + ` from the environment, ` + "`.env`" + `, or ` + "`.env.local`" + `.

| Key | Default | Meaning |
| --- | --- | --- |
| ` + "`schema`" + ` | ` + "`public`" + ` | schema to introspect |
| ` + "`output_path`" + ` | ` + "`vocab/vocab.go`" + ` | generated file path |
| ` + "`package`" + ` | ` + "`vocab`" + ` | generated package name |

Telemetry is off unless ` + "`PGWEAVE_TELEMETRY_ENDPOINT`" + ` is set.
`

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the pgweave usage guide",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ui.PrintMarkdown(usageDoc)
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}
