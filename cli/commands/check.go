package commands

import (
	"bytes"
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pgweave/pgweave/cli/internal/config"
	"github.com/pgweave/pgweave/cli/internal/ui"
	"github.com/pgweave/pgweave/generator/codegen"
	"github.com/pgweave/pgweave/generator/introspect"
	"github.com/pgweave/pgweave/schema"
)

// Statements rely on ON CONFLICT ... EXCLUDED, which needs 9.5; LATERAL
// itself landed in 9.3.
const minServerVersion = "9.5"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database connection and vocabulary freshness",
	Long: `Check connects to the configured database, verifies the server
version supports every statement form pgweave emits, lists the tables
the configured schema exposes, and reports whether the generated
vocabulary file is still in sync with the live schema.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("pgweave", "Connection check")

	conn, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	serverVersion, err := introspect.ServerVersion(cmd.Context(), conn)
	if err != nil {
		return err
	}
	ui.PrintKeyValue("Server version", serverVersion)
	if err := checkServerVersion(serverVersion); err != nil {
		ui.PrintError("%v", err)
		return err
	}

	tables, err := introspect.Tables(cmd.Context(), conn, cfg.Schema)
	if err != nil {
		return fmt.Errorf("introspection failed: %w", err)
	}
	if len(tables) == 0 {
		ui.PrintWarning("Schema %q contains no tables", cfg.Schema)
		return nil
	}

	out := make([][]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, []string{t.Name, fmt.Sprint(len(t.Columns)), fmt.Sprint(len(t.Constraints))})
	}
	ui.PrintTable([]string{"Table", "Columns", "Unique constraints"}, out)
	ui.PrintSuccess("Schema %q: %d tables", cfg.Schema, len(tables))

	return checkDrift(tables)
}

// checkServerVersion rejects servers too old for the emitted SQL. Beta
// suffixes like "17beta1" are truncated to their numeric prefix before
// comparison; a fully unparseable version is reported, not guessed at.
func checkServerVersion(server string) error {
	v, err := goversion.NewVersion(numericPrefix(server))
	if err != nil {
		return fmt.Errorf("cannot parse server version %q: %w", server, err)
	}
	min := goversion.Must(goversion.NewVersion(minServerVersion))
	if v.LessThan(min) {
		return fmt.Errorf("server version %s is below the minimum %s (ON CONFLICT support)", server, minServerVersion)
	}
	return nil
}

// numericPrefix trims a server version down to its leading digits and
// dots: "17beta1" becomes "17", "16.4 (Debian)" becomes "16.4".
func numericPrefix(server string) string {
	end := 0
	for end < len(server) && (server[end] == '.' || (server[end] >= '0' && server[end] <= '9')) {
		end++
	}
	return strings.TrimSuffix(server[:end], ".")
}

// checkDrift compares the generated vocabulary file with what the live
// schema would generate now. Generation is deterministic, so byte
// equality means the file is current.
func checkDrift(tables []schema.Table) error {
	exists, err := afero.Exists(config.AppFs, cfg.OutputPath)
	if err != nil || !exists {
		ui.PrintInfo("No vocabulary file at %s yet; run `pgweave generate`", cfg.OutputPath)
		return nil
	}

	current, err := afero.ReadFile(config.AppFs, cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.OutputPath, err)
	}
	fresh, err := codegen.File(cfg.Package, cfg.Schema, tables)
	if err != nil {
		return err
	}
	if bytes.Equal(current, fresh) {
		ui.PrintSuccess("Vocabulary %s is up to date", cfg.OutputPath)
		return nil
	}
	ui.PrintWarning("Vocabulary %s is out of date; run `pgweave generate`", cfg.OutputPath)
	return nil
}
