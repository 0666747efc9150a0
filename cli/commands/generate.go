package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgweave/pgweave/cli/internal/config"
	"github.com/pgweave/pgweave/cli/internal/ui"
	"github.com/pgweave/pgweave/generator"
)

var (
	generateOut     string
	generatePackage string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the vocabulary file from a live database",
	Long: `Generate introspects the configured schema and writes the table,
column and unique-constraint vocabulary as a Go source file. Run it
again after every schema migration; the output is deterministic, so an
unchanged schema produces an unchanged file.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "output path for the generated file")
	generateCmd.Flags().StringVarP(&generatePackage, "package", "p", "", "package name of the generated file")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("pgweave", "Generate vocabulary")

	opts := generator.Options{
		Schema:  cfg.Schema,
		Package: cfg.Package,
		Out:     cfg.OutputPath,
	}
	if generateOut != "" {
		opts.Out = generateOut
	}
	if generatePackage != "" {
		opts.Package = generatePackage
	}

	spinner, _ := ui.PrintSpinner("Introspecting schema " + opts.Schema + "...")

	conn, err := connect(cmd.Context())
	if err != nil {
		spinner.Fail()
		return err
	}
	defer conn.Close()

	vocab, err := generator.New(conn, config.AppFs).Generate(cmd.Context(), opts)
	if err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()

	rows := make([][]string, 0, len(vocab.Tables))
	for _, t := range vocab.Tables {
		rows = append(rows, []string{t.Name, fmt.Sprint(len(t.Columns)), fmt.Sprint(len(t.Constraints))})
	}
	ui.PrintTable([]string{"Table", "Columns", "Unique constraints"}, rows)

	ui.PrintSuccess("Wrote %s (%d tables)", opts.Out, len(vocab.Tables))
	return nil
}
