// Package codegen renders introspected vocabularies as Go source.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/pgweave/pgweave/schema"
)

const vocabModule = "github.com/pgweave/pgweave/schema"

// File renders a single Go source file declaring the vocabulary of one
// schema: table name constants, unique-constraint name constants,
// per-table column-name slices, and the assembled schema.Vocabulary
// value. The output is gofmt-clean and stable for a given input.
func File(pkg string, schemaName string, tables []schema.Table) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("pgweave: invalid package name %q", pkg)
	}

	names := nameSet{}
	var b bytes.Buffer

	fmt.Fprintf(&b, "// Code generated by pgweave. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "import %q\n\n", vocabModule)

	if len(tables) > 0 {
		b.WriteString("// Table names.\nconst (\n")
		for _, t := range tables {
			fmt.Fprintf(&b, "\t%s = %q\n", names.claim(goName(t.Name)+"Table"), t.Name)
		}
		b.WriteString(")\n\n")
	}

	var constrained bool
	for _, t := range tables {
		if len(t.Constraints) > 0 {
			constrained = true
		}
	}
	if constrained {
		b.WriteString("// Unique constraint names.\nconst (\n")
		for _, t := range tables {
			for _, c := range t.Constraints {
				fmt.Fprintf(&b, "\t%s = %q\n", names.claim(goName(c.Name)), c.Name)
			}
		}
		b.WriteString(")\n\n")
	}

	for _, t := range tables {
		name := names.claim(goName(t.Name) + "Columns")
		fmt.Fprintf(&b, "// %s lists the columns of %q in declaration order.\n", name, t.Name)
		fmt.Fprintf(&b, "var %s = %s\n\n", name, stringSlice(t.ColumnNames()))
	}

	vocab := names.claim("Vocabulary")
	fmt.Fprintf(&b, "// %s is the generated registry for schema %q.\n", vocab, schemaName)
	fmt.Fprintf(&b, "var %s = schema.Vocabulary{\n", vocab)
	fmt.Fprintf(&b, "\tSchema: %q,\n", schemaName)
	if len(tables) > 0 {
		b.WriteString("\tTables: []schema.Table{\n")
		for _, t := range tables {
			writeTable(&b, t)
		}
		b.WriteString("\t},\n")
	}
	b.WriteString("}\n")

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("pgweave: format generated vocabulary: %w", err)
	}
	return src, nil
}

// WriteFile persists a generated file through fs, creating parent
// directories as needed.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("pgweave: create output directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("pgweave: write %s: %w", path, err)
	}
	return nil
}

func writeTable(b *bytes.Buffer, t schema.Table) {
	b.WriteString("\t\t{\n")
	fmt.Fprintf(b, "\t\t\tName: %q,\n", t.Name)
	fmt.Fprintf(b, "\t\t\tSchema: %q,\n", t.Schema)
	if len(t.Columns) > 0 {
		b.WriteString("\t\t\tColumns: []schema.Column{\n")
		for _, c := range t.Columns {
			fmt.Fprintf(b, "\t\t\t\t{Name: %q, Type: %q", c.Name, c.Type)
			if c.Nullable {
				b.WriteString(", Nullable: true")
			}
			if c.HasDefault {
				b.WriteString(", HasDefault: true")
			}
			b.WriteString("},\n")
		}
		b.WriteString("\t\t\t},\n")
	}
	if len(t.Constraints) > 0 {
		b.WriteString("\t\t\tConstraints: []schema.Constraint{\n")
		for _, c := range t.Constraints {
			fmt.Fprintf(b, "\t\t\t\t{Name: %q, Columns: %s},\n", c.Name, stringSlice(c.Columns))
		}
		b.WriteString("\t\t\t},\n")
	}
	b.WriteString("\t\t},\n")
}

func stringSlice(items []string) string {
	var b strings.Builder
	b.WriteString("[]string{")
	for i, s := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", s)
	}
	b.WriteString("}")
	return b.String()
}

// goName converts a database identifier into an exported Go name.
func goName(s string) string {
	var b strings.Builder
	up := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '$':
			up = true
		case up:
			b.WriteRune(unicode.ToUpper(r))
			up = false
		default:
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "X" + name
	}
	return name
}

// nameSet tracks claimed identifiers so distinct database names never
// collapse into one Go name.
type nameSet map[string]struct{}

func (s nameSet) claim(name string) string {
	candidate := name
	for i := 2; ; i++ {
		if _, taken := s[candidate]; !taken {
			s[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", name, i)
	}
}
