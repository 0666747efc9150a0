// Package schema holds the generated vocabulary of a database: table
// names, column names, and unique constraints. A Vocabulary carries no
// runtime behavior of its own; the statement builders consult it to
// reject misspelled identifiers before any SQL is compiled. Vocabularies
// are normally produced offline by pgweave generate.
package schema

import (
	"fmt"
	"sort"
)

// Column describes one table column as seen by the statement builders.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	HasDefault bool
}

// Constraint names a unique constraint and the columns it covers.
type Constraint struct {
	Name    string
	Columns []string
}

// Table describes one table's vocabulary.
type Table struct {
	Name        string
	Schema      string
	Columns     []Column
	Constraints []Constraint
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Constraint looks up a unique constraint by name.
func (t Table) Constraint(name string) (Constraint, bool) {
	for _, c := range t.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return Constraint{}, false
}

// ColumnNames returns the table's column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Vocabulary is the registry of tables a builder validates against.
type Vocabulary struct {
	Schema string
	Tables []Table
}

// Table looks up a table by name.
func (v Vocabulary) Table(name string) (Table, bool) {
	for _, t := range v.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// TableNames returns all table names in lexicographic order.
func (v Vocabulary) TableNames() []string {
	names := make([]string, len(v.Tables))
	for i, t := range v.Tables {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

// Validate checks the vocabulary for duplicate or empty names. Generated
// vocabularies always pass; hand-written ones are checked once at
// builder construction.
func (v Vocabulary) Validate() error {
	seen := make(map[string]struct{}, len(v.Tables))
	for _, t := range v.Tables {
		if t.Name == "" {
			return fmt.Errorf("pgweave: vocabulary contains a table with no name")
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("pgweave: duplicate table %q in vocabulary", t.Name)
		}
		seen[t.Name] = struct{}{}
		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Table) validate() error {
	cols := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("pgweave: table %q contains a column with no name", t.Name)
		}
		if _, dup := cols[c.Name]; dup {
			return fmt.Errorf("pgweave: duplicate column %q on table %q", c.Name, t.Name)
		}
		cols[c.Name] = struct{}{}
	}
	for _, cons := range t.Constraints {
		if cons.Name == "" {
			return fmt.Errorf("pgweave: table %q contains a constraint with no name", t.Name)
		}
		for _, c := range cons.Columns {
			if _, ok := cols[c]; !ok {
				return fmt.Errorf("pgweave: constraint %q names unknown column %q on table %q", cons.Name, c, t.Name)
			}
		}
	}
	return nil
}
