// Package generator wires live introspection and source emission into
// the one-shot vocabulary generation flow behind pgweave generate.
package generator

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pgweave/pgweave/generator/codegen"
	"github.com/pgweave/pgweave/generator/introspect"
	"github.com/pgweave/pgweave/internal/debug"
	"github.com/pgweave/pgweave/schema"
)

// Options control one generation run.
type Options struct {
	// Schema is the database schema to introspect.
	Schema string

	// Package is the package name of the generated file.
	Package string

	// Out is the path the generated file is written to.
	Out string
}

func (o Options) withDefaults() Options {
	if o.Schema == "" {
		o.Schema = "public"
	}
	if o.Package == "" {
		o.Package = "vocab"
	}
	if o.Out == "" {
		o.Out = "vocab/vocab.go"
	}
	return o
}

// Generator produces the vocabulary source file for one schema.
type Generator struct {
	q  introspect.Queryable
	fs afero.Fs
}

// New creates a generator reading from q and writing through fs.
func New(q introspect.Queryable, fs afero.Fs) *Generator {
	return &Generator{q: q, fs: fs}
}

// Generate introspects the schema, renders the vocabulary file, and
// writes it. The introspected vocabulary is returned so callers can
// report what was found.
func (g *Generator) Generate(ctx context.Context, opts Options) (schema.Vocabulary, error) {
	opts = opts.withDefaults()
	log := debug.Component("generator")
	log.Debug("starting generation", "schema", opts.Schema, "package", opts.Package, "out", opts.Out)

	vocab, err := introspect.Vocabulary(ctx, g.q, opts.Schema)
	if err != nil {
		return schema.Vocabulary{}, err
	}
	if len(vocab.Tables) == 0 {
		return schema.Vocabulary{}, fmt.Errorf("pgweave: schema %q contains no tables", opts.Schema)
	}
	if err := vocab.Validate(); err != nil {
		return schema.Vocabulary{}, err
	}
	log.Debug("schema introspected", "tables", len(vocab.Tables))

	src, err := codegen.File(opts.Package, opts.Schema, vocab.Tables)
	if err != nil {
		return schema.Vocabulary{}, err
	}
	if err := codegen.WriteFile(g.fs, opts.Out, src); err != nil {
		return schema.Vocabulary{}, err
	}
	log.Debug("vocabulary written", "out", opts.Out, "bytes", len(src))

	return vocab, nil
}
