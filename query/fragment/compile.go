package fragment

import (
	"fmt"
	"strings"
)

// Compiled is the executable form of a Fragment: statement text containing
// placeholders $1..$n in strict left-to-right correspondence with Values.
type Compiled struct {
	Text   string
	Values []interface{}
}

// Context carries compilation state: the running placeholder index, the
// stack of active lateral parent aliases, and the column scope Self
// resolves against. A nil Column scope and an empty Parents stack are
// representable, checkable states; there is no ambient fallback.
type Context struct {
	Index   int
	Parents []string
	Column  string
}

// NewContext returns a context starting the placeholder sequence at $1.
func NewContext() *Context {
	return &Context{Index: 1}
}

// Compile renders the fragment with a fresh context. Two structurally
// identical trees always compile to identical output.
func (f *Fragment) Compile() (Compiled, error) {
	return f.CompileIn(NewContext())
}

// CompileIn renders the fragment, continuing ctx's placeholder sequence.
// The context is advanced in place, so sibling fragments compiled in order
// share one contiguous $n sequence.
func (f *Fragment) CompileIn(ctx *Context) (Compiled, error) {
	var text strings.Builder
	values := make([]interface{}, 0, 8)
	if err := f.render(&text, &values, ctx); err != nil {
		return Compiled{}, err
	}
	return Compiled{Text: text.String(), Values: values}, nil
}

// render walks the segment list depth-first, left to right.
func (f *Fragment) render(text *strings.Builder, values *[]interface{}, ctx *Context) error {
	for _, item := range f.items {
		if err := renderItem(item, text, values, ctx); err != nil {
			return err
		}
	}
	return nil
}

func renderItem(item interface{}, text *strings.Builder, values *[]interface{}, ctx *Context) error {
	switch v := item.(type) {
	case string:
		text.WriteString(v)

	case *Fragment:
		if v == nil {
			return &BuildError{Op: "compile", Message: "nil fragment interpolation"}
		}
		return v.render(text, values, ctx)

	case Parameter:
		fmt.Fprintf(text, "$%d", ctx.Index)
		if v.Cast != "" {
			text.WriteString("::" + v.Cast)
		}
		*values = append(*values, v.Value)
		ctx.Index++

	case Ident:
		text.WriteString(QuoteIdent(string(v)))

	case Raw:
		text.WriteString(string(v))

	case ColumnNames:
		text.WriteByte('(')
		for i, c := range v {
			if i > 0 {
				text.WriteString(", ")
			}
			text.WriteString(QuoteIdent(c))
		}
		text.WriteByte(')')

	case ColumnValues:
		for i, cv := range v {
			if i > 0 {
				text.WriteString(", ")
			}
			if err := renderValue(cv, text, values, ctx); err != nil {
				return err
			}
		}

	case ParentColumn:
		if len(ctx.Parents) == 0 {
			return &ContextError{Ref: string(v), Scope: ScopeLateral}
		}
		parent := ctx.Parents[len(ctx.Parents)-1]
		text.WriteString(QuoteIdent(parent) + "." + QuoteIdent(string(v)))

	case Sentinel:
		return renderSentinel(v, text, ctx)

	case deferredError:
		return v.err

	case parentScope:
		ctx.Parents = append(ctx.Parents, v.alias)
		err := v.sub.render(text, values, ctx)
		ctx.Parents = ctx.Parents[:len(ctx.Parents)-1]
		return err

	case columnScope:
		prev := ctx.Column
		ctx.Column = v.column
		err := v.sub.render(text, values, ctx)
		ctx.Column = prev
		return err

	default:
		return &BuildError{Op: "compile", Message: fmt.Sprintf("unsupported interpolation type %T", item)}
	}
	return nil
}

// renderValue emits a ColumnValues entry: expression-typed entries pass
// through, everything else becomes a bound parameter.
func renderValue(cv interface{}, text *strings.Builder, values *[]interface{}, ctx *Context) error {
	switch cv.(type) {
	case Parameter, *Fragment, Sentinel, Raw, ParentColumn:
		return renderItem(cv, text, values, ctx)
	default:
		return renderItem(Parameter{Value: cv}, text, values, ctx)
	}
}

func renderSentinel(s Sentinel, text *strings.Builder, ctx *Context) error {
	switch s {
	case Default:
		text.WriteString("DEFAULT")
	case Self:
		if ctx.Column == "" {
			return &ContextError{Ref: "self", Scope: ScopeColumn}
		}
		text.WriteString(QuoteIdent(ctx.Column))
	case All:
		return &BuildError{Op: "compile", Message: "the all marker is only valid in a filter position"}
	default:
		return &BuildError{Op: "compile", Message: fmt.Sprintf("unknown sentinel %d", int(s))}
	}
	return nil
}

// QuoteIdent renders an identifier double-quoted with embedded quotes
// doubled, safe for reserved words and case-sensitive names.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
