package schematika

import (
	"fmt"

	"github.com/schematika-lang/schematika/ascii"
)

// dumpToken classifies a piece of structural-dump text for themed
// rendering — the role grammar_ast_printer.go's AstFormatToken and
// value.go's FormatToken play for the teacher's own tree dumps, here
// keyed to Schematika's own node vocabulary (keywords, operand names,
// literals, source spans) instead of grammar/parse-value kinds.
type dumpToken int

const (
	dumpPlain dumpToken = iota
	dumpKeyword
	dumpName
	dumpLiteral
	dumpSpan
)

var dumpTheme = map[dumpToken]string{
	dumpPlain:   "",
	dumpKeyword: ascii.DefaultTheme.Operator,
	dumpName:    ascii.DefaultTheme.Operand,
	dumpLiteral: ascii.DefaultTheme.Literal,
	dumpSpan:    ascii.DefaultTheme.Span,
}

// astDumper walks the shared GC heap — AST nodes and runtime values
// alike address through the same Ref — producing an indented
// structural dump. Built directly on the teacher's generic
// treePrinter the way grammarPrinter (grammar_ast_printer.go) and
// TreePrinter (value.go) each wrap it for their own node kind: embed
// it, supply a FormatFunc closing over a theme map, add the
// node-walking behavior on top.
type astDumper struct {
	*treePrinter[dumpToken]
	gc    *Collector
	input []byte
}

func newASTDumper(gc *Collector, input []byte, color bool) *astDumper {
	format := func(s string, tok dumpToken) string {
		theme := dumpTheme[tok]
		if !color || theme == "" {
			return s
		}
		return theme + s + ascii.Reset
	}
	return &astDumper{treePrinter: newTreePrinter(format), gc: gc, input: input}
}

// DumpTree renders root (an AST node or a runtime value) as an
// indented structural dump — the debug view a REPL's `:tree` command
// or a failing-test diff wants, as opposed to PrintValue's
// single-line source-like rendering. color enables the same ANSI
// theming errors.go's Report applies to diagnostics.
func DumpTree(root Ref, c *Collector, input []byte, color bool) string {
	d := newASTDumper(c, input, color)
	d.dump(root)
	return d.output.String()
}

// field writes one labeled child on its own line, then dumps it
// indented beneath — the teacher's box-drawing convention collapses
// here to a plain two-space indent since Schematika's fields are
// named ("fn:", "test:"), not a sibling list needing "├──"/"└──"
// connectors; those are reserved for the actual sibling lists below
// (Apply's variadic Args, Sequence's Items).
func (d *astDumper) field(label string, r Ref) {
	d.pwritel(d.format(label, dumpKeyword))
	d.indent("  ")
	d.dump(r)
	d.unindent()
}

// siblings dumps a list of child nodes with box-drawing connectors,
// grounded on grammarPrinter.VisitGrammarNode's "└── "/"├── " loop.
func (d *astDumper) siblings(items []Ref) {
	for i, it := range items {
		last := i == len(items)-1
		if last {
			d.pwrite("└── ")
			d.indent("    ")
		} else {
			d.pwrite("├── ")
			d.indent("│   ")
		}
		d.dump(it)
		d.unindent()
	}
}

func (d *astDumper) dump(r Ref) {
	if r.IsNil() {
		d.pwritel(d.format("nil", dumpPlain))
		return
	}
	switch n := d.gc.Deref(r).(type) {
	case *ConstantExpr:
		v := gcDeref(d.gc, n.Value)
		lit := escapeLiteral(PrintValue(v, d.gc, d.input))
		d.pwritel(d.format("Constant ", dumpKeyword) + d.format(lit, dumpLiteral) + d.spanSuffix(n.Span))

	case *VariableExpr:
		name := d.format(n.Name, dumpName)
		loc := d.format(fmt.Sprintf("(link=%d slot=%d)", n.ILink, n.JSlot), dumpPlain)
		d.pwritel(d.format("Variable ", dumpKeyword) + name + " " + loc + d.spanSuffix(n.Span))

	case *LambdaExpr:
		d.pwritel(d.format("Lambda ", dumpKeyword) + d.format(formalList(n.Formals), dumpName) + d.spanSuffix(n.Span))
		d.field("body:", n.Body)

	case *ApplyExpr:
		d.pwritel(d.format("Apply", dumpKeyword) + d.spanSuffix(n.Span))
		d.indent("  ")
		d.field("fn:", n.Fn)
		if len(n.Args) > 0 {
			d.pwritel(d.format("args:", dumpKeyword))
			d.siblings(n.Args)
		}
		d.unindent()

	case *IfExpr:
		d.pwritel(d.format("If", dumpKeyword) + d.spanSuffix(n.Span))
		d.indent("  ")
		d.field("test:", n.Test)
		d.field("then:", n.Then)
		d.field("else:", n.Else)
		d.unindent()

	case *SequenceExpr:
		d.pwritel(d.format("Sequence", dumpKeyword) + d.spanSuffix(n.Span))
		d.indent("  ")
		d.siblings(n.Items)
		d.unindent()

	case *DefineExpr:
		d.pwritel(d.format("Define ", dumpKeyword) + d.format(n.Name, dumpName) + d.spanSuffix(n.Span))
		d.field("rhs:", n.Rhs)

	case *ArrayObj:
		d.pwritel(d.format("Array", dumpKeyword))
		d.indent("  ")
		d.siblings(n.Items)
		d.unindent()

	case *ClosureObj:
		d.pwritel(d.format("Closure", dumpKeyword))
		d.field("lambda:", n.Lambda)

	default:
		d.pwritel(d.format(PrintValue(n, d.gc, d.input), dumpLiteral))
	}
}

func (d *astDumper) spanSuffix(sp Span) string {
	return " " + d.format(sp.String(), dumpSpan)
}

func formalList(formals []Formal) string {
	s := "("
	for i, f := range formals {
		if i > 0 {
			s += ", "
		}
		s += f.Name
		if f.Type != "" {
			s += ":" + f.Type
		}
	}
	return s + ")"
}
