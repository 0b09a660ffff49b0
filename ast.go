package schematika

import "fmt"

// Type is a reference into the type table. Two declared types are
// equal iff they are the same *Type — pointer equality, per spec.md
// §3's invariant on AST types.
type Type struct{ Name string }

// TypeTable interns type names to a single canonical *Type, the way
// the global symtab interns identifier text.
type TypeTable struct {
	byName map[string]*Type
}

func NewTypeTable() *TypeTable {
	t := &TypeTable{byName: map[string]*Type{}}
	for _, n := range []string{"bool", "i64", "f64", "string", "array"} {
		t.byName[n] = &Type{Name: n}
	}
	return t
}

// Intern returns the canonical *Type for name, creating and caching
// one if this is the first time name has been seen. An empty name
// means "no declared type" and always returns nil.
func (t *TypeTable) Intern(name string) *Type {
	if name == "" {
		return nil
	}
	if ty, ok := t.byName[name]; ok {
		return ty
	}
	ty := &Type{Name: name}
	t.byName[name] = ty
	return ty
}

func (ty *Type) String() string {
	if ty == nil {
		return ""
	}
	return ty.Name
}

// Formal is one declared lambda parameter: a name plus an optional
// declared type.
type Formal struct {
	Name string
	Type string // rendered name; the *Type behind it is looked up via TypeTable when needed
}

// Expr is implemented by every AST node representation. It is the
// "Expression" facet of spec.md §4.2, but — because the set of node
// kinds is closed and fixed by the grammar — represented as a Go sum
// type (type switch in eval.go/printer.go) rather than a registry
// lookup, per the design notes' guidance on closed variants.
type Expr interface {
	GCObject
	exprSpan() Span
}

// ConstantExpr boxes a literal value parsed at compile time (bool, i64,
// f64 or string).
type ConstantExpr struct {
	Span  Span
	Value Ref // a BoolObj/IntObj/FloatObj/StringObj living in the GC heap
}

func (e *ConstantExpr) TypeTag() string  { return "ast.Constant" }
func (e *ConstantExpr) ShallowSize() int { return 24 }
func (e *ConstantExpr) ForwardChildren(c *Collector) {
	e.Value = c.Forward(e.Value)
}
func (e *ConstantExpr) exprSpan() Span { return e.Span }

// VariableExpr is a resolved reference to a binding: ILink counts how
// many enclosing lambda frames to ascend (-1 means "the global
// symtab"); JSlot is the slot index within that frame.
type VariableExpr struct {
	Span  Span
	Name  string
	ILink int
	JSlot int
}

func (e *VariableExpr) TypeTag() string             { return "ast.Variable" }
func (e *VariableExpr) ShallowSize() int            { return 32 + len(e.Name) }
func (e *VariableExpr) ForwardChildren(c *Collector) {}
func (e *VariableExpr) exprSpan() Span              { return e.Span }

// LambdaExpr is a function literal: its formals, declared return type
// (if any), the local symtab captured for lexical resolution of its
// body, and the body itself.
type LambdaExpr struct {
	Span       Span
	Formals    []Formal
	ReturnType string
	Locals     *LocalSymtab
	Body       Ref // a Sequence or single expression
}

func (e *LambdaExpr) TypeTag() string  { return "ast.Lambda" }
func (e *LambdaExpr) ShallowSize() int { return 48 + 24*len(e.Formals) }
func (e *LambdaExpr) ForwardChildren(c *Collector) {
	e.Body = c.Forward(e.Body)
}
func (e *LambdaExpr) exprSpan() Span { return e.Span }
func (e *LambdaExpr) Arity() int     { return len(e.Formals) }

// ApplyExpr applies Fn to an ordered list of argument expressions.
type ApplyExpr struct {
	Span Span
	Fn   Ref
	Args []Ref
}

func (e *ApplyExpr) TypeTag() string  { return "ast.Apply" }
func (e *ApplyExpr) ShallowSize() int { return 32 + 8*len(e.Args) }
func (e *ApplyExpr) ForwardChildren(c *Collector) {
	e.Fn = c.Forward(e.Fn)
	for i := range e.Args {
		e.Args[i] = c.Forward(e.Args[i])
	}
}
func (e *ApplyExpr) exprSpan() Span { return e.Span }

// IfExpr is the conditional; both the keyword form (if (t) then a else
// b) and the ternary form (t ? a : b) parse to this same node.
type IfExpr struct {
	Span             Span
	Test, Then, Else Ref
}

func (e *IfExpr) TypeTag() string  { return "ast.If" }
func (e *IfExpr) ShallowSize() int { return 40 }
func (e *IfExpr) ForwardChildren(c *Collector) {
	e.Test = c.Forward(e.Test)
	e.Then = c.Forward(e.Then)
	e.Else = c.Forward(e.Else)
}
func (e *IfExpr) exprSpan() Span { return e.Span }

// SequenceExpr is an ordered, non-empty-or-empty list of
// subexpressions; its value is its last element's (or unit, if
// empty — an empty top-level `;` is a legal no-op per spec.md §8).
type SequenceExpr struct {
	Span  Span
	Items []Ref
}

func (e *SequenceExpr) TypeTag() string  { return "ast.Sequence" }
func (e *SequenceExpr) ShallowSize() int { return 24 + 8*len(e.Items) }
func (e *SequenceExpr) ForwardChildren(c *Collector) {
	for i := range e.Items {
		e.Items[i] = c.Forward(e.Items[i])
	}
}
func (e *SequenceExpr) exprSpan() Span { return e.Span }

// DefineExpr installs Rhs's value into the global symtab slot named
// Name. The parser admits `def` as a toplevel form and as a statement
// inside a `{ ... }` block, never as an arbitrary subexpression; in
// both places it installs into a global slot.
type DefineExpr struct {
	Span       Span
	Name       string
	DeclType   string
	Rhs        Ref
	GlobalSlot int
}

func (e *DefineExpr) TypeTag() string  { return "ast.Define" }
func (e *DefineExpr) ShallowSize() int { return 40 + len(e.Name) }
func (e *DefineExpr) ForwardChildren(c *Collector) {
	e.Rhs = c.Forward(e.Rhs)
}
func (e *DefineExpr) exprSpan() Span { return e.Span }

func init() {
	registerPrintable("ast.Constant", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*ConstantExpr)
		return PrintValue(gcDeref(c, n.Value), c, input)
	})
	registerPrintable("ast.Variable", func(obj GCObject, c *Collector, input []byte) string {
		return obj.(*VariableExpr).Name
	})
	registerPrintable("ast.Lambda", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*LambdaExpr)
		s := "lambda ("
		for i, f := range n.Formals {
			if i > 0 {
				s += ", "
			}
			s += f.Name
			if f.Type != "" {
				s += ":" + f.Type
			}
		}
		s += ")"
		if n.ReturnType != "" {
			s += " -> " + n.ReturnType
		}
		return s + " { " + PrintValue(gcDeref(c, n.Body), c, input) + " }"
	})
	registerPrintable("ast.Apply", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*ApplyExpr)
		s := PrintValue(gcDeref(c, n.Fn), c, input) + "("
		for i, a := range n.Args {
			if i > 0 {
				s += ", "
			}
			s += PrintValue(gcDeref(c, a), c, input)
		}
		return s + ")"
	})
	registerPrintable("ast.If", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*IfExpr)
		return fmt.Sprintf("if (%s) then %s else %s",
			PrintValue(gcDeref(c, n.Test), c, input),
			PrintValue(gcDeref(c, n.Then), c, input),
			PrintValue(gcDeref(c, n.Else), c, input))
	})
	registerPrintable("ast.Sequence", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*SequenceExpr)
		s := "{ "
		for i, it := range n.Items {
			if i > 0 {
				s += "; "
			}
			s += PrintValue(gcDeref(c, it), c, input)
		}
		return s + "; }"
	})
	registerPrintable("ast.Define", func(obj GCObject, c *Collector, input []byte) string {
		n := obj.(*DefineExpr)
		s := "def " + n.Name
		if n.DeclType != "" {
			s += ":" + n.DeclType
		}
		return s + " = " + PrintValue(gcDeref(c, n.Rhs), c, input) + ";"
	})
}
