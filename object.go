package schematika

import (
	"fmt"
	"strconv"
)

// Value is the uniform representation every Schematika runtime value
// has once the parser's static types are erased: a boxed, tagged,
// GC-managed object. Concrete representations (BoolObj, IntObj,
// FloatObj, StringObj, ArrayObj, ClosureObj) all implement GCObject so
// the collector can manage them uniformly, and register Printable and
// (for the numeric ones) Numeric facets so open dispatch works without
// a central type switch growing without bound.
type Value = GCObject

// ---- Bool ----

type BoolObj struct{ V bool }

func (o *BoolObj) TypeTag() string             { return "bool" }
func (o *BoolObj) ShallowSize() int            { return 16 }
func (o *BoolObj) ForwardChildren(c *Collector) {}

// ---- Int ----

type IntObj struct{ V int64 }

func (o *IntObj) TypeTag() string             { return "i64" }
func (o *IntObj) ShallowSize() int            { return 16 }
func (o *IntObj) ForwardChildren(c *Collector) {}

// ---- Float ----

type FloatObj struct{ V float64 }

func (o *FloatObj) TypeTag() string             { return "f64" }
func (o *FloatObj) ShallowSize() int            { return 16 }
func (o *FloatObj) ForwardChildren(c *Collector) {}

// ---- String ----

type StringObj struct{ V string }

func (o *StringObj) TypeTag() string             { return "string" }
func (o *StringObj) ShallowSize() int            { return 16 + len(o.V) }
func (o *StringObj) ForwardChildren(c *Collector) {}

// ---- Array ----

// ArrayObj is a fixed-length, zero-indexed sequence of values, with a
// registered printer. The parser has no array-literal syntax, so no
// Schematika source text produces one.
type ArrayObj struct{ Items []Ref }

func (o *ArrayObj) TypeTag() string  { return "array" }
func (o *ArrayObj) ShallowSize() int { return 16 + 8*len(o.Items) }
func (o *ArrayObj) ForwardChildren(c *Collector) {
	for i := range o.Items {
		o.Items[i] = c.Forward(o.Items[i])
	}
}

// ---- Environment ----

// EnvObj is a runtime lexical environment: a parent link plus the
// value array for one activation frame, matching spec.md §3's
// "Environment" data model.
type EnvObj struct {
	Parent Ref // NilRef at the global frame
	Values []Ref
}

func (o *EnvObj) TypeTag() string  { return "env" }
func (o *EnvObj) ShallowSize() int { return 16 + 8*len(o.Values) }
func (o *EnvObj) ForwardChildren(c *Collector) {
	o.Parent = c.Forward(o.Parent)
	for i := range o.Values {
		o.Values[i] = c.Forward(o.Values[i])
	}
}

// ---- Closure ----

// ClosureObj pairs a Lambda AST node with the environment captured at
// the point the lambda expression was evaluated. Lambda is a Ref, not
// a native Go pointer: AST nodes live in the same GC heap as every
// other value (spec.md §4.3's explicit requirement that parser and
// evaluator share one allocator), so a closure must address its
// lambda the same way it addresses its environment.
type ClosureObj struct {
	Lambda Ref
	Env    Ref
}

func (o *ClosureObj) TypeTag() string  { return "closure" }
func (o *ClosureObj) ShallowSize() int { return 24 }
func (o *ClosureObj) ForwardChildren(c *Collector) {
	o.Lambda = c.Forward(o.Lambda)
	o.Env = c.Forward(o.Env)
}

// ---- Printable facet ----

// Printable renders a heap value to its canonical source-like text.
// Registered per representation type (open extensibility — a new
// boxed type just registers its own renderer, nothing dispatching on
// it needs to change).
type Printable interface {
	Print(c *Collector, input []byte) string
}

type printableFunc func(obj GCObject, c *Collector, input []byte) string

func registerPrintable(typeTag string, fn printableFunc) {
	RegisterFacet(FacetPrintable, typeTag, fn)
}

// PrintValue looks up and invokes the Printable facet for v, falling
// back to its type tag if no renderer was registered (should not
// happen for any type defined in this package).
func PrintValue(v GCObject, c *Collector, input []byte) string {
	impl, ok := Variant(FacetPrintable, v)
	if !ok {
		return fmt.Sprintf("#<%s>", v.TypeTag())
	}
	return impl.(printableFunc)(v, c, input)
}

func init() {
	registerPrintable("bool", func(obj GCObject, c *Collector, input []byte) string {
		if obj.(*BoolObj).V {
			return "true"
		}
		return "false"
	})
	registerPrintable("i64", func(obj GCObject, c *Collector, input []byte) string {
		return strconv.FormatInt(obj.(*IntObj).V, 10)
	})
	registerPrintable("f64", func(obj GCObject, c *Collector, input []byte) string {
		return strconv.FormatFloat(obj.(*FloatObj).V, 'g', -1, 64)
	})
	registerPrintable("string", func(obj GCObject, c *Collector, input []byte) string {
		return strconv.Quote(obj.(*StringObj).V)
	})
	registerPrintable("array", func(obj GCObject, c *Collector, input []byte) string {
		a := obj.(*ArrayObj)
		s := "["
		for i, it := range a.Items {
			if i > 0 {
				s += ", "
			}
			s += PrintValue(gcDeref(c, it), c, input)
		}
		return s + "]"
	})
	registerPrintable("closure", func(obj GCObject, c *Collector, input []byte) string {
		cl := obj.(*ClosureObj)
		lam := gcDeref(c, cl.Lambda).(*LambdaExpr)
		s := "lambda ("
		for i, f := range lam.Formals {
			if i > 0 {
				s += ", "
			}
			s += f.Name
			if f.Type != "" {
				s += ":" + f.Type
			}
		}
		return s + ") { ... }"
	})
	registerPrintable("env", func(obj GCObject, c *Collector, input []byte) string {
		return "#<env>"
	})
}

func gcDeref(c *Collector, r Ref) GCObject {
	if r.IsNil() {
		return nil
	}
	return c.Deref(r)
}

// ---- Numeric facet ----

// Numeric is the arithmetic/comparison facet boxed numbers register.
// The evaluator's primitive dispatch (eval.go) keys off the pair of
// operand TypeSeqs rather than calling through this interface
// directly — see arithPrimitives — but the facet is registered here too
// so Variant(FacetNumeric, v) resolves for any caller that only has a
// single operand in hand (e.g. a unary negate).
type Numeric interface {
	AsFloat() float64
}

func (o *IntObj) AsFloat() float64   { return float64(o.V) }
func (o *FloatObj) AsFloat() float64 { return o.V }

func init() {
	RegisterFacet(FacetNumeric, "i64", numericMarker{})
	RegisterFacet(FacetNumeric, "f64", numericMarker{})
}

type numericMarker struct{}
