package schematika

// pcOp names the VSM's opcode register (spec.md §4.6): what the run
// loop does on its next step. The "apply"/"eval-args" split in the
// spec's register description collapses here into a single
// pcEvalArgsCont transition, since a frameEvalArgs frame's callee-phase
// and argument-phase are the same frame object at two points in its
// life, not two different continuation shapes.
type pcOp int

const (
	pcEval pcOp = iota
	pcEvalArgsCont
	pcApplyCont
	pcIfElseCont
	pcSeqCont
	pcDefineCont
	pcHalt
)

// frameKind is the closed set of continuation-frame shapes the VSM
// pushes. Like ssmKind and TokenType, this is a plain enum rather than
// a facet: the grammar (and therefore the continuation shapes an
// evaluator needs) is fixed.
type frameKind int

const (
	frameEvalArgs frameKind = iota
	frameIfElse
	frameSeq
	frameDefine
)

// ContFrame is the VSM's continuation, realized as one GC-heap-managed
// struct per pending frame, linked through Next rather than a Go slice.
// A slice of frames would need every element re-rooted exactly the way
// GlobalSymtab.Values did (see Collector.AddGCRootSlice) every time it
// grew; a Ref-linked chain needs only the head (Interp.cont) registered
// as a root once.
type ContFrame struct {
	Kind frameKind
	Next Ref

	// Env is the VSM's env register at the moment this frame was
	// pushed. A closure application overwrites vm.env for the duration
	// of the callee's body; every frame must restore its own Env when
	// it resumes, or evaluation after the call returns would keep
	// running in the callee's scope instead of the caller's.
	Env Ref

	// frameEvalArgs
	CalleeDone bool
	Callee     Ref
	ArgExprs   []Ref
	ArgValues  []Ref

	// frameIfElse
	Then, Else Ref

	// frameSeq
	Remaining []Ref

	// frameDefine
	Slot int
}

func (f *ContFrame) TypeTag() string { return "cont.Frame" }
func (f *ContFrame) ShallowSize() int {
	return 72 + 8*(len(f.ArgExprs)+len(f.ArgValues)+len(f.Remaining))
}
func (f *ContFrame) ForwardChildren(c *Collector) {
	f.Next = c.Forward(f.Next)
	f.Env = c.Forward(f.Env)
	f.Callee = c.Forward(f.Callee)
	for i := range f.ArgExprs {
		f.ArgExprs[i] = c.Forward(f.ArgExprs[i])
	}
	for i := range f.ArgValues {
		f.ArgValues[i] = c.Forward(f.ArgValues[i])
	}
	f.Then = c.Forward(f.Then)
	f.Else = c.Forward(f.Else)
	for i := range f.Remaining {
		f.Remaining[i] = c.Forward(f.Remaining[i])
	}
}

// ---- Primitive procedures ----

// PrimitiveObj is a built-in procedure: a native Go closure the VSM
// invokes directly with already-boxed arguments, rather than pushing a
// new Body expression to evaluate. Installed into the global symtab by
// Bootstrap.
type PrimitiveObj struct {
	Name string
	Fn   func(args []GCObject) (GCObject, error)
}

func (o *PrimitiveObj) TypeTag() string             { return "primitive" }
func (o *PrimitiveObj) ShallowSize() int            { return 24 + len(o.Name) }
func (o *PrimitiveObj) ForwardChildren(c *Collector) {}

// Procedure is the callable facet: closure and primitive are the only
// two representations that register it, but apply-cont consults the
// facet (rather than a bare type switch) so the "attempt to call a
// non-procedure value" diagnostic stays uniform for any future
// representation that registers it.
type Procedure interface {
	procedureMarker()
}

type procMarker struct{}

func (procMarker) procedureMarker() {}

func init() {
	registerPrintable("primitive", func(obj GCObject, c *Collector, input []byte) string {
		return "#<primitive " + obj.(*PrimitiveObj).Name + ">"
	})
	RegisterFacet(FacetProcedure, "closure", procMarker{})
	RegisterFacet(FacetProcedure, "primitive", procMarker{})
}

// ---- Unit ----

// UnitObj is the value of an empty sequence (`{ }` or a bare toplevel
// `;`). Schematika has no literal syntax for it; it only ever arises
// as a computed result.
type UnitObj struct{}

func (o *UnitObj) TypeTag() string             { return "unit" }
func (o *UnitObj) ShallowSize() int            { return 8 }
func (o *UnitObj) ForwardChildren(c *Collector) {}

var theUnit = &UnitObj{}

func init() {
	registerPrintable("unit", func(obj GCObject, c *Collector, input []byte) string {
		return "()"
	})
}

// ---- Interp: the Virtual Schematika Machine ----

// Interp holds the VSM's five registers (spec.md §4.6) plus the
// resources it shares with the rest of the interpreter. pc/expr/value
// are plain Go fields (not GC roots: expr and value only ever point at
// already-rooted AST/heap data for the duration of one Run call, during
// which no allocation-triggered collection can observe a stale copy
// because every step re-derives them before the next possible Alloc).
// env and cont DO need roots, since a collection can occur in the
// middle of a deeply recursive evaluation while they hold the only
// live reference to an activation frame or pending continuation.
type Interp struct {
	gc      *Collector
	globals *GlobalSymtab
	types   *TypeTable

	pc    pcOp
	expr  Ref
	value Ref
	env   Ref
	cont  Ref
}

// NewInterp wires gc/globals/types together and installs the built-in
// arithmetic and comparison primitives into the global symtab,
// rooting its growable Values slice the same way the parser's `def`
// handling relies on (see Collector.AddGCRootSlice).
func NewInterp(gc *Collector, globals *GlobalSymtab, types *TypeTable) *Interp {
	vm := &Interp{gc: gc, globals: globals, types: types}
	gc.AddGCRootSlice(&globals.Values)
	gc.AddGCRoot(&vm.env)
	gc.AddGCRoot(&vm.cont)
	vm.bootstrap()
	return vm
}

func (vm *Interp) newGlobal(name string, obj GCObject) error {
	slot := vm.globals.Declare(name)
	ref, err := vm.gc.Alloc(0, obj)
	if err != nil {
		return err
	}
	vm.globals.Values[slot] = ref
	return nil
}

func (vm *Interp) bootstrap() {
	for name, fn := range arithPrimitives() {
		if err := vm.newGlobal(name, &PrimitiveObj{Name: name, Fn: fn}); err != nil {
			// Bootstrapping the empty generation 0 with a handful of
			// primitive closures cannot exhaust it; a failure here means
			// the configured generation-0 size is nonsensically small.
			panic("schematika: bootstrap primitive " + name + ": " + err.Error())
		}
	}
}

// Eval drives expr to a value through the VSM run loop, starting with
// an empty environment and continuation (i.e. expr must not contain
// unresolved local variables — only Lambda bodies, entered via Apply,
// ever run with a non-nil env).
func (vm *Interp) Eval(expr Ref) (GCObject, error) {
	vm.expr = expr
	vm.env = NilRef
	vm.cont = NilRef
	vm.value = NilRef
	vm.pc = pcEval
	return vm.run()
}

func (vm *Interp) run() (GCObject, error) {
	for {
		var err error
		switch vm.pc {
		case pcEval:
			err = vm.stepEval()
		case pcEvalArgsCont:
			err = vm.stepEvalArgsCont()
		case pcApplyCont:
			err = vm.stepApplyCont()
		case pcIfElseCont:
			err = vm.stepIfElseCont()
		case pcSeqCont:
			err = vm.stepSeqCont()
		case pcDefineCont:
			err = vm.stepDefineCont()
		case pcHalt:
			return vm.gc.Deref(vm.value), nil
		default:
			panic("schematika: unreachable VSM opcode")
		}
		if err != nil {
			return nil, err
		}
	}
}

// pushCont allocates a new frame on top of vm.cont and makes it the
// new top, capturing the env active right now so this frame can
// restore it when it resumes.
func (vm *Interp) pushCont(f *ContFrame) error {
	f.Next = vm.cont
	f.Env = vm.env
	ref, err := vm.gc.Alloc(0, f)
	if err != nil {
		return err
	}
	vm.cont = ref
	return nil
}

// contPC inspects the top of the continuation chain and decides which
// opcode resumes it — pcHalt if the chain is empty, i.e. this value is
// the whole program's result.
func (vm *Interp) contPC() pcOp {
	if vm.cont.IsNil() {
		return pcHalt
	}
	switch vm.gc.Deref(vm.cont).(*ContFrame).Kind {
	case frameEvalArgs:
		return pcEvalArgsCont
	case frameIfElse:
		return pcIfElseCont
	case frameSeq:
		return pcSeqCont
	case frameDefine:
		return pcDefineCont
	default:
		panic("schematika: unreachable frame kind")
	}
}

// stepEval dispatches on the AST node currently addressed by vm.expr —
// the "pc = eval" half of spec.md §4.6's dispatch table.
func (vm *Interp) stepEval() error {
	switch n := vm.gc.Deref(vm.expr).(type) {
	case *ConstantExpr:
		vm.value = n.Value
		vm.pc = vm.contPC()
		return nil

	case *VariableExpr:
		v, err := vm.resolveVariable(n)
		if err != nil {
			return err
		}
		vm.value = v
		vm.pc = vm.contPC()
		return nil

	case *LambdaExpr:
		ref, err := vm.gc.Alloc(0, &ClosureObj{Lambda: vm.expr, Env: vm.env})
		if err != nil {
			return err
		}
		vm.value = ref
		vm.pc = vm.contPC()
		return nil

	case *ApplyExpr:
		args := append([]Ref(nil), n.Args...)
		if err := vm.pushCont(&ContFrame{Kind: frameEvalArgs, ArgExprs: args}); err != nil {
			return err
		}
		vm.expr = n.Fn
		vm.pc = pcEval
		return nil

	case *IfExpr:
		if err := vm.pushCont(&ContFrame{Kind: frameIfElse, Then: n.Then, Else: n.Else}); err != nil {
			return err
		}
		vm.expr = n.Test
		vm.pc = pcEval
		return nil

	case *SequenceExpr:
		if len(n.Items) == 0 {
			ref, err := vm.gc.Alloc(0, theUnit)
			if err != nil {
				return err
			}
			vm.value = ref
			vm.pc = vm.contPC()
			return nil
		}
		rest := append([]Ref(nil), n.Items[1:]...)
		if err := vm.pushCont(&ContFrame{Kind: frameSeq, Remaining: rest}); err != nil {
			return err
		}
		vm.expr = n.Items[0]
		vm.pc = pcEval
		return nil

	case *DefineExpr:
		if err := vm.pushCont(&ContFrame{Kind: frameDefine, Slot: n.GlobalSlot}); err != nil {
			return err
		}
		vm.expr = n.Rhs
		vm.pc = pcEval
		return nil

	default:
		panic("schematika: unreachable expression kind")
	}
}

// stepEvalArgsCont resumes a frameEvalArgs frame after the callee or
// the most recently evaluated argument has produced vm.value: either
// feed the next expression back to pc=eval, or — once every argument
// is in hand — hand off to pcApplyCont to perform the call.
func (vm *Interp) stepEvalArgsCont() error {
	f := vm.gc.Deref(vm.cont).(*ContFrame)
	if !f.CalleeDone {
		f.CalleeDone = true
		f.Callee = vm.value
	} else {
		f.ArgValues = append(f.ArgValues, vm.value)
	}
	vm.env = f.Env
	if len(f.ArgExprs) == 0 {
		vm.pc = pcApplyCont
		return nil
	}
	vm.expr = f.ArgExprs[0]
	f.ArgExprs = f.ArgExprs[1:]
	vm.pc = pcEval
	return nil
}

// stepApplyCont performs the actual call once a frameEvalArgs frame
// has a callee and every argument value ready.
func (vm *Interp) stepApplyCont() error {
	f := vm.gc.Deref(vm.cont).(*ContFrame)
	callee := vm.gc.Deref(f.Callee)
	vm.cont = f.Next

	if _, ok := Variant(FacetProcedure, callee); !ok {
		return EvalError{Message: "attempt to call a non-procedure value of type " + callee.TypeTag()}
	}

	switch c := callee.(type) {
	case *ClosureObj:
		lam := vm.gc.Deref(c.Lambda).(*LambdaExpr)
		if len(f.ArgValues) != lam.Arity() {
			return EvalError{Message: "arity mismatch calling lambda: expected " +
				itoa(lam.Arity()) + ", got " + itoa(len(f.ArgValues)), Pos: lam.Span.Start}
		}
		envRef, err := vm.gc.Alloc(0, &EnvObj{Parent: c.Env, Values: f.ArgValues})
		if err != nil {
			return err
		}
		vm.env = envRef
		vm.expr = lam.Body
		vm.pc = pcEval
		return nil

	case *PrimitiveObj:
		args := make([]GCObject, len(f.ArgValues))
		for i, r := range f.ArgValues {
			args[i] = vm.gc.Deref(r)
		}
		result, err := c.Fn(args)
		if err != nil {
			return err
		}
		ref, err := vm.gc.Alloc(0, result)
		if err != nil {
			return err
		}
		vm.value = ref
		vm.pc = vm.contPC()
		return nil

	default:
		return EvalError{Message: "attempt to call a non-procedure value of type " + callee.TypeTag()}
	}
}

func (vm *Interp) stepIfElseCont() error {
	f := vm.gc.Deref(vm.cont).(*ContFrame)
	vm.cont = f.Next
	vm.env = f.Env
	b, ok := vm.gc.Deref(vm.value).(*BoolObj)
	if !ok {
		return EvalError{Message: "if-test must be bool, got " + vm.gc.Deref(vm.value).TypeTag()}
	}
	if b.V {
		vm.expr = f.Then
	} else {
		vm.expr = f.Else
	}
	vm.pc = pcEval
	return nil
}

func (vm *Interp) stepSeqCont() error {
	f := vm.gc.Deref(vm.cont).(*ContFrame)
	if len(f.Remaining) == 0 {
		vm.cont = f.Next
		vm.env = f.Env
		vm.pc = vm.contPC()
		return nil
	}
	vm.env = f.Env
	vm.expr = f.Remaining[0]
	f.Remaining = f.Remaining[1:]
	vm.pc = pcEval
	return nil
}

// stepDefineCont installs the rhs value (just produced in vm.value)
// into the global slot a DefineExpr named, then resumes as if the
// define itself had that value — the Open Question on what a `def`
// "returns" is resolved this way (see DESIGN.md): the assigned value,
// not unit and not the symbol name, so `def x = 1; x` and a bare
// `def x = 1;` both read naturally at a REPL.
func (vm *Interp) stepDefineCont() error {
	f := vm.gc.Deref(vm.cont).(*ContFrame)
	vm.cont = f.Next
	vm.env = f.Env
	vm.globals.Values[f.Slot] = vm.value
	vm.pc = vm.contPC()
	return nil
}

func (vm *Interp) resolveVariable(n *VariableExpr) (Ref, error) {
	if n.ILink < 0 {
		if n.JSlot >= len(vm.globals.Values) {
			return NilRef, NameError{Name: n.Name, Pos: n.Span.Start}
		}
		v := vm.globals.Values[n.JSlot]
		if v.IsNil() {
			return NilRef, EvalError{Message: "unbound global '" + n.Name + "'", Pos: n.Span.Start}
		}
		return v, nil
	}
	envRef := vm.env
	for i := 0; i < n.ILink; i++ {
		env, ok := vm.gc.Deref(envRef).(*EnvObj)
		if !ok {
			return NilRef, EvalError{Message: "broken environment chain resolving '" + n.Name + "'", Pos: n.Span.Start}
		}
		envRef = env.Parent
	}
	env, ok := vm.gc.Deref(envRef).(*EnvObj)
	if !ok {
		return NilRef, EvalError{Message: "broken environment chain resolving '" + n.Name + "'", Pos: n.Span.Start}
	}
	if n.JSlot >= len(env.Values) {
		return NilRef, EvalError{Message: "broken environment frame resolving '" + n.Name + "'", Pos: n.Span.Start}
	}
	return env.Values[n.JSlot], nil
}

// ---- Arithmetic dispatch ----

// numKey is an (operand-A typeseq, operand-B typeseq) pair. The
// arithmetic primitives in arithPrimitives switch on the operand
// typeseq pair directly; numKey is not used as a map key.
type numKey struct{ a, b TypeSeq }

var tsI64 = typeSeqFor("i64")
var tsF64 = typeSeqFor("f64")
var tsBool = typeSeqFor("bool")
var tsString = typeSeqFor("string")

func asFloat(o GCObject) float64 {
	switch v := o.(type) {
	case *IntObj:
		return float64(v.V)
	case *FloatObj:
		return v.V
	}
	return 0
}

func numTypeErr(op string, a, b GCObject) error {
	return EvalError{Message: "'" + op + "' requires numeric operands, got " + a.TypeTag() + " and " + b.TypeTag()}
}

// arithPrimitives builds the Name -> native-Go-closure table installed
// into the global symtab by Interp.bootstrap. Each closure switches on
// the operands' typeseq pair to pick int-vs-float behavior, honoring
// spec.md §4.6's "integer arithmetic stays integer; any float operand
// promotes the result to float" rule.
func arithPrimitives() map[string]func(args []GCObject) (GCObject, error) {
	binNum := func(op string,
		intOp func(a, b int64) (int64, error),
		floatOp func(a, b float64) float64,
	) func(args []GCObject) (GCObject, error) {
		return func(args []GCObject) (GCObject, error) {
			if len(args) != 2 {
				return nil, EvalError{Message: "'" + op + "' takes exactly 2 arguments"}
			}
			a, b := args[0], args[1]
			ta, tb := typeSeqFor(a.TypeTag()), typeSeqFor(b.TypeTag())
			switch {
			case ta == tsI64 && tb == tsI64:
				v, err := intOp(a.(*IntObj).V, b.(*IntObj).V)
				if err != nil {
					return nil, err
				}
				return &IntObj{V: v}, nil
			case (ta == tsI64 || ta == tsF64) && (tb == tsI64 || tb == tsF64):
				return &FloatObj{V: floatOp(asFloat(a), asFloat(b))}, nil
			default:
				return nil, numTypeErr(op, a, b)
			}
		}
	}

	cmpNum := func(op string,
		intOp func(a, b int64) bool,
		floatOp func(a, b float64) bool,
	) func(args []GCObject) (GCObject, error) {
		return func(args []GCObject) (GCObject, error) {
			if len(args) != 2 {
				return nil, EvalError{Message: "'" + op + "' takes exactly 2 arguments"}
			}
			a, b := args[0], args[1]
			ta, tb := typeSeqFor(a.TypeTag()), typeSeqFor(b.TypeTag())
			switch {
			case ta == tsI64 && tb == tsI64:
				return &BoolObj{V: intOp(a.(*IntObj).V, b.(*IntObj).V)}, nil
			case (ta == tsI64 || ta == tsF64) && (tb == tsI64 || tb == tsF64):
				return &BoolObj{V: floatOp(asFloat(a), asFloat(b))}, nil
			default:
				return nil, numTypeErr(op, a, b)
			}
		}
	}

	eq := func(args []GCObject) (GCObject, error) {
		if len(args) != 2 {
			return nil, EvalError{Message: "'==' takes exactly 2 arguments"}
		}
		return &BoolObj{V: valuesEqual(args[0], args[1])}, nil
	}
	neq := func(args []GCObject) (GCObject, error) {
		r, err := eq(args)
		if err != nil {
			return nil, err
		}
		return &BoolObj{V: !r.(*BoolObj).V}, nil
	}

	return map[string]func(args []GCObject) (GCObject, error){
		"+": binNum("+",
			func(a, b int64) (int64, error) { return a + b, nil },
			func(a, b float64) float64 { return a + b }),
		"-": binNum("-",
			func(a, b int64) (int64, error) { return a - b, nil },
			func(a, b float64) float64 { return a - b }),
		"*": binNum("*",
			func(a, b int64) (int64, error) { return a * b, nil },
			func(a, b float64) float64 { return a * b }),
		"/": binNum("/",
			func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, EvalError{Message: "integer division by zero"}
				}
				return a / b, nil
			},
			func(a, b float64) float64 { return a / b }),
		"<":  cmpNum("<", func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b }),
		"<=": cmpNum("<=", func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b }),
		">":  cmpNum(">", func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b }),
		">=": cmpNum(">=", func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b }),
		"==": eq,
		"!=": neq,
	}
}

// valuesEqual implements `==`/`!=` across any pair of scalar
// representations: numeric operands compare by value across i64/f64
// (so `1 == 1.0` holds), bool and string compare by their own kind,
// and a type mismatch outside the numeric pair is simply unequal
// rather than an error — useful for `x == nil`-style guards once a
// nil-able type exists, and matches the original reader's permissive
// equality per SPEC_FULL.md §C.
func valuesEqual(a, b GCObject) bool {
	ta, tb := typeSeqFor(a.TypeTag()), typeSeqFor(b.TypeTag())
	switch {
	case (ta == tsI64 || ta == tsF64) && (tb == tsI64 || tb == tsF64):
		return asFloat(a) == asFloat(b)
	case ta == tsBool && tb == tsBool:
		return a.(*BoolObj).V == b.(*BoolObj).V
	case ta == tsString && tb == tsString:
		return a.(*StringObj).V == b.(*StringObj).V
	default:
		return false
	}
}
