package schematika

import "sync"

// TypeSeq is a process-wide dense integer uniquely identifying a
// concrete representation type. Assigned on first request; stable for
// the life of the process. The arithmetic primitives in eval.go
// compare operand TypeSeqs pairwise, and the facet registry below uses
// it as its per-type key.
type TypeSeq int

var typeSeqTable = struct {
	mu   sync.Mutex
	ids  map[string]TypeSeq
	next TypeSeq
}{ids: map[string]TypeSeq{}}

// typeTag is the thing every heap representation type registers
// itself under — a short constant string is cheaper to keep stable
// across refactors than reflect.Type, and every concrete type in this
// package already carries one for Printable/error messages.
func typeSeqFor(tag string) TypeSeq {
	t := &typeSeqTable
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[tag]; ok {
		return id
	}
	id := t.next
	t.next++
	t.ids[tag] = id
	return id
}

// FacetID names one of the open facet interfaces a concrete data type
// may implement. Closed variants (AST node kind, token kind, opcode)
// are plain Go sum types/type switches instead, per the design notes;
// facets are reserved for capabilities new representation types can
// plug into without editing the dispatchers that use them.
type FacetID int

const (
	FacetGCObject FacetID = iota
	FacetPrintable
	FacetNumeric
	FacetProcedure
	nFacets
)

// facetRegistry is the 2-D vtable[facet][type] table: a global table
// mapping (facet, concrete type) pairs to canonical, stateless
// interface implementations. Registration happens once, in each
// subsystem's init(), and the table is read-only for the rest of the
// process's life — matching spec.md §5's "append-only after startup"
// contract for shared global state.
var facetRegistry = struct {
	mu    sync.Mutex
	table map[FacetID]map[TypeSeq]any
}{table: map[FacetID]map[TypeSeq]any{}}

// RegisterFacet installs impl as the canonical vtable for facet on the
// representation type tagged typeTag. Registering the same (facet,
// type) pair twice is a programming error and panics, matching the
// "immutable for the life of the process" invariant in spec.md §4.2.
func RegisterFacet(facet FacetID, typeTag string, impl any) {
	ts := typeSeqFor(typeTag)
	r := &facetRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table[facet] == nil {
		r.table[facet] = map[TypeSeq]any{}
	}
	if _, ok := r.table[facet][ts]; ok {
		panic("facet " + typeTagName(facet) + " already registered for " + typeTag)
	}
	r.table[facet][ts] = impl
}

// ImplFor looks up the canonical vtable for facet on the
// representation type tagged typeTag. The second return is false if
// no data type registered that facet.
func ImplFor(facet FacetID, typeTag string) (any, bool) {
	ts := typeSeqFor(typeTag)
	r := &facetRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	impl, ok := r.table[facet][ts]
	return impl, ok
}

func typeTagName(f FacetID) string {
	switch f {
	case FacetGCObject:
		return "GCObject"
	case FacetPrintable:
		return "Printable"
	case FacetNumeric:
		return "Numeric"
	case FacetProcedure:
		return "Procedure"
	default:
		return "?facet"
	}
}

// Tagged is implemented by every concrete heap representation type;
// TypeTag is the key the facet registry and the typeseq table key off
// of, and doubles as the human-readable name in error/print output.
type Tagged interface {
	TypeTag() string
}

// Variant performs the dynamic "does this concrete value implement
// facet F" conversion described in spec.md §4.2: given a value and
// the facet it's being asked to provide, return the registered vtable
// (or ok=false if the representation type never registered it).
func Variant(facet FacetID, v Tagged) (any, bool) {
	if v == nil {
		return nil, false
	}
	return ImplFor(facet, v.TypeTag())
}
