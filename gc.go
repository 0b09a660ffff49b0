package schematika

// Ref is a fat-free "pointer" into the GC heap: a (generation, slot)
// pair. Refs are the only way mutator code addresses a heap object;
// after a collection every live Ref reachable from a root has been
// rewritten in place to point at the object's new slot; the contract
// never exposes a raw Go pointer to an evacuated object.
type Ref struct {
	Gen int8
	Idx int32
}

// NilRef is the "null object" fat reference: no generation, no slot.
var NilRef = Ref{Gen: -1, Idx: -1}

func (r Ref) IsNil() bool { return r.Gen < 0 }

// GCObject is the facet every heap-resident representation type
// implements (spec.md §4.3's GCObject facet). Concrete types register
// it through RegisterFacet so it can be looked up generically, but the
// collector calls it directly through this interface for speed —
// exactly the "closed set, Go interface, facet registry for anyone
// dynamically asking" split the design notes call for.
type GCObject interface {
	Tagged
	// ShallowSize reports this object's footprint, for generation
	// occupancy accounting.
	ShallowSize() int
	// ForwardChildren rewrites every Ref field this object owns by
	// calling c.Forward on it. Called once, on the object's new
	// (already-copied) copy, during collection.
	ForwardChildren(c *Collector)
}

// cell is one slot in a generation's space. age counts how many times
// this object has survived a collection of its own generation; it
// promotes to the next generation once age reaches the configured
// threshold.
type cell struct {
	obj       GCObject
	age       int8
	forwarded bool
	fwd       Ref
}

// Generation is one from-space/to-space pair. Allocation always
// targets the active ("from") space; collection evacuates survivors
// into "to", then the two are swapped.
type Generation struct {
	idx         int
	from        []cell
	to          []cell
	used        int // bytes currently accounted for in `from`
	capacity    int // byte budget before a collection is requested
	triggerFrac float64
	promoteAge  int8
	// remembered holds slots in OLDER generations that point at
	// objects living in THIS (younger) generation — the write
	// barrier's output, consulted as extra roots when this
	// generation is collected. See Collector.AssignMember.
	remembered []*Ref
}

// Collector owns every generation and the root set, and implements
// the copying-collector contract of spec.md §4.3: forward_inplace,
// add_gc_root, request_gc, and the assign_member write barrier.
type Collector struct {
	gens  []*Generation
	roots []*Ref

	// rootSlices holds growable root sets — e.g. the global symtab's
	// value array, which gains a slot every top-level `def`. A plain
	// *Ref root taken from a slice element would dangle the moment the
	// slice reallocates on append; re-reading *p fresh at the start of
	// every collection avoids that.
	rootSlices []*[]Ref

	// collecting is the uptoGeneration argument of the RequestGC call
	// currently in progress; -1 when no collection is running. Refs
	// into a generation older than `collecting` are left untouched by
	// forward(), since this round never evacuates that generation.
	collecting int
}

// NewCollector builds a collector with cfg's configured generation
// count, sizes and trigger thresholds.
func NewCollector(cfg *Config) *Collector {
	n := cfg.GetInt("gc.generations")
	sizes := cfg.GetIntSlice("gc.generation_size")
	triggers := cfg.GetFloatSlice("gc.generation_trigger")
	c := &Collector{collecting: -1}
	for i := 0; i < n; i++ {
		cap := 1 << 20
		if i < len(sizes) {
			cap = sizes[i]
		}
		trig := 0.8
		if i < len(triggers) {
			trig = triggers[i]
		}
		c.gens = append(c.gens, &Generation{
			idx:         i,
			capacity:    cap,
			triggerFrac: trig,
			promoteAge:  1,
		})
	}
	return c
}

// Alloc bump-allocates obj into generation gen's active space,
// requesting a collection first if doing so would cross that
// generation's trigger threshold. The collection escalates to each
// next-older generation that is itself past its own trigger
// threshold. Allocation failure (generation gen still over its
// capacity after collecting) is reported as a ResourceError, never
// silently dropped.
func (c *Collector) Alloc(gen int, obj GCObject) (Ref, error) {
	g := c.gens[gen]
	size := obj.ShallowSize()
	if float64(g.used+size) > g.triggerFrac*float64(g.capacity) {
		upto := gen
		for upto+1 < len(c.gens) {
			ng := c.gens[upto+1]
			if float64(ng.used) <= ng.triggerFrac*float64(ng.capacity) {
				break
			}
			upto++
		}
		c.RequestGC(upto)
		g = c.gens[gen]
	}
	if g.used+size > g.capacity {
		return NilRef, ResourceError{Resource: "gc", Message: "generation " + itoa(gen) + " exhausted after collection"}
	}
	idx := len(g.from)
	g.from = append(g.from, cell{obj: obj})
	g.used += size
	return Ref{Gen: int8(gen), Idx: int32(idx)}, nil
}

// Deref returns the object currently addressed by r. Panics on a nil
// or dangling Ref — that is a mutator bug, not a recoverable runtime
// condition (spec.md §9: "internal violations... may abort").
func (c *Collector) Deref(r Ref) GCObject {
	if r.IsNil() {
		panic("schematika: deref of nil Ref")
	}
	return c.gens[r.Gen].from[r.Idx].obj
}

// AddGCRoot registers an external root slot the collector must scan —
// e.g. a VSM register holding the current environment. Slots inside a
// growable slice go through AddGCRootSlice instead.
func (c *Collector) AddGCRoot(slot *Ref) {
	c.roots = append(c.roots, slot)
}

// AddGCRootSlice registers a growable root set by the address of its
// slice header, re-read on every collection instead of once — see the
// rootSlices doc comment.
func (c *Collector) AddGCRootSlice(p *[]Ref) {
	c.rootSlices = append(c.rootSlices, p)
}

// AssignMember is the write barrier (spec.md §4.3 calls it
// assign_member): store newChild into *slot, and if newChild lives in
// a generation younger than parentGen, remember the slot so a
// collection of that younger generation still finds it as a root.
func (c *Collector) AssignMember(parentGen int8, slot *Ref, newChild Ref) {
	*slot = newChild
	if !newChild.IsNil() && newChild.Gen < parentGen {
		g := c.gens[newChild.Gen]
		g.remembered = append(g.remembered, slot)
	}
}

// RequestGC collects generations 0..uptoGeneration inclusive.
// Survivors of the outermost (uptoGeneration) generation promote to
// the next generation once they've survived promoteAge collections of
// their own generation; survivors of younger generations evacuate
// into their own to-space. After collection every affected
// generation's from/to spaces are swapped and the old from-space is
// dropped (Go's own GC reclaims it — the simulated heap does not
// manage raw memory itself, matching the "idiomatic Go, no manual
// memory management" stance of this implementation).
func (c *Collector) RequestGC(uptoGeneration int) {
	if uptoGeneration >= len(c.gens) {
		uptoGeneration = len(c.gens) - 1
	}
	for i := 0; i <= uptoGeneration; i++ {
		c.gens[i].to = nil
	}
	c.collecting = uptoGeneration
	defer func() { c.collecting = -1 }()

	forwardSlot := func(slot *Ref) {
		*slot = c.forward(*slot, uptoGeneration)
	}
	for _, r := range c.roots {
		forwardSlot(r)
	}
	for _, sp := range c.rootSlices {
		s := *sp
		for i := range s {
			s[i] = c.forward(s[i], uptoGeneration)
		}
	}
	for i := 0; i <= uptoGeneration; i++ {
		for _, slot := range c.gens[i].remembered {
			forwardSlot(slot)
		}
	}

	// Breadth-first: newly-copied objects may themselves own
	// children; forward them too, object by object, until no new
	// copies are produced. We track this by walking every
	// generation's "to" space, including slots appended mid-loop.
	//
	// The promotion target (uptoGeneration+1) is swept too, not just
	// 0..uptoGeneration: forward() copies aged survivors straight into
	// that generation's `to` space, and if their ForwardChildren never
	// ran, their Ref fields would still point at from-space slots in a
	// generation this round just discarded.
	sweepUpto := uptoGeneration
	if uptoGeneration+1 < len(c.gens) {
		sweepUpto = uptoGeneration + 1
	}
	for i := 0; i <= sweepUpto; i++ {
		g := c.gens[i]
		for j := 0; j < len(g.to); j++ {
			g.to[j].obj.ForwardChildren(c)
		}
	}
	for i := 0; i <= uptoGeneration; i++ {
		g := c.gens[i]
		g.from = g.to
		g.to = nil
		g.used = 0
		for _, cl := range g.from {
			g.used += cl.obj.ShallowSize()
		}
		g.remembered = g.remembered[:0]
	}
	// Promotion out of the outermost collected generation lands in
	// the next generation's `to` space (forward() targets it
	// directly); fold it into that generation's existing `from`
	// rather than replacing it, since that generation wasn't itself
	// being collected this round.
	if uptoGeneration+1 < len(c.gens) {
		ng := c.gens[uptoGeneration+1]
		if len(ng.to) > 0 {
			ng.from = append(ng.from, ng.to...)
			for _, cl := range ng.to {
				ng.used += cl.obj.ShallowSize()
			}
			ng.to = nil
		}
	}
}

// forward is forward_inplace: if r's object already has a forwarding
// pointer, return it (idempotent). Otherwise copy the object into the
// appropriate to-space (its own generation's, unless it lives in the
// outermost collected generation and has aged past the promotion
// threshold, in which case it copies into the next generation's
// to-space instead), install the forwarding pointer, and return the
// new Ref. Children are forwarded later, in RequestGC's sweep over
// each to-space — not recursively here — so deep chains don't blow the
// Go call stack.
func (c *Collector) forward(r Ref, uptoGeneration int) Ref {
	if r.IsNil() {
		return r
	}
	if int(r.Gen) > uptoGeneration {
		// Not being collected this round; the mutator's Ref is still
		// valid as-is.
		return r
	}
	g := c.gens[r.Gen]
	src := &g.from[r.Idx]
	if src.forwarded {
		return src.fwd
	}

	destGenIdx := int(r.Gen)
	if int(r.Gen) == uptoGeneration {
		if src.age+1 >= g.promoteAge && uptoGeneration+1 < len(c.gens) {
			destGenIdx = uptoGeneration + 1
		}
	}
	dg := c.gens[destGenIdx]
	promoting := destGenIdx != int(r.Gen)
	// A generation being collected this round has its `from`
	// replaced wholesale by `to`, so slots line up with position in
	// `to`. The promotion target keeps its existing `from` and has
	// `to` appended afterwards, so its slots must be offset by
	// however many objects are already there.
	newIdx := len(dg.to)
	if promoting {
		newIdx += len(dg.from)
	}
	age := src.age
	if promoting {
		age = 0
	} else {
		age++
	}
	dg.to = append(dg.to, cell{obj: src.obj, age: age})
	newRef := Ref{Gen: int8(destGenIdx), Idx: int32(newIdx)}
	src.forwarded = true
	src.fwd = newRef
	return newRef
}

// Forward is the collector-facing half of the write barrier contract:
// GCObject.ForwardChildren implementations call it on every Ref field
// they own. It is only valid to call while a collection is in
// progress (i.e. from within ForwardChildren).
func (c *Collector) Forward(r Ref) Ref {
	if c.collecting < 0 {
		panic("schematika: Forward called outside a collection")
	}
	return c.forward(r, c.collecting)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
