package schematika

import "hash/fnv"

// UniqueString is an interned identifier: stable address, stable
// contents, hash computed once. StringTable.Intern returns one pointer
// per distinct text. Symbol lookup does not go through it:
// GlobalSymtab and LocalSymtab key on the identifier's text string,
// and only operator names are interned.
type UniqueString struct {
	Text string
	Hash uint64
}

// StringTable interns identifier text. Its backing ByteArena is the
// "stable arena" of spec.md §3: interned bytes are never relocated
// (the arena is never Cleared for the life of an interpreter
// instance), so a *UniqueString's Text always stays valid.
type StringTable struct {
	arena *ByteArena
	byTxt map[string]*UniqueString
}

func NewStringTable(cfg *Config) *StringTable {
	return &StringTable{
		arena: NewByteArena(cfg.GetInt("arena.stable_bytes"), 0),
		byTxt: map[string]*UniqueString{},
	}
}

// Intern returns the canonical *UniqueString for s, copying s's bytes
// into the stable arena the first time it's seen. Two Intern(s) calls
// on equal strings return the identical pointer (spec.md §8's
// round-trip law).
func (t *StringTable) Intern(s string) (*UniqueString, error) {
	if u, ok := t.byTxt[s]; ok {
		return u, nil
	}
	buf, ok := t.arena.Allocate(len(s), 1)
	if !ok {
		return nil, ResourceError{Resource: "arena", Message: "stable arena exhausted interning " + strconvQuote(s)}
	}
	copy(buf, s)
	h := fnv.New64a()
	_, _ = h.Write(buf)
	u := &UniqueString{Text: string(buf), Hash: h.Sum64()}
	t.byTxt[s] = u
	return u, nil
}

func strconvQuote(s string) string {
	if len(s) > 24 {
		s = s[:24] + "..."
	}
	return "\"" + s + "\""
}

// GlobalSymtab maps interned identifiers to slots in a growable value
// array. The index map itself lives on the Go heap (it never needs to
// be GC-collected — it's process/interpreter lifetime), but every
// value it indexes is a Ref into the generational heap, so NewInterp
// registers the whole Values slice with Collector.AddGCRootSlice.
type GlobalSymtab struct {
	slotOf map[string]int
	names  []string
	Values []Ref
}

func NewGlobalSymtab() *GlobalSymtab {
	return &GlobalSymtab{slotOf: map[string]int{}}
}

// Lookup returns the slot for name, or ok=false if it has never been
// declared.
func (g *GlobalSymtab) Lookup(name string) (slot int, ok bool) {
	slot, ok = g.slotOf[name]
	return
}

// Declare returns the existing slot for name, or allocates a fresh one
// (appending a NilRef placeholder to Values) if this is the first
// declaration.
func (g *GlobalSymtab) Declare(name string) int {
	if slot, ok := g.slotOf[name]; ok {
		return slot
	}
	slot := len(g.names)
	g.slotOf[name] = slot
	g.names = append(g.names, name)
	g.Values = append(g.Values, NilRef)
	return slot
}

func (g *GlobalSymtab) NameOf(slot int) string { return g.names[slot] }

// LocalSymtab is the per-lambda compile-time frame description: an
// ordered list of formals plus a link to the enclosing lambda's frame
// (nil at the outermost lambda, whose parent scope is the global
// symtab). The parser walks this chain, innermost frame first, to resolve a
// symbol reference to an (ILink, JSlot) binding path.
type LocalSymtab struct {
	Formals []Formal
	Parent  *LocalSymtab
}

func NewLocalSymtab(formals []Formal, parent *LocalSymtab) *LocalSymtab {
	return &LocalSymtab{Formals: formals, Parent: parent}
}

// Resolve walks this frame and its ancestors looking for name,
// returning the number of frames ascended (0 = this frame) and the
// slot within the frame it was found in.
func (l *LocalSymtab) Resolve(name string) (link, slot int, ok bool) {
	frame := l
	for link = 0; frame != nil; link, frame = link+1, frame.Parent {
		for slot = range frame.Formals {
			if frame.Formals[slot].Name == name {
				return link, slot, true
			}
		}
	}
	return 0, 0, false
}
