package schematika

import "fmt"

// Interpreter wires together every subsystem an embedder needs to run
// Schematika source: the tokenizer, the resumable parser, and the
// VSM, sharing one GC heap, one string table and one global symtab
// across however many chunks of input arrive. It is the package's
// top-level façade — spec.md §4.7's "reader" — analogous to the
// teacher's own top-level Parse entrypoint wrapping its grammar
// compiler and PEG machine behind one call.
type Interpreter struct {
	cfg     *Config
	gc      *Collector
	strings *StringTable
	types   *TypeTable
	globals *GlobalSymtab
	tok     *Tokenizer
	parser  *Parser
	vm      *Interp

	input []byte
	li    *LineIndex
}

// NewInterpreter builds an Interpreter with default configuration.
func NewInterpreter() *Interpreter {
	cfg := NewConfig()
	gc := NewCollector(cfg)
	strings := NewStringTable(cfg)
	types := NewTypeTable()
	globals := NewGlobalSymtab()
	return &Interpreter{
		cfg:     cfg,
		gc:      gc,
		strings: strings,
		types:   types,
		globals: globals,
		tok:     NewTokenizer(),
		parser:  NewParser(gc, strings, types, globals),
		vm:      NewInterp(gc, globals, types),
	}
}

// SetFile names the source the next Run/RunChunk call tokenizes, for
// error locations.
func (in *Interpreter) SetFile(name string) { in.tok.SetFile(name) }

// Run tokenizes, parses and evaluates every toplevel form in src in
// order, returning the last form's value (or nil if src held none —
// an empty or all-comment input). A lexical, syntax, name or eval
// error aborts immediately; no partial results are returned.
func (in *Interpreter) Run(src []byte) (GCObject, error) {
	in.input = src
	in.li = NewLineIndex(src)

	var last GCObject
	fed := false
	for {
		var chunk []byte
		if !fed {
			// Scan appends whatever it's given to its internal buffer;
			// src is handed over once, then every later call in this
			// loop drains what's already buffered by passing nil.
			chunk = src
			fed = true
		}
		tok, _, err := in.tok.Scan(chunk, true)
		if err != nil {
			return nil, err
		}

		expr, ok, err := in.feedOrEOF(tok)
		if err != nil {
			return nil, err
		}
		if ok {
			v, err := in.vm.Eval(expr)
			if err != nil {
				return nil, err
			}
			last = v
		}
		if tok.Type == TokEOF {
			break
		}
	}
	return last, nil
}

func (in *Interpreter) feedOrEOF(tok Token) (Ref, bool, error) {
	if tok.Type == TokEOF {
		expr, err := in.parser.AtEOF()
		if err != nil {
			return NilRef, false, err
		}
		return expr, !expr.IsNil(), nil
	}
	return in.parser.Feed(tok)
}

// RunChunk feeds one chunk of a streamed input (e.g. one line typed at
// an interactive prompt) through the tokenizer and parser, evaluating
// and returning every toplevel form that completes within this chunk.
// eofAsserted marks the final chunk of the whole input.
func (in *Interpreter) RunChunk(chunk []byte, eofAsserted bool) ([]GCObject, error) {
	var results []GCObject
	fed := false
	for {
		var feed []byte
		if !fed {
			feed = chunk
			fed = true
		}
		tok, _, err := in.tok.Scan(feed, eofAsserted)
		if err != nil {
			return results, err
		}
		if tok.Type == TokInvalid {
			// Ran out of buffered input mid-lexeme; wait for the next
			// chunk (spec.md §4.4's suspension contract).
			return results, nil
		}

		expr, ok, err := in.feedOrEOF(tok)
		if err != nil {
			return results, err
		}
		if ok {
			v, err := in.vm.Eval(expr)
			if err != nil {
				return results, err
			}
			results = append(results, v)
		}
		if tok.Type == TokEOF {
			return results, nil
		}
	}
}

// Format renders v as Schematika source text, using in's GC heap and
// original input buffer to resolve any nested Refs.
func (in *Interpreter) Format(v GCObject) string {
	return PrintValue(v, in.gc, in.input)
}

// Report renders err with a caret under the offending source
// position, if err carries one and Run has established a LineIndex
// (SetFile and RunChunk do not build one).
func (in *Interpreter) Report(err error) string {
	type reporter interface{ Report(*LineIndex) string }
	if r, ok := err.(reporter); ok {
		return r.Report(in.li)
	}
	return fmt.Sprintf("%s", err)
}
