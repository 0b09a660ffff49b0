package schematika

import "errors"

// errNeedMore is returned internally by every parse* helper when it
// needs to peek past the last buffered token to make a decision.
// Parser.Feed/ReadForm catch it and simply wait for more tokens — the
// "parser suspends, SSM stack preserved" contract of spec.md §5 is
// realized here by re-running the recursive descent from the top of
// the still-unconsumed token buffer rather than literally freezing a
// partially-unwound call stack; the observable behavior (no tokens
// lost, no form completes early) is the same.
var errNeedMore = errors.New("schematika: parser needs more tokens")

// Parser turns a token stream into completed AST forms, one
// toplevel_form at a time (spec.md §4.5's grammar). It owns the
// allocator AST nodes are built in, the global symtab definitions
// install into, and the lexical-scope stack active while parsing a
// lambda body.
type Parser struct {
	gc      *Collector
	strings *StringTable
	types   *TypeTable
	globals *GlobalSymtab

	tokens []Token
	locals *LocalSymtab // nil outside any lambda body
}

func NewParser(gc *Collector, strings *StringTable, types *TypeTable, globals *GlobalSymtab) *Parser {
	return &Parser{gc: gc, strings: strings, types: types, globals: globals}
}

// Reset discards any buffered, not-yet-complete toplevel form — the
// "illegal input resets the parser to top-level idle" behavior of
// spec.md §4.5.
func (p *Parser) Reset() {
	p.tokens = nil
	p.locals = nil
}

// Feed appends one token and attempts to complete a toplevel form.
// ok is true iff a form completed this call, in which case expr is
// its root. A nil error with ok==false means "keep feeding tokens".
func (p *Parser) Feed(tok Token) (expr Ref, ok bool, err error) {
	p.tokens = append(p.tokens, tok)
	return p.tryRead(false)
}

// AtEOF signals end of input. A clean end (nothing pending) returns
// NilRef, nil. A form left incomplete is a SyntaxError per
// spec.md §4.5's "incomplete expression at EOF".
func (p *Parser) AtEOF() (Ref, error) {
	if len(p.tokens) == 0 {
		return NilRef, nil
	}
	expr, ok, err := p.tryRead(true)
	if err != nil {
		p.Reset()
		return NilRef, err
	}
	if !ok {
		pos := p.tokens[len(p.tokens)-1].Span.End
		p.Reset()
		return NilRef, SyntaxError{Pos: pos, SSM: ssmToplevelSeq.String(), Expect: "more input", Message: "incomplete expression at EOF"}
	}
	return expr, nil
}

func (p *Parser) tryRead(final bool) (Ref, bool, error) {
	s := &parseState{toks: p.tokens, final: final}
	ref, err := p.parseToplevelForm(s)
	if err == errNeedMore {
		return NilRef, false, nil
	}
	if err != nil {
		p.Reset()
		return NilRef, false, err
	}
	p.tokens = append([]Token(nil), p.tokens[s.idx:]...)
	return ref, true, nil
}

// ---- token cursor ----

type parseState struct {
	toks  []Token
	idx   int
	final bool
}

func (s *parseState) peek() (Token, bool) {
	if s.idx >= len(s.toks) {
		return Token{}, false
	}
	return s.toks[s.idx], true
}

func (s *parseState) next() (Token, bool) {
	t, ok := s.peek()
	if ok {
		s.idx++
	}
	return t, ok
}

// ---- grammar ----

func (p *Parser) parseToplevelForm(s *parseState) (Ref, error) {
	tok, ok := s.peek()
	if !ok {
		return NilRef, errNeedMore
	}
	if tok.Type == TokSemi {
		// A bare ';' is an empty sequence, evaluating to unit.
		s.next()
		return p.allocExpr(&SequenceExpr{Span: toSpan(tok)})
	}
	var e Ref
	var err error
	if tok.Type == TokKwDef {
		e, err = p.parseDefine(s, ssmToplevelSeq)
	} else {
		e, err = p.parseExpr(s)
	}
	if err != nil {
		return NilRef, err
	}
	semi, ok := s.next()
	if !ok {
		if s.final {
			return NilRef, SyntaxError{Pos: lastPos(s), SSM: ssmToplevelSeq.String(), Expect: "';'", Message: "incomplete expression at EOF"}
		}
		return NilRef, errNeedMore
	}
	if semi.Type != TokSemi {
		return NilRef, SyntaxError{Pos: semi.Span.Start, SSM: ssmToplevelSeq.String(), Expect: "';'", Message: "illegal input: expected ';', got " + semi.String()}
	}
	return e, nil
}

func (p *Parser) parseDefine(s *parseState, ctx ssmKind) (Ref, error) {
	if !admitsDefinition(ctx) {
		tok, _ := s.peek()
		return NilRef, SyntaxError{Pos: tok.Span.Start, SSM: ctx.String(), Expect: "expression", Message: "'def' is not admitted here"}
	}
	kw, _ := s.next() // consumes the already-peeked "def"

	nameTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmDefine, "symbol name")
	}
	if nameTok.Type != TokSymbol || !admitsSymbol(ssmDefine) {
		return NilRef, SyntaxError{Pos: nameTok.Span.Start, SSM: ssmDefine.String(), Expect: "symbol name", Message: "illegal input: expected a symbol after 'def', got " + nameTok.String()}
	}

	declType := ""
	tok, ok := s.peek()
	if !ok {
		return NilRef, errNeedMore
	}
	if tok.Type == TokColon && admitsColon(ssmDefine) {
		s.next()
		typeTok, ok := s.next()
		if !ok {
			return NilRef, needMoreOrIncomplete(s, ssmExpectType, "type name")
		}
		if typeTok.Type != TokSymbol {
			return NilRef, SyntaxError{Pos: typeTok.Span.Start, SSM: ssmExpectType.String(), Expect: "type name", Message: "illegal input: expected a type name, got " + typeTok.String()}
		}
		declType = typeTok.Text
	}

	eqTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmDefine, "'='")
	}
	if eqTok.Type != TokEq {
		return NilRef, SyntaxError{Pos: eqTok.Span.Start, SSM: ssmDefine.String(), Expect: "'='", Message: "illegal input: expected '=', got " + eqTok.String()}
	}

	// Declared before parsing Rhs, not after: a lambda body may refer to
	// its own name for recursion (`def fact = lambda (n:i64) -> i64 {
	// n <= 1 ? 1 : n * fact(n - 1) };`), and that reference only
	// resolves against the global symtab if the slot already exists.
	slot := p.globals.Declare(nameTok.Text)

	rhs, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}

	node := &DefineExpr{
		Span:       NewSpan(kw.Span.Start, nameTok.Span.End),
		Name:       nameTok.Text,
		DeclType:   declType,
		Rhs:        rhs,
		GlobalSlot: slot,
	}
	return p.allocExpr(node)
}

func needMoreOrIncomplete(s *parseState, k ssmKind, expect string) error {
	if s.final {
		return SyntaxError{Pos: lastPos(s), SSM: k.String(), Expect: expect, Message: "incomplete expression at EOF"}
	}
	return errNeedMore
}

func lastPos(s *parseState) Location {
	if len(s.toks) == 0 {
		return Location{}
	}
	return s.toks[len(s.toks)-1].Span.End
}

// parseExpr wraps parseComparison with the ternary alternate if-form:
// expr "?" expr ":" expr.
func (p *Parser) parseExpr(s *parseState) (Ref, error) {
	e, err := p.parseComparison(s)
	if err != nil {
		return NilRef, err
	}
	tok, ok := s.peek()
	if !ok {
		if s.final {
			return e, nil
		}
		return NilRef, errNeedMore
	}
	if tok.Type != TokQuestion {
		return e, nil
	}
	s.next()
	thenE, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}
	colonTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmExpectExpr, "':'")
	}
	if colonTok.Type != TokColon {
		return NilRef, SyntaxError{Pos: colonTok.Span.Start, SSM: ssmExpectExpr.String(), Expect: "':'", Message: "illegal input in ternary: expected ':', got " + colonTok.String()}
	}
	elseE, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}
	node := &IfExpr{Span: NewSpan(tok.Span.Start, tok.Span.End), Test: e, Then: thenE, Else: elseE}
	return p.allocExpr(node)
}

var comparisonOps = map[TokenType]bool{
	TokEqEq: true, TokNotEq: true, TokLAngle: true, TokLe: true, TokRAngle: true, TokGe: true,
}

// parseComparison and parseAdditive/parseMultiplicative are exactly
// the "progress" SSM of spec.md §4.5: left-associative infix chains,
// each level only pushing an expect-expression SSM for its own
// operators, the two-level (+/- vs * /) split spec.md calls
// sufficient, plus one more level above for the optional comparisons.
func (p *Parser) parseComparison(s *parseState) (Ref, error) {
	return p.parseInfixLevel(s, p.parseAdditive, comparisonOps)
}

var additiveOps = map[TokenType]bool{TokPlus: true, TokMinus: true}
var multiplicativeOps = map[TokenType]bool{TokStar: true, TokSlash: true}

func (p *Parser) parseAdditive(s *parseState) (Ref, error) {
	return p.parseInfixLevel(s, p.parseMultiplicative, additiveOps)
}

func (p *Parser) parseMultiplicative(s *parseState) (Ref, error) {
	return p.parseInfixLevel(s, p.parsePostfix, multiplicativeOps)
}

func (p *Parser) parseInfixLevel(s *parseState, next func(*parseState) (Ref, error), ops map[TokenType]bool) (Ref, error) {
	left, err := next(s)
	if err != nil {
		return NilRef, err
	}
	for {
		tok, ok := s.peek()
		if !ok {
			if s.final {
				return left, nil
			}
			return NilRef, errNeedMore
		}
		if !ops[tok.Type] {
			return left, nil
		}
		s.next()
		right, err := next(s)
		if err != nil {
			return NilRef, err
		}
		name, err := p.strings.Intern(tok.Text)
		if err != nil {
			return NilRef, err
		}
		applyNode, err := p.buildInfixApply(tok, name.Text, left, right)
		if err != nil {
			return NilRef, err
		}
		left = applyNode
	}
}

// buildInfixApply turns `a OP b` into `OP(a, b)` — an ApplyExpr whose
// callee resolves the operator's name (a builtin primitive, installed
// into the global symtab by the evaluator's bootstrap) the same way
// any other symbol reference resolves.
func (p *Parser) buildInfixApply(opTok Token, opText string, left, right Ref) (Ref, error) {
	fnNode := &VariableExpr{Span: NewSpan(opTok.Span.Start, opTok.Span.End), Name: opText, ILink: -1, JSlot: p.globals.Declare(opText)}
	fnRef, err := p.allocExpr(fnNode)
	if err != nil {
		return NilRef, err
	}
	node := &ApplyExpr{Span: NewSpan(opTok.Span.Start, opTok.Span.End), Fn: fnRef, Args: []Ref{left, right}}
	return p.allocExpr(node)
}

// parsePostfix handles trailing call syntax: expr "(" args ")",
// possibly chained (f(a)(b)).
func (p *Parser) parsePostfix(s *parseState) (Ref, error) {
	e, err := p.parseAtom(s)
	if err != nil {
		return NilRef, err
	}
	for {
		tok, ok := s.peek()
		if !ok {
			if s.final {
				return e, nil
			}
			return NilRef, errNeedMore
		}
		if tok.Type != TokLParen {
			return e, nil
		}
		s.next()
		args, closeTok, err := p.parseArgList(s)
		if err != nil {
			return NilRef, err
		}
		node := &ApplyExpr{Span: NewSpan(tok.Span.Start, closeTok.Span.End), Fn: e, Args: args}
		e, err = p.allocExpr(node)
		if err != nil {
			return NilRef, err
		}
	}
}

func (p *Parser) parseArgList(s *parseState) ([]Ref, Token, error) {
	var args []Ref
	tok, ok := s.peek()
	if !ok {
		return nil, Token{}, errNeedMore
	}
	if tok.Type == TokRParen {
		s.next()
		return nil, tok, nil
	}
	for {
		arg, err := p.parseExpr(s)
		if err != nil {
			return nil, Token{}, err
		}
		args = append(args, arg)
		tok, ok := s.next()
		if !ok {
			return nil, Token{}, needMoreOrIncomplete(s, ssmExpectExpr, "',' or ')'")
		}
		if tok.Type == TokRParen {
			return args, tok, nil
		}
		if tok.Type != TokComma {
			return nil, Token{}, SyntaxError{Pos: tok.Span.Start, SSM: ssmExpectExpr.String(), Expect: "',' or ')'", Message: "illegal input in argument list: got " + tok.String()}
		}
	}
}

func (p *Parser) parseAtom(s *parseState) (Ref, error) {
	tok, ok := s.next()
	if !ok {
		return NilRef, errNeedMore
	}
	switch tok.Type {
	case TokBool:
		return p.allocConstant(tok, &BoolObj{V: tok.ParseBool()})
	case TokInt:
		v, err := tok.ParseInt()
		if err != nil {
			return NilRef, EvalError{Pos: tok.Span.Start, Message: "malformed integer literal: " + err.Error()}
		}
		return p.allocConstant(tok, &IntObj{V: v})
	case TokFloat:
		v, err := tok.ParseFloat()
		if err != nil {
			return NilRef, EvalError{Pos: tok.Span.Start, Message: "malformed float literal: " + err.Error()}
		}
		return p.allocConstant(tok, &FloatObj{V: v})
	case TokString:
		return p.allocConstant(tok, &StringObj{V: tok.Text})
	case TokSymbol:
		return p.parseVariable(tok)
	case TokKwLambda:
		return p.parseLambda(s, tok)
	case TokKwIf:
		return p.parseIfKeyword(s, tok)
	case TokLParen:
		e, err := p.parseExpr(s)
		if err != nil {
			return NilRef, err
		}
		closeTok, ok := s.next()
		if !ok {
			return NilRef, needMoreOrIncomplete(s, ssmParen, "')'")
		}
		if closeTok.Type != TokRParen {
			return NilRef, SyntaxError{Pos: closeTok.Span.Start, SSM: ssmParen.String(), Expect: "')'", Message: "illegal input: expected ')', got " + closeTok.String()}
		}
		return e, nil
	case TokLBrace:
		return p.parseBlock(s, tok)
	}
	return NilRef, SyntaxError{Pos: tok.Span.Start, SSM: ssmExpectExpr.String(), Expect: "expression", Message: "illegal input: unexpected " + tok.String()}
}

// parseVariable resolves a symbol reference by walking the active
// local-symtab chain before the global symtab, per spec.md §3/§4.5
// and original_source's reader behavior (SPEC_FULL.md §C).
func (p *Parser) parseVariable(tok Token) (Ref, error) {
	if p.locals != nil {
		if link, slot, ok := p.locals.Resolve(tok.Text); ok {
			return p.allocExpr(&VariableExpr{Span: toSpan(tok), Name: tok.Text, ILink: link, JSlot: slot})
		}
	}
	if slot, ok := p.globals.Lookup(tok.Text); ok {
		return p.allocExpr(&VariableExpr{Span: toSpan(tok), Name: tok.Text, ILink: -1, JSlot: slot})
	}
	return NilRef, NameError{Pos: tok.Span.Start, Name: tok.Text}
}

func (p *Parser) parseLambda(s *parseState, kw Token) (Ref, error) {
	openTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmLambda, "'('")
	}
	if openTok.Type != TokLParen {
		return NilRef, SyntaxError{Pos: openTok.Span.Start, SSM: ssmLambda.String(), Expect: "'('", Message: "illegal input: expected '(' after 'lambda', got " + openTok.String()}
	}
	formals, err := p.parseFormalList(s)
	if err != nil {
		return NilRef, err
	}
	returnType := ""
	tok, ok := s.peek()
	if !ok {
		return NilRef, errNeedMore
	}
	if tok.Type == TokArrow {
		s.next()
		typeTok, ok := s.next()
		if !ok {
			return NilRef, needMoreOrIncomplete(s, ssmExpectType, "return type")
		}
		if typeTok.Type != TokSymbol {
			return NilRef, SyntaxError{Pos: typeTok.Span.Start, SSM: ssmExpectType.String(), Expect: "type name", Message: "illegal input: expected a return type, got " + typeTok.String()}
		}
		returnType = typeTok.Text
	}

	savedLocals := p.locals
	locals := NewLocalSymtab(formals, savedLocals)
	p.locals = locals

	bodyTok, ok := s.peek()
	if !ok {
		p.locals = savedLocals
		return NilRef, errNeedMore
	}
	var body Ref
	if bodyTok.Type == TokLBrace {
		s.next()
		body, err = p.parseBlock(s, bodyTok)
	} else {
		body, err = p.parseExpr(s)
	}
	p.locals = savedLocals
	if err != nil {
		return NilRef, err
	}

	node := &LambdaExpr{Span: toSpan(kw), Formals: formals, ReturnType: returnType, Locals: locals, Body: body}
	return p.allocExpr(node)
}

func (p *Parser) parseFormalList(s *parseState) ([]Formal, error) {
	var formals []Formal
	tok, ok := s.peek()
	if !ok {
		return nil, errNeedMore
	}
	if tok.Type == TokRParen {
		s.next()
		return formals, nil
	}
	for {
		nameTok, ok := s.next()
		if !ok {
			return nil, needMoreOrIncomplete(s, ssmExpectFormal, "formal name")
		}
		if nameTok.Type != TokSymbol || !admitsSymbol(ssmExpectFormal) {
			return nil, SyntaxError{Pos: nameTok.Span.Start, SSM: ssmExpectFormal.String(), Expect: "formal name", Message: "illegal input: expected a formal name, got " + nameTok.String()}
		}
		declType := ""
		colonTok, ok := s.peek()
		if !ok {
			return nil, errNeedMore
		}
		if colonTok.Type == TokColon && admitsColon(ssmExpectFormal) {
			s.next()
			typeTok, ok := s.next()
			if !ok {
				return nil, needMoreOrIncomplete(s, ssmExpectType, "formal type")
			}
			if typeTok.Type != TokSymbol {
				return nil, SyntaxError{Pos: typeTok.Span.Start, SSM: ssmExpectType.String(), Expect: "type name", Message: "illegal input: expected a formal's type, got " + typeTok.String()}
			}
			declType = typeTok.Text
		}
		formals = append(formals, Formal{Name: nameTok.Text, Type: declType})

		sep, ok := s.next()
		if !ok {
			return nil, needMoreOrIncomplete(s, ssmExpectFormalArglist, "',' or ')'")
		}
		if sep.Type == TokRParen {
			return formals, nil
		}
		if sep.Type != TokComma {
			return nil, SyntaxError{Pos: sep.Span.Start, SSM: ssmExpectFormalArglist.String(), Expect: "',' or ')'", Message: "illegal input in formal list: got " + sep.String()}
		}
	}
}

func (p *Parser) parseIfKeyword(s *parseState, kw Token) (Ref, error) {
	openTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmExpectExpr, "'('")
	}
	if openTok.Type != TokLParen {
		return NilRef, SyntaxError{Pos: openTok.Span.Start, SSM: ssmExpectExpr.String(), Expect: "'('", Message: "illegal input: expected '(' after 'if', got " + openTok.String()}
	}
	test, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}
	closeTok, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmExpectExpr, "')'")
	}
	if closeTok.Type != TokRParen {
		return NilRef, SyntaxError{Pos: closeTok.Span.Start, SSM: ssmExpectExpr.String(), Expect: "')'", Message: "illegal input: expected ')', got " + closeTok.String()}
	}
	thenKw, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmExpectExpr, "'then'")
	}
	if thenKw.Type != TokKwThen {
		return NilRef, SyntaxError{Pos: thenKw.Span.Start, SSM: ssmExpectExpr.String(), Expect: "'then'", Message: "illegal input: expected 'then', got " + thenKw.String()}
	}
	thenE, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}
	elseKw, ok := s.next()
	if !ok {
		return NilRef, needMoreOrIncomplete(s, ssmExpectExpr, "'else'")
	}
	if elseKw.Type != TokKwElse {
		return NilRef, SyntaxError{Pos: elseKw.Span.Start, SSM: ssmExpectExpr.String(), Expect: "'else'", Message: "illegal input: expected 'else', got " + elseKw.String()}
	}
	elseE, err := p.parseExpr(s)
	if err != nil {
		return NilRef, err
	}
	node := &IfExpr{Span: toSpan(kw), Test: test, Then: thenE, Else: elseE}
	return p.allocExpr(node)
}

// parseBlock implements `"{" (define ";" | expr ";")* expr? "}"` —
// spec.md §4.5's "sequence" SSM. openTok has already been consumed by
// the caller.
func (p *Parser) parseBlock(s *parseState, openTok Token) (Ref, error) {
	var items []Ref
	for {
		tok, ok := s.peek()
		if !ok {
			return NilRef, errNeedMore
		}
		if tok.Type == TokRBrace {
			s.next()
			node := &SequenceExpr{Span: toSpan(openTok), Items: items}
			return p.allocExpr(node)
		}
		var item Ref
		var err error
		if tok.Type == TokKwDef {
			item, err = p.parseDefine(s, ssmSequence)
			if err == nil {
				semi, ok := s.next()
				if !ok {
					err = needMoreOrIncomplete(s, ssmSequence, "';'")
				} else if semi.Type != TokSemi {
					err = SyntaxError{Pos: semi.Span.Start, SSM: ssmSequence.String(), Expect: "';'", Message: "illegal input in block: expected ';' after define, got " + semi.String()}
				}
			}
		} else {
			item, err = p.parseExpr(s)
			if err == nil {
				tok2, ok := s.peek()
				if !ok {
					return NilRef, errNeedMore
				}
				if tok2.Type == TokSemi {
					s.next()
				} else if tok2.Type != TokRBrace {
					return NilRef, SyntaxError{Pos: tok2.Span.Start, SSM: ssmSequence.String(), Expect: "';' or '}'", Message: "illegal input in block: got " + tok2.String()}
				}
			}
		}
		if err != nil {
			return NilRef, err
		}
		items = append(items, item)
	}
}

// ---- helpers ----

func toSpan(tok Token) Span { return tok.Span }

func (p *Parser) allocExpr(node Expr) (Ref, error) {
	ref, err := p.gc.Alloc(0, node)
	if err != nil {
		return NilRef, err
	}
	return ref, nil
}

// allocConstant boxes a literal's value into the heap, then wraps it
// in a ConstantExpr — two allocations, since the boxed value and the
// AST node that references it are independently GC-managed.
func (p *Parser) allocConstant(tok Token, boxed GCObject) (Ref, error) {
	valueRef, err := p.gc.Alloc(0, boxed)
	if err != nil {
		return NilRef, err
	}
	return p.allocExpr(&ConstantExpr{Span: toSpan(tok), Value: valueRef})
}
