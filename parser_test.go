package schematika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) (*Parser, *Collector, *GlobalSymtab) {
	t.Helper()
	cfg := NewConfig()
	gc := NewCollector(cfg)
	strings := NewStringTable(cfg)
	types := NewTypeTable()
	globals := NewGlobalSymtab()
	return NewParser(gc, strings, types, globals), gc, globals
}

// feedSource tokenizes src and feeds every token through p, returning
// the root of the single completed toplevel form (failing the test if
// more or fewer than one completes).
func feedSource(t *testing.T, p *Parser, src string) Ref {
	t.Helper()
	tok := NewTokenizer()
	var forms []Ref
	got, _, err := tok.Scan([]byte(src), true)
	require.NoError(t, err)
	for got.Type != TokEOF {
		expr, ok, err := p.Feed(got)
		require.NoError(t, err)
		if ok {
			forms = append(forms, expr)
		}
		got, _, err = tok.Scan(nil, true)
		require.NoError(t, err)
	}
	final, err := p.AtEOF()
	require.NoError(t, err)
	if !final.IsNil() {
		forms = append(forms, final)
	}
	require.Len(t, forms, 1, "expected exactly one completed toplevel form")
	return forms[0]
}

func TestParser_Define(t *testing.T) {
	p, gc, globals := newTestParser(t)
	root := feedSource(t, p, "def x = 1;")

	def, ok := gc.Deref(root).(*DefineExpr)
	require.True(t, ok)
	assert.Equal(t, "x", def.Name)
	slot, ok := globals.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, slot, def.GlobalSlot)

	rhs, ok := gc.Deref(def.Rhs).(*ConstantExpr)
	require.True(t, ok)
	iv, ok := gc.Deref(rhs.Value).(*IntObj)
	require.True(t, ok)
	assert.Equal(t, int64(1), iv.V)
}

func TestParser_DefineWithDeclaredType(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "def x: i64 = 1;")
	def := gc.Deref(root).(*DefineExpr)
	assert.Equal(t, "i64", def.DeclType)
}

func TestParser_InfixPrecedence(t *testing.T) {
	p, gc, _ := newTestParser(t)
	// 1 + 2 * 3 should parse as 1 + (2 * 3).
	root := feedSource(t, p, "1 + 2 * 3;")
	add := gc.Deref(root).(*ApplyExpr)
	fn := gc.Deref(add.Fn).(*VariableExpr)
	assert.Equal(t, "+", fn.Name)
	require.Len(t, add.Args, 2)

	mul := gc.Deref(add.Args[1]).(*ApplyExpr)
	mulFn := gc.Deref(mul.Fn).(*VariableExpr)
	assert.Equal(t, "*", mulFn.Name)
}

func TestParser_TernaryDesugarsToIf(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "1 < 2 ? 3 : 4;")
	ifExpr, ok := gc.Deref(root).(*IfExpr)
	require.True(t, ok)

	cmp := gc.Deref(ifExpr.Test).(*ApplyExpr)
	cmpFn := gc.Deref(cmp.Fn).(*VariableExpr)
	assert.Equal(t, "<", cmpFn.Name)
}

func TestParser_IfKeyword(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "if (1 < 2) then 3 else 4;")
	_, ok := gc.Deref(root).(*IfExpr)
	require.True(t, ok)
}

func TestParser_Lambda(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "lambda (x: i64) -> i64 { x + 1 };")
	lam, ok := gc.Deref(root).(*LambdaExpr)
	require.True(t, ok)
	require.Len(t, lam.Formals, 1)
	assert.Equal(t, "x", lam.Formals[0].Name)
	assert.Equal(t, "i64", lam.ReturnType)

	body := gc.Deref(lam.Body).(*SequenceExpr)
	require.Len(t, body.Items, 1)
	apply := gc.Deref(body.Items[0]).(*ApplyExpr)
	fn := gc.Deref(apply.Fn).(*VariableExpr)
	assert.Equal(t, "+", fn.Name)

	// The formal `x` resolves to the lambda's own frame (link 0), not
	// the global symtab.
	xRef := apply.Args[0]
	xVar := gc.Deref(xRef).(*VariableExpr)
	assert.Equal(t, 0, xVar.ILink)
}

func TestParser_CallExpression(t *testing.T) {
	p, gc, _ := newTestParser(t)
	feedSource(t, p, "def f = lambda (x: i64) -> i64 { x };")
	root := feedSource(t, p, "f(1);")

	apply, ok := gc.Deref(root).(*ApplyExpr)
	require.True(t, ok)
	fn := gc.Deref(apply.Fn).(*VariableExpr)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, -1, fn.ILink)
	require.Len(t, apply.Args, 1)
}

func TestParser_EmptyBlockIsUnitSequence(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "{ };")
	seq, ok := gc.Deref(root).(*SequenceExpr)
	require.True(t, ok)
	assert.Len(t, seq.Items, 0)
}

func TestParser_BlockWithDefineParsesAsSequence(t *testing.T) {
	p, gc, _ := newTestParser(t)
	root := feedSource(t, p, "{ def y = 1; y };")
	seq := gc.Deref(root).(*SequenceExpr)
	require.Len(t, seq.Items, 2)
	_, ok := gc.Deref(seq.Items[0]).(*DefineExpr)
	require.True(t, ok)
}

func TestParser_UnboundSymbolIsNameError(t *testing.T) {
	p, _, _ := newTestParser(t)
	tok := NewTokenizer()
	got, _, err := tok.Scan([]byte("nope;"), true)
	require.NoError(t, err)
	for got.Type != TokEOF {
		_, _, err := p.Feed(got)
		if err != nil {
			var nameErr NameError
			require.ErrorAs(t, err, &nameErr)
			assert.Equal(t, "nope", nameErr.Name)
			return
		}
		got, _, err = tok.Scan(nil, true)
		require.NoError(t, err)
	}
	t.Fatal("expected a NameError")
}

func TestParser_IncompleteFormAtEOFIsSyntaxError(t *testing.T) {
	p, _, _ := newTestParser(t)
	tok := NewTokenizer()
	got, _, err := tok.Scan([]byte("def x = "), true)
	require.NoError(t, err)
	for got.Type != TokEOF {
		_, _, err := p.Feed(got)
		require.NoError(t, err)
		got, _, err = tok.Scan(nil, true)
		require.NoError(t, err)
	}
	_, err = p.AtEOF()
	require.Error(t, err)
	var synErr SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestParser_IllegalTokenResetsParser(t *testing.T) {
	p, _, _ := newTestParser(t)
	tok := NewTokenizer()
	got, _, err := tok.Scan([]byte("def ) "), true)
	require.NoError(t, err)
	sawErr := false
	for got.Type != TokEOF {
		_, _, err := p.Feed(got)
		if err != nil {
			sawErr = true
			break
		}
		got, _, err = tok.Scan(nil, true)
		require.NoError(t, err)
	}
	require.True(t, sawErr)
	// The parser discarded the bad form; it should accept a fresh one.
	root := feedSource(t, p, "1;")
	_ = root
}
