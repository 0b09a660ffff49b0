package schematika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSrc(t *testing.T, src string) GCObject {
	t.Helper()
	in := NewInterpreter()
	v, err := in.Run([]byte(src))
	require.NoError(t, err)
	return v
}

func TestEval_IntegerArithmetic(t *testing.T) {
	v := evalSrc(t, "1 + 2 * 3;")
	i, ok := v.(*IntObj)
	require.True(t, ok)
	assert.Equal(t, int64(7), i.V)
}

func TestEval_FloatPromotion(t *testing.T) {
	v := evalSrc(t, "1 + 2.5;")
	f, ok := v.(*FloatObj)
	require.True(t, ok)
	assert.InDelta(t, 3.5, f.V, 1e-9)
}

func TestEval_IntegerDivisionByZeroIsError(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("1 / 0;"))
	require.Error(t, err)
	var evalErr EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEval_FloatDivisionByZeroIsInf(t *testing.T) {
	v := evalSrc(t, "1.0 / 0.0;")
	f := v.(*FloatObj)
	assert.True(t, f.V > 0 && f.V*2 == f.V) // +Inf
}

func TestEval_Comparisons(t *testing.T) {
	v := evalSrc(t, "3 < 5;")
	assert.True(t, v.(*BoolObj).V)
	v = evalSrc(t, "3 >= 5;")
	assert.False(t, v.(*BoolObj).V)
	v = evalSrc(t, "1 == 1.0;")
	assert.True(t, v.(*BoolObj).V)
	v = evalSrc(t, `"a" == "a";`)
	assert.True(t, v.(*BoolObj).V)
	v = evalSrc(t, `"a" == "b";`)
	assert.False(t, v.(*BoolObj).V)
}

func TestEval_IfKeywordAndTernaryAgree(t *testing.T) {
	v1 := evalSrc(t, "if (1 < 2) then 10 else 20;")
	v2 := evalSrc(t, "1 < 2 ? 10 : 20;")
	assert.Equal(t, v1.(*IntObj).V, v2.(*IntObj).V)
	assert.Equal(t, int64(10), v1.(*IntObj).V)
}

func TestEval_IfTestMustBeBool(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("if (1) then 1 else 2;"))
	require.Error(t, err)
	var evalErr EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEval_Define(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def x = 21;"))
	require.NoError(t, err)
	v, err := in.Run([]byte("x + x;"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.(*IntObj).V)
}

func TestEval_LambdaApplication(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def sq = lambda (x: i64) -> i64 { x * x };"))
	require.NoError(t, err)
	v, err := in.Run([]byte("sq(6);"))
	require.NoError(t, err)
	assert.Equal(t, int64(36), v.(*IntObj).V)
}

func TestEval_Closure(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def adder = lambda (n: i64) -> i64 { lambda (x: i64) -> i64 { x + n } };"))
	require.NoError(t, err)
	_, err = in.Run([]byte("def add5 = adder(5);"))
	require.NoError(t, err)
	v, err := in.Run([]byte("add5(10);"))
	require.NoError(t, err)
	assert.Equal(t, int64(15), v.(*IntObj).V)
}

func TestEval_RecursiveDefine(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte(
		"def fact = lambda (n: i64) -> i64 { n <= 1 ? 1 : n * fact(n - 1) };"))
	require.NoError(t, err)
	v, err := in.Run([]byte("fact(6);"))
	require.NoError(t, err)
	assert.Equal(t, int64(720), v.(*IntObj).V)
}

func TestEval_SequenceValueIsLastItem(t *testing.T) {
	v := evalSrc(t, "{ 1; 2; 3 };")
	assert.Equal(t, int64(3), v.(*IntObj).V)
}

func TestEval_EmptySequenceIsUnit(t *testing.T) {
	v := evalSrc(t, "{ };")
	_, ok := v.(*UnitObj)
	assert.True(t, ok)
}

func TestEval_CallingNonProcedureIsError(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def x = 1;"))
	require.NoError(t, err)
	_, err = in.Run([]byte("x(1);"))
	require.Error(t, err)
	var evalErr EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEval_ArityMismatchIsError(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def f = lambda (x: i64) -> i64 { x };"))
	require.NoError(t, err)
	_, err = in.Run([]byte("f(1, 2);"))
	require.Error(t, err)
	var evalErr EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEval_CallInSequenceDoesNotClobberCallerEnv(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def id = lambda (a: i64) -> i64 { a };"))
	require.NoError(t, err)
	_, err = in.Run([]byte("def g = lambda (x: i64) -> i64 { id(x + 100); x };"))
	require.NoError(t, err)
	v, err := in.Run([]byte("g(5);"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.(*IntObj).V)
}

func TestEval_CallAsIfTestDoesNotClobberCallerEnv(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def id = lambda (a: i64) -> i64 { a };"))
	require.NoError(t, err)
	_, err = in.Run([]byte(
		"def g = lambda (x: i64) -> i64 { id(x) == x ? x : (x + 1000) };"))
	require.NoError(t, err)
	v, err := in.Run([]byte("g(7);"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.(*IntObj).V)
}

func TestEval_CallAsCallArgumentDoesNotClobberCallerEnv(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def id = lambda (a: i64) -> i64 { a };"))
	require.NoError(t, err)
	_, err = in.Run([]byte("def add = lambda (a: i64, b: i64) -> i64 { a + b };"))
	require.NoError(t, err)
	_, err = in.Run([]byte("def g = lambda (x: i64) -> i64 { add(id(x + 1), x) };"))
	require.NoError(t, err)
	v, err := in.Run([]byte("g(5);"))
	require.NoError(t, err)
	// add(id(6), x) must see x == 5, not whatever id's own frame left behind.
	assert.Equal(t, int64(11), v.(*IntObj).V)
}

func TestEval_GCSurvivesManyAllocations(t *testing.T) {
	in := NewInterpreter()
	_, err := in.Run([]byte("def inc = lambda (x: i64) -> i64 { x + 1 };"))
	require.NoError(t, err)
	var last GCObject
	for i := 0; i < 5000; i++ {
		v, err := in.Run([]byte("inc(1);"))
		require.NoError(t, err)
		last = v
	}
	assert.Equal(t, int64(2), last.(*IntObj).V)
}
