package schematika

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObject_PrintValueScalars(t *testing.T) {
	c := NewCollector(smallGCConfig())
	assert.Equal(t, "true", PrintValue(&BoolObj{V: true}, c, nil))
	assert.Equal(t, "false", PrintValue(&BoolObj{V: false}, c, nil))
	assert.Equal(t, "42", PrintValue(&IntObj{V: 42}, c, nil))
	assert.Equal(t, `"hi"`, PrintValue(&StringObj{V: "hi"}, c, nil))
}

func TestObject_PrintValueArray(t *testing.T) {
	c := NewCollector(smallGCConfig())
	a, err := c.Alloc(0, &IntObj{V: 1})
	assertNoErr(t, err)
	b, err := c.Alloc(0, &IntObj{V: 2})
	assertNoErr(t, err)
	arr := &ArrayObj{Items: []Ref{a, b}}
	assert.Equal(t, "[1, 2]", PrintValue(arr, c, nil))
}

func TestObject_PrintValueUnregisteredFallsBackToTypeTag(t *testing.T) {
	c := NewCollector(smallGCConfig())
	assert.Equal(t, "#<cont.Frame>", PrintValue(&ContFrame{}, c, nil))
}

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
