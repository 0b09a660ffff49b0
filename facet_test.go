package schematika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacet_TypeSeqIsStableAndDense(t *testing.T) {
	a := typeSeqFor("facet-test-type-a")
	b := typeSeqFor("facet-test-type-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, typeSeqFor("facet-test-type-a"))
}

func TestFacet_RegisterAndLookup(t *testing.T) {
	RegisterFacet(FacetID(100), "facet-test-register", "marker")
	impl, ok := ImplFor(FacetID(100), "facet-test-register")
	require.True(t, ok)
	assert.Equal(t, "marker", impl)

	_, ok = ImplFor(FacetID(100), "facet-test-unregistered")
	assert.False(t, ok)
}

func TestFacet_DoubleRegistrationPanics(t *testing.T) {
	RegisterFacet(FacetID(101), "facet-test-dup", "first")
	assert.Panics(t, func() {
		RegisterFacet(FacetID(101), "facet-test-dup", "second")
	})
}

func TestFacet_VariantResolvesThroughTypeTag(t *testing.T) {
	impl, ok := Variant(FacetNumeric, &IntObj{V: 1})
	require.True(t, ok)
	_ = impl
	_, ok = Variant(FacetNumeric, &StringObj{V: "x"})
	assert.False(t, ok)
}

func TestFacet_NumericAsFloat(t *testing.T) {
	var n Numeric = &IntObj{V: 4}
	assert.Equal(t, 4.0, n.AsFloat())
	n = &FloatObj{V: 2.5}
	assert.Equal(t, 2.5, n.AsFloat())
}
