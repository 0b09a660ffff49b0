package schematika

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGCConfig() *Config {
	cfg := NewConfig()
	cfg.SetInt("gc.generations", 2)
	cfg.SetIntSlice("gc.generation_size", []int{256, 4096})
	cfg.SetFloatSlice("gc.generation_trigger", []float64{0.75, 0.9})
	return cfg
}

func TestGC_AllocAndDeref(t *testing.T) {
	c := NewCollector(smallGCConfig())
	ref, err := c.Alloc(0, &IntObj{V: 7})
	require.NoError(t, err)
	v := c.Deref(ref).(*IntObj)
	assert.Equal(t, int64(7), v.V)
}

func TestGC_CollectionPreservesRootedValue(t *testing.T) {
	c := NewCollector(smallGCConfig())
	var root Ref
	c.AddGCRoot(&root)

	var err error
	root, err = c.Alloc(0, &IntObj{V: 99})
	require.NoError(t, err)

	// Force enough churn to trigger generation-0 collections.
	for i := 0; i < 50; i++ {
		_, err := c.Alloc(0, &IntObj{V: int64(i)})
		require.NoError(t, err)
	}

	got := c.Deref(root).(*IntObj)
	assert.Equal(t, int64(99), got.V)
}

func TestGC_RootSliceSurvivesReallocation(t *testing.T) {
	c := NewCollector(smallGCConfig())
	var values []Ref
	c.AddGCRootSlice(&values)

	for i := 0; i < 20; i++ {
		ref, err := c.Alloc(0, &IntObj{V: int64(i)})
		require.NoError(t, err)
		values = append(values, ref) // reallocates the backing array repeatedly
	}

	c.RequestGC(0)

	for i, ref := range values {
		v := c.Deref(ref).(*IntObj)
		assert.Equal(t, int64(i), v.V)
	}
}

func TestGC_WriteBarrierRemembersCrossGenerationRef(t *testing.T) {
	c := NewCollector(smallGCConfig())
	old, err := c.Alloc(1, &EnvObj{Parent: NilRef})
	require.NoError(t, err)
	c.AddGCRoot(&old)

	young, err := c.Alloc(0, &IntObj{V: 5})
	require.NoError(t, err)

	env := c.Deref(old).(*EnvObj)
	env.Values = append(env.Values, NilRef)
	c.AssignMember(1, &env.Values[0], young)

	// Collecting generation 0 alone must still find `young` via the
	// remembered set, even though nothing in generation 0's own roots
	// points at it directly.
	c.RequestGC(0)

	env = c.Deref(old).(*EnvObj)
	got := c.Deref(env.Values[0]).(*IntObj)
	assert.Equal(t, int64(5), got.V)
}

func TestGC_PromotedObjectsChildRefsAreForwarded(t *testing.T) {
	c := NewCollector(smallGCConfig())
	child, err := c.Alloc(0, &IntObj{V: 42})
	require.NoError(t, err)

	parentRef, err := c.Alloc(0, &EnvObj{Parent: NilRef, Values: []Ref{child}})
	require.NoError(t, err)
	c.AddGCRoot(&parentRef)

	// promoteAge is 1, so this single generation-0 collection promotes
	// the rooted parent straight into generation 1 — and, before the
	// sweep covered the promotion target, its child Ref never got
	// forwarded along with it.
	c.RequestGC(0)
	require.Equal(t, int8(1), parentRef.Gen)

	parent := c.Deref(parentRef).(*EnvObj)
	got := c.Deref(parent.Values[0]).(*IntObj)
	assert.Equal(t, int64(42), got.V)

	// A further generation-0 collection discards generation 0's old
	// "from" space entirely; if the child Ref still pointed there,
	// this would now read a different object or panic out of range.
	for i := 0; i < 5; i++ {
		_, err := c.Alloc(0, &IntObj{V: int64(i)})
		require.NoError(t, err)
	}
	c.RequestGC(0)

	parent = c.Deref(parentRef).(*EnvObj)
	got = c.Deref(parent.Values[0]).(*IntObj)
	assert.Equal(t, int64(42), got.V)
}

func TestGC_ExhaustionIsResourceError(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("gc.generations", 1)
	cfg.SetIntSlice("gc.generation_size", []int{64})
	cfg.SetFloatSlice("gc.generation_trigger", []float64{0.75})
	c := NewCollector(cfg)

	var live []Ref
	c.AddGCRootSlice(&live)
	var lastErr error
	for i := 0; i < 100; i++ {
		ref, err := c.Alloc(0, &IntObj{V: int64(i)})
		if err != nil {
			lastErr = err
			break
		}
		live = append(live, ref) // every allocation stays reachable, so none is ever collectible
	}
	require.Error(t, lastErr)
	var resErr ResourceError
	require.ErrorAs(t, lastErr, &resErr)
}
