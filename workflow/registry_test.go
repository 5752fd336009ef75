package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/openflow/types"
)

func constHandler(key string) HandlerFunc {
	return func(ctx context.Context, params, input types.Object) (types.Object, error) {
		out := input.Clone()
		out[key] = types.Bool(true)
		return out, nil
	}
}

func TestNodeRegistry_ResolveUnknown(t *testing.T) {
	t.Parallel()

	r := NewNodeRegistry()
	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.Equal(t, types.ErrHandlerNotFound, types.GetErrorCode(err))
}

func TestNodeRegistry_LastWriteWins(t *testing.T) {
	t.Parallel()

	r := NewNodeRegistry()
	r.RegisterFunc("x", "first", constHandler("first"))
	r.RegisterFunc("x", "second", constHandler("second"))

	spec, err := r.Resolve("x")
	require.NoError(t, err)
	assert.Equal(t, "second", spec.Description)

	out, err := spec.Handler.Handle(context.Background(), nil, types.Object{})
	require.NoError(t, err)
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "first")
}

func TestNodeRegistry_ListingsSorted(t *testing.T) {
	t.Parallel()

	r := NewNodeRegistry()
	r.RegisterFunc("template", "t", constHandler("t"))
	r.RegisterFunc("agent", "a", constHandler("a"))
	r.RegisterFunc("manual_trigger", "m", constHandler("m"))

	assert.Equal(t, []string{"agent", "manual_trigger", "template"}, r.ListTypes())

	specs := r.ListSpecs()
	require.Len(t, specs, 3)
	assert.Equal(t, "agent", specs[0].Type)
	assert.Equal(t, "template", specs[2].Type)
}

func TestNodeRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewNodeRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.RegisterFunc("shared", "d", constHandler("k"))
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Resolve("shared")
			_ = r.ListTypes()
		}()
	}
	wg.Wait()

	_, err := r.Resolve("shared")
	assert.NoError(t, err)
}
