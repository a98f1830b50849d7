package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopInvoker() Invoker {
	return InvokerFunc(func(ctx context.Context, capability string, args map[string]any, rctx RequestContext) (any, error) {
		return "ok", nil
	})
}

func TestRegistry_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		desc ServerDescriptor
	}{
		{"empty name", ServerDescriptor{Capabilities: map[string]float64{"search": 1}, Invoker: nopInvoker()}},
		{"no capabilities", ServerDescriptor{Name: "a", Invoker: nopInvoker()}},
		{"nil invoker", ServerDescriptor{Name: "a", Capabilities: map[string]float64{"search": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewServerRegistry()
			assert.Error(t, r.Register(tt.desc))
		})
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := NewServerRegistry()
	desc := ServerDescriptor{Name: "alpha", Capabilities: map[string]float64{"search": 1}, Invoker: nopInvoker()}
	require.NoError(t, r.Register(desc))
	assert.Error(t, r.Register(desc))
}

func TestRegistry_Snapshots_FilteredAndSorted(t *testing.T) {
	r := NewServerRegistry()
	require.NoError(t, r.Register(ServerDescriptor{Name: "zeta", Capabilities: map[string]float64{"search": 0.8}, Invoker: nopInvoker()}))
	require.NoError(t, r.Register(ServerDescriptor{Name: "alpha", Capabilities: map[string]float64{"search": 1.0, "classify": 0.5}, Invoker: nopInvoker()}))
	require.NoError(t, r.Register(ServerDescriptor{Name: "mid", Capabilities: map[string]float64{"classify": 1.0}, Invoker: nopInvoker()}))

	snaps := r.Snapshots("search")
	require.Len(t, snaps, 2)
	assert.Equal(t, "alpha", snaps[0].Name)
	assert.Equal(t, 1.0, snaps[0].Fitness)
	assert.Equal(t, "zeta", snaps[1].Name)

	assert.Nil(t, r.Snapshots("translate"))
	assert.True(t, r.HasCapability("classify"))
	assert.False(t, r.HasCapability("translate"))
}

func TestRegistry_AcquireRelease(t *testing.T) {
	// GIVEN a registered server
	r := NewServerRegistry()
	require.NoError(t, r.Register(ServerDescriptor{Name: "alpha", Capabilities: map[string]float64{"search": 1}, Invoker: nopInvoker()}))

	// WHEN load is acquired twice and released once
	r.Acquire("alpha")
	r.Acquire("alpha")
	r.Release("alpha")

	// THEN current load reflects in-flight work
	assert.Equal(t, 1, r.Load("alpha"))

	// THEN release clamps at zero rather than going negative
	r.Release("alpha")
	r.Release("alpha")
	assert.Equal(t, 0, r.Load("alpha"))

	// THEN the cumulative handled count is unaffected by releases
	assert.Equal(t, int64(2), r.LoadDistribution()["alpha"])
}

func TestRegistry_UnknownServer(t *testing.T) {
	r := NewServerRegistry()
	r.Acquire("ghost") // no panic
	r.Release("ghost")
	assert.Equal(t, 0, r.Load("ghost"))

	_, ok := r.Invoker("ghost")
	assert.False(t, ok)
}
