package opt

import "context"

// RequestContext carries request-scoped metadata (user identity, locale,
// request timestamp, ...). Which fields participate in cache keys is decided
// by the cache configuration, not by the context itself.
type RequestContext map[string]string

// Invoker is the capability-server boundary: an opaque function that
// executes one capability invocation. Transports implement it (see
// opt/transport for the MCP-backed variant); tests and demos use
// InvokerFunc. Implementations must honor ctx cancellation.
type Invoker interface {
	Invoke(ctx context.Context, capability string, args map[string]any, rctx RequestContext) (any, error)
}

// InvokerFunc adapts an ordinary function to the Invoker interface.
type InvokerFunc func(ctx context.Context, capability string, args map[string]any, rctx RequestContext) (any, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, capability string, args map[string]any, rctx RequestContext) (any, error) {
	return f(ctx, capability, args, rctx)
}

// ServerDescriptor is the static registration-time description of one
// capability server: its identity, the capabilities it offers with a base
// fitness score per capability (static suitability, e.g. specialization),
// and the Invoker used to reach it.
type ServerDescriptor struct {
	Name         string
	Capabilities map[string]float64 // capability name → base fitness
	Invoker      Invoker
}

// Offers returns true if the descriptor declares the capability.
func (d ServerDescriptor) Offers(capability string) bool {
	_, ok := d.Capabilities[capability]
	return ok
}
