// Package opt provides a client-side optimization layer for capability
// servers reached over a request/response protocol (MCP tool servers being
// the primary target, see opt/transport).
//
// # Reading Guide
//
// Start with these files to understand the layer:
//   - server.go: the Invoker boundary and server descriptors
//   - registry.go: server registration and in-flight load accounting
//   - orchestrator.go: DAG validation, batch rounds, and per-task execution
//
// The remaining components plug into the orchestrator:
//   - cache.go / fingerprint.go: context-aware result caching with LRU + TTL
//   - balancer.go: capability-aware server selection (fitness minus load penalty)
//   - monitor.go: sliding-window latency samples and regression detection
//
// # Architecture
//
// Control flows one way: caller → RequestOrchestrator → {ContextAwareCache,
// CapabilityAwareLoadBalancer, ServerRegistry} → server. Telemetry flows
// orchestrator → PerformanceMonitor. Components are explicitly constructed
// instances passed to the orchestrator; there is no package-level state, so
// tests assemble fresh layers freely.
//
// Sub-packages:
//   - opt/transport: Invoker implementations backed by mcp-go client sessions
//   - opt/history: optional sqlite persistence of monitor samples
package opt
