package opt

import (
	"fmt"
	"sort"
	"sync"
)

// ServerSnapshot is a lightweight view of one server's state for selection
// decisions. Value type: safe to hand to policies without exposing registry
// internals.
type ServerSnapshot struct {
	Name        string
	Fitness     float64 // base fitness for the capability the snapshot was taken for
	CurrentLoad int     // in-flight invocations right now
}

// serverEntry is the registry's mutable record for one registered server.
type serverEntry struct {
	desc    ServerDescriptor
	load    int   // in-flight invocations; invariant: load >= 0
	handled int64 // cumulative invocations ever bracketed through this server
}

// ServerRegistry tracks known capability servers and their live load
// counters. Load is mutated only through Acquire/Release, which the
// orchestrator brackets around each dispatch so that load reflects
// concurrently in-flight work, not cumulative call count.
//
// Servers live for the lifetime of the registry; there is no deregistration.
// All methods are safe for concurrent use.
type ServerRegistry struct {
	mu      sync.RWMutex
	servers map[string]*serverEntry
}

// NewServerRegistry creates an empty registry.
func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{servers: make(map[string]*serverEntry)}
}

// Register adds a server. The descriptor must carry a name, at least one
// capability, and an Invoker; duplicate names are rejected.
func (r *ServerRegistry) Register(desc ServerDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("register: server name must not be empty")
	}
	if len(desc.Capabilities) == 0 {
		return fmt.Errorf("register %q: server must declare at least one capability", desc.Name)
	}
	if desc.Invoker == nil {
		return fmt.Errorf("register %q: server must have an invoker", desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.servers[desc.Name]; exists {
		return fmt.Errorf("register %q: server already registered", desc.Name)
	}
	r.servers[desc.Name] = &serverEntry{desc: desc}
	return nil
}

// Snapshots returns the candidate set for a capability: one snapshot per
// server offering it, sorted by name so that selection tie-breaks are
// reproducible. Returns nil when no server offers the capability.
func (r *ServerRegistry) Snapshots(capability string) []ServerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var snaps []ServerSnapshot
	for name, e := range r.servers {
		fitness, ok := e.desc.Capabilities[capability]
		if !ok {
			continue
		}
		snaps = append(snaps, ServerSnapshot{Name: name, Fitness: fitness, CurrentLoad: e.load})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// HasCapability returns true if at least one registered server offers the
// capability.
func (r *ServerRegistry) HasCapability(capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.servers {
		if e.desc.Offers(capability) {
			return true
		}
	}
	return false
}

// Invoker returns the invoker for a registered server.
func (r *ServerRegistry) Invoker(name string) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.servers[name]
	if !ok {
		return nil, false
	}
	return e.desc.Invoker, true
}

// Acquire increments a server's in-flight load counter. Called strictly
// before dispatch. Unknown names are ignored.
func (r *ServerRegistry) Acquire(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.servers[name]; ok {
		e.load++
		e.handled++
	}
}

// Release decrements a server's in-flight load counter. Called strictly
// after completion, success or failure. Clamped at zero so a stray release
// can never drive load negative.
func (r *ServerRegistry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.servers[name]; ok && e.load > 0 {
		e.load--
	}
}

// Load returns a server's current in-flight load (0 for unknown names).
func (r *ServerRegistry) Load(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.servers[name]; ok {
		return e.load
	}
	return 0
}

// LoadDistribution returns the cumulative handled count per server, for
// reporting how work spread across the fleet.
func (r *ServerRegistry) LoadDistribution() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dist := make(map[string]int64, len(r.servers))
	for name, e := range r.servers {
		dist[name] = e.handled
	}
	return dist
}
