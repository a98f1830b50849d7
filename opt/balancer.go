package opt

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// PenaltyFunc maps a server's current in-flight load to a score penalty.
// Implementations must be monotonically non-decreasing in load so that a
// busier server never outranks an otherwise-equal idle one.
type PenaltyFunc func(currentLoad int) float64

// validPenaltyNames maps penalty function names to validity. Unexported to
// prevent mutation.
var validPenaltyNames = map[string]bool{
	"linear":     true,
	"normalized": true,
}

// IsValidPenalty returns true if name is a recognized penalty function.
func IsValidPenalty(name string) bool { return name == "" || validPenaltyNames[name] }

// ValidPenaltyNames returns the sorted recognized penalty function names.
func ValidPenaltyNames() []string {
	names := make([]string, 0, len(validPenaltyNames))
	for n := range validPenaltyNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewPenalty creates a penalty function by name. Empty string defaults to
// "linear". The weight parameter scales the linear penalty (non-positive
// weight falls back to the default); the normalized penalty ignores it and
// stays in [0,1) so no single busy server is starved outright.
// Panics on unrecognized names.
func NewPenalty(name string, weight float64) PenaltyFunc {
	switch name {
	case "", "linear":
		if weight <= 0 {
			weight = DefaultPenaltyWeight
		}
		w := weight
		return func(load int) float64 { return w * float64(load) }
	case "normalized":
		return func(load int) float64 { return float64(load) / float64(1+load) }
	default:
		logrus.Panicf("unknown penalty function %q; valid: %v", name, ValidPenaltyNames())
		return nil
	}
}

// CapabilityAwareLoadBalancer picks, for a capability, the registered
// server with the best combination of declared fitness and current load:
//
//	score = baseFitness(capability) − penalty(currentLoad)
//
// Ties are broken by lowest current load, then lexicographically smallest
// server name, so repeated selections with unchanged state are
// reproducible. Selection never dispatches and never mutates load; the
// orchestrator brackets the actual call with registry Acquire/Release.
type CapabilityAwareLoadBalancer struct {
	registry *ServerRegistry
	penalty  PenaltyFunc
}

// NewCapabilityAwareLoadBalancer creates a balancer over a registry using
// the penalty function named in cfg.
func NewCapabilityAwareLoadBalancer(registry *ServerRegistry, cfg BalancerConfig) *CapabilityAwareLoadBalancer {
	return &CapabilityAwareLoadBalancer{
		registry: registry,
		penalty:  NewPenalty(cfg.Penalty, cfg.PenaltyWeight),
	}
}

// SelectServer returns the name of the best candidate for a capability, or
// an error wrapping ErrNoServerAvailable when no registered server offers
// it.
func (lb *CapabilityAwareLoadBalancer) SelectServer(capability string) (string, error) {
	snaps := lb.registry.Snapshots(capability)
	if len(snaps) == 0 {
		return "", fmt.Errorf("%w for capability %q", ErrNoServerAvailable, capability)
	}

	// Snapshots are sorted by name, so keeping the incumbent on exact ties
	// yields the lexicographically smallest name automatically.
	best := snaps[0]
	bestScore := lb.score(best)
	for _, snap := range snaps[1:] {
		s := lb.score(snap)
		if s > bestScore || (s == bestScore && snap.CurrentLoad < best.CurrentLoad) {
			best = snap
			bestScore = s
		}
	}
	logrus.Debugf("balancer: capability=%q chose %q (score=%.3f load=%d of %d candidates)",
		capability, best.Name, bestScore, best.CurrentLoad, len(snaps))
	return best.Name, nil
}

// score computes fitness minus load penalty for one candidate.
func (lb *CapabilityAwareLoadBalancer) score(s ServerSnapshot) float64 {
	return s.Fitness - lb.penalty(s.CurrentLoad)
}
