package opt

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the recognized configuration options.
const (
	DefaultCacheMaxEntries   = 256
	DefaultPenaltyWeight     = 0.1
	DefaultMonitorWindow     = 50
	DefaultRelativeThreshold = 0.5
)

// Threshold modes for regression detection.
const (
	ThresholdRelative = "relative"
	ThresholdAbsolute = "absolute"
)

// Duration wraps time.Duration so yaml configs can use Go duration strings
// ("250ms", "2m") as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value at line %d", value.Line)
}

// CacheConfig groups ContextAwareCache parameters.
type CacheConfig struct {
	MaxEntries  int      `yaml:"max_entries"`  // LRU capacity (default 256)
	DefaultTTL  Duration `yaml:"default_ttl"`  // TTL applied by Put; 0 = entries never expire
	ContextKeys []string `yaml:"context_keys"` // cache-relevant context fields; empty = all fields
}

// BalancerConfig groups CapabilityAwareLoadBalancer parameters.
type BalancerConfig struct {
	Penalty       string  `yaml:"penalty"`        // "linear" (default) or "normalized"
	PenaltyWeight float64 `yaml:"penalty_weight"` // linear penalty per unit of load (default 0.1)
}

// MonitorConfig groups PerformanceMonitor parameters.
type MonitorConfig struct {
	Window            int      `yaml:"window"`             // samples per comparison window (default 50; retention is 2×window)
	ThresholdMode     string   `yaml:"threshold_mode"`     // "relative" (default) or "absolute"
	RelativeThreshold float64  `yaml:"relative_threshold"` // fractional increase that flags a regression (default 0.5)
	AbsoluteThreshold Duration `yaml:"absolute_threshold"` // mean increase that flags a regression in absolute mode
}

// Config is the full configuration surface of the optimization layer.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Balancer BalancerConfig `yaml:"balancer"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			MaxEntries: DefaultCacheMaxEntries,
		},
		Balancer: BalancerConfig{
			Penalty:       "linear",
			PenaltyWeight: DefaultPenaltyWeight,
		},
		Monitor: MonitorConfig{
			Window:            DefaultMonitorWindow,
			ThresholdMode:     ThresholdRelative,
			RelativeThreshold: DefaultRelativeThreshold,
		},
	}
}

// Validate checks the configuration for values the components cannot run
// with. Zero values that have defaults are allowed; contradictory or
// non-finite values are not.
func (c Config) Validate() error {
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache.default_ttl must not be negative, got %v", time.Duration(c.Cache.DefaultTTL))
	}
	if !IsValidPenalty(c.Balancer.Penalty) {
		return fmt.Errorf("balancer.penalty %q unknown; valid: %v", c.Balancer.Penalty, ValidPenaltyNames())
	}
	if w := c.Balancer.PenaltyWeight; w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("balancer.penalty_weight must be a finite non-negative number, got %v", w)
	}
	if c.Monitor.Window < 0 {
		return fmt.Errorf("monitor.window must not be negative, got %d", c.Monitor.Window)
	}
	switch c.Monitor.ThresholdMode {
	case "", ThresholdRelative:
		if t := c.Monitor.RelativeThreshold; t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("monitor.relative_threshold must be a finite non-negative number, got %v", t)
		}
	case ThresholdAbsolute:
		if c.Monitor.AbsoluteThreshold <= 0 {
			return fmt.Errorf("monitor.absolute_threshold must be positive in absolute mode, got %v",
				time.Duration(c.Monitor.AbsoluteThreshold))
		}
	default:
		return fmt.Errorf("monitor.threshold_mode %q unknown; valid: %s, %s",
			c.Monitor.ThresholdMode, ThresholdRelative, ThresholdAbsolute)
	}
	return nil
}
