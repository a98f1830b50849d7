package opt

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencySample is one recorded observation: operation name, how long it
// took, and when it completed. Samples are retained only within the
// monitor's active window.
type LatencySample struct {
	Operation string
	Duration  time.Duration
	Timestamp time.Time
}

// PerformanceMonitor keeps a sliding window of the most recent latency
// samples per operation and flags statistical regressions. It retains
// 2×window samples per operation, oldest displaced first; regression
// detection splits that retention into a baseline half (the prior window)
// and a recent half and compares their means.
//
// The monitor is purely observational: recording never blocks on anything
// but its own mutex and never fails. Failed calls still contribute their
// time-spent-before-failing unless the caller chooses not to record them.
// Safe for concurrent use.
type PerformanceMonitor struct {
	mu           sync.Mutex
	window       int
	mode         string // ThresholdRelative or ThresholdAbsolute
	relThreshold float64
	absThreshold time.Duration
	samples      map[string][]LatencySample
}

// NewPerformanceMonitor creates a monitor from config. Zero or negative
// window falls back to the default; an unrecognized threshold mode falls
// back to relative.
func NewPerformanceMonitor(cfg MonitorConfig) *PerformanceMonitor {
	window := cfg.Window
	if window <= 0 {
		window = DefaultMonitorWindow
	}
	mode := cfg.ThresholdMode
	if mode != ThresholdAbsolute {
		mode = ThresholdRelative
	}
	rel := cfg.RelativeThreshold
	if rel <= 0 {
		rel = DefaultRelativeThreshold
	}
	return &PerformanceMonitor{
		window:       window,
		mode:         mode,
		relThreshold: rel,
		absThreshold: time.Duration(cfg.AbsoluteThreshold),
		samples:      make(map[string][]LatencySample),
	}
}

// Record appends a sample for an operation, displacing the oldest once the
// retention bound (2×window) is reached.
func (m *PerformanceMonitor) Record(operation string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := append(m.samples[operation], LatencySample{
		Operation: operation,
		Duration:  d,
		Timestamp: time.Now(),
	})
	if limit := m.window * 2; len(s) > limit {
		s = append(s[:0], s[len(s)-limit:]...)
	}
	m.samples[operation] = s
}

// Mean returns the mean latency over the retained samples for an operation
// (0 with no samples).
func (m *PerformanceMonitor) Mean(operation string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.samples[operation]
	if len(s) == 0 {
		return 0
	}
	return secondsToDuration(stat.Mean(durationsSeconds(s), nil))
}

// P95 returns the 95th-percentile latency over the retained samples for an
// operation (0 with no samples).
func (m *PerformanceMonitor) P95(operation string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.samples[operation]
	if len(s) == 0 {
		return 0
	}
	secs := durationsSeconds(s)
	sort.Float64s(secs)
	return secondsToDuration(stat.Quantile(0.95, stat.Empirical, secs, nil))
}

// DetectRegression reports whether the operation's recent window is slower
// than its baseline window by more than the configured threshold. With
// fewer than 2×window samples there is no baseline yet and no regression is
// reported, regardless of noise.
func (m *PerformanceMonitor) DetectRegression(operation string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.samples[operation]
	if len(s) < m.window*2 {
		return false
	}
	s = s[len(s)-m.window*2:]
	baseline := stat.Mean(durationsSeconds(s[:m.window]), nil)
	recent := stat.Mean(durationsSeconds(s[m.window:]), nil)

	if m.mode == ThresholdAbsolute {
		return recent-baseline > m.absThreshold.Seconds()
	}
	return recent > baseline*(1+m.relThreshold)
}

// Operations returns the sorted names of all operations with at least one
// retained sample.
func (m *PerformanceMonitor) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.samples))
	for op := range m.samples {
		names = append(names, op)
	}
	sort.Strings(names)
	return names
}

// SampleCount returns the number of retained samples for an operation.
func (m *PerformanceMonitor) SampleCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples[operation])
}

// Samples returns a copy of the retained samples for an operation, oldest
// first. Used by external persistence layered on the monitor.
func (m *PerformanceMonitor) Samples(operation string) []LatencySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.samples[operation]
	out := make([]LatencySample, len(s))
	copy(out, s)
	return out
}

// durationsSeconds converts samples to seconds for gonum statistics.
func durationsSeconds(s []LatencySample) []float64 {
	secs := make([]float64, len(s))
	for i, sample := range s {
		secs[i] = sample.Duration.Seconds()
	}
	return secs
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
