package opt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Task is one named invocation in an orchestration run. Names must be
// unique within the run; DependsOn lists the task names that must complete
// successfully before this task may start.
type Task struct {
	Name       string
	Capability string
	Arguments  map[string]any
	Context    RequestContext
	DependsOn  []string
}

// TaskOutcome is the result of one task: a value or an error, never both.
type TaskOutcome struct {
	Value   any
	Err     error
	Cached  bool          // result came from the cache, no dispatch happened
	Server  string        // server that handled the dispatch (empty for hits and undispatched tasks)
	Latency time.Duration // invocation time (0 for hits and undispatched tasks)
}

// Report is the full result of one orchestration run. Outcomes holds
// exactly one entry per submitted task. Batches records which tasks ran
// together in each round; membership depends only on the dependency graph,
// so it is reproducible run to run.
type Report struct {
	RunID      string
	Outcomes   map[string]TaskOutcome
	Batches    [][]string
	CacheHits  int
	Dispatched int
}

// RequestOrchestrator executes a set of interdependent tasks with maximum
// safe parallelism. Each round it selects every not-yet-started task whose
// dependencies have completed successfully, runs that batch concurrently,
// and waits for the whole batch before computing the next one. Per task it
// consults the cache before dispatch, asks the load balancer for a server,
// and brackets the invocation with registry load accounting; every
// completed invocation is reported to the monitor.
//
// cache and monitor may be nil to run without caching or telemetry. The
// orchestrator is safe for concurrent Run calls.
type RequestOrchestrator struct {
	registry *ServerRegistry
	cache    *ContextAwareCache
	balancer *CapabilityAwareLoadBalancer
	monitor  *PerformanceMonitor

	totalTasks   atomic.Int64
	totalBatches atomic.Int64
}

// NewRequestOrchestrator wires the orchestrator to its collaborators.
// registry and balancer are required; cache and monitor are optional.
func NewRequestOrchestrator(registry *ServerRegistry, cache *ContextAwareCache, balancer *CapabilityAwareLoadBalancer, monitor *PerformanceMonitor) *RequestOrchestrator {
	if registry == nil || balancer == nil {
		logrus.Panicf("orchestrator requires a registry and a balancer")
	}
	return &RequestOrchestrator{
		registry: registry,
		cache:    cache,
		balancer: balancer,
		monitor:  monitor,
	}
}

// TotalTasks returns the cumulative number of tasks this orchestrator has
// resolved across all runs (including cache hits and short-circuited
// failures).
func (o *RequestOrchestrator) TotalTasks() int64 { return o.totalTasks.Load() }

// TotalBatches returns the cumulative number of batches executed across all
// runs.
func (o *RequestOrchestrator) TotalBatches() int64 { return o.totalBatches.Load() }

// Run executes a task set and returns one outcome per task. It fails fast —
// before any dispatch — on a duplicate task name, an unknown dependency, a
// dependency cycle (all ErrInvalidDependencyGraph), or a capability no
// registered server offers (ErrNoServerAvailable). Per-task invocation
// failures never fail the run: they appear in the report as
// InvocationFailedError, and their transitive dependents as
// DependencyFailedError.
//
// Cancelling ctx lets the in-flight batch finish but starts no further
// batches; tasks that never started report the cancellation in their
// outcome.
func (o *RequestOrchestrator) Run(ctx context.Context, tasks []Task) (*Report, error) {
	byName, err := o.validate(tasks)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    uuid.NewString(),
		Outcomes: make(map[string]TaskOutcome, len(tasks)),
	}
	logrus.Debugf("orchestrator: run %s starting with %d tasks", report.RunID, len(tasks))

	succeeded := make(map[string]bool, len(tasks))
	cancelled := false

	for len(report.Outcomes) < len(tasks) {
		// Short-circuit tasks whose dependency chain already failed. Loop to
		// a fixpoint so whole failed subtrees resolve without extra rounds.
		for changed := true; changed; {
			changed = false
			for name, task := range byName {
				if _, done := report.Outcomes[name]; done {
					continue
				}
				if dep, failed := failedDependency(task, report.Outcomes, succeeded); failed {
					report.Outcomes[name] = TaskOutcome{Err: &DependencyFailedError{Task: name, Dependency: dep}}
					changed = true
				}
			}
		}

		batch := readyTasks(byName, report.Outcomes, succeeded)
		if len(batch) == 0 {
			break // everything remaining was short-circuited above
		}

		if cancelled || ctx.Err() != nil {
			cancelled = true
			for _, name := range batch {
				report.Outcomes[name] = TaskOutcome{Err: fmt.Errorf("task %q not started: run cancelled: %w", name, context.Cause(ctx))}
			}
			continue
		}

		report.Batches = append(report.Batches, batch)
		o.totalBatches.Add(1)
		logrus.Debugf("orchestrator: run %s batch %d: %v", report.RunID, len(report.Batches), batch)

		outcomes := make([]TaskOutcome, len(batch))
		var wg sync.WaitGroup
		for i, name := range batch {
			wg.Add(1)
			go func(i int, task Task) {
				defer wg.Done()
				outcomes[i] = o.executeTask(ctx, task)
			}(i, byName[name])
		}
		wg.Wait()

		for i, name := range batch {
			out := outcomes[i]
			report.Outcomes[name] = out
			if out.Err == nil {
				succeeded[name] = true
			}
			if out.Cached {
				report.CacheHits++
			} else if out.Server != "" {
				report.Dispatched++
			}
		}
	}

	o.totalTasks.Add(int64(len(tasks)))
	logrus.Debugf("orchestrator: run %s finished: %d batches, %d hits, %d dispatched",
		report.RunID, len(report.Batches), report.CacheHits, report.Dispatched)
	return report, nil
}

// executeTask resolves one task: cache consult, server selection, load
// bracketing, invocation, cache write-back, monitor sample.
func (o *RequestOrchestrator) executeTask(ctx context.Context, task Task) TaskOutcome {
	if o.cache != nil {
		if value, ok := o.cache.Get(task.Capability, task.Arguments, task.Context); ok {
			return TaskOutcome{Value: value, Cached: true}
		}
	}

	server, err := o.balancer.SelectServer(task.Capability)
	if err != nil {
		return TaskOutcome{Err: err}
	}
	invoker, ok := o.registry.Invoker(server)
	if !ok {
		return TaskOutcome{Err: fmt.Errorf("server %q selected but not registered", server)}
	}

	o.registry.Acquire(server)
	defer o.registry.Release(server)
	start := time.Now()
	value, err := invoker.Invoke(ctx, task.Capability, task.Arguments, task.Context)
	elapsed := time.Since(start)

	if o.monitor != nil {
		o.monitor.Record(task.Name, elapsed)
	}
	if err != nil {
		return TaskOutcome{
			Err:     &InvocationFailedError{Task: task.Name, Server: server, Err: err},
			Server:  server,
			Latency: elapsed,
		}
	}
	if o.cache != nil {
		o.cache.Put(task.Capability, task.Arguments, task.Context, value)
	}
	return TaskOutcome{Value: value, Server: server, Latency: elapsed}
}

// validate rejects task sets with no safe execution order and returns the
// name index. Performed in full before any dispatch.
func (o *RequestOrchestrator) validate(tasks []Task) (map[string]Task, error) {
	byName := make(map[string]Task, len(tasks))
	for _, task := range tasks {
		if task.Name == "" {
			return nil, fmt.Errorf("%w: task with empty name", ErrInvalidDependencyGraph)
		}
		if _, dup := byName[task.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task %q", ErrInvalidDependencyGraph, task.Name)
		}
		byName[task.Name] = task
	}
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("%w: task %q depends on unknown task %q", ErrInvalidDependencyGraph, task.Name, dep)
			}
		}
	}

	// Kahn's algorithm: if no topological order consumes every task, the
	// remainder forms a cycle.
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		indegree[task.Name] += 0
		for _, dep := range task.DependsOn {
			indegree[task.Name]++
			dependents[dep] = append(dependents[dep], task.Name)
		}
	}
	var frontier []string
	for name, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, name)
		}
	}
	ordered := 0
	for len(frontier) > 0 {
		name := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		ordered++
		for _, next := range dependents[name] {
			if indegree[next]--; indegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}
	if ordered != len(tasks) {
		var cyclic []string
		for name, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("%w: dependency cycle involving %v", ErrInvalidDependencyGraph, cyclic)
	}

	// Server availability is fail-fast for the whole run: a task that could
	// never dispatch makes every ordering unsafe for its dependents.
	for _, task := range tasks {
		if !o.registry.HasCapability(task.Capability) {
			return nil, fmt.Errorf("task %q: %w for capability %q", task.Name, ErrNoServerAvailable, task.Capability)
		}
	}
	return byName, nil
}

// failedDependency returns the first dependency of task that completed
// without success, if any.
func failedDependency(task Task, outcomes map[string]TaskOutcome, succeeded map[string]bool) (string, bool) {
	for _, dep := range task.DependsOn {
		if _, done := outcomes[dep]; done && !succeeded[dep] {
			return dep, true
		}
	}
	return "", false
}

// readyTasks returns the name-sorted batch of unstarted tasks whose
// dependencies have all completed successfully.
func readyTasks(byName map[string]Task, outcomes map[string]TaskOutcome, succeeded map[string]bool) []string {
	var ready []string
	for name, task := range byName {
		if _, done := outcomes[name]; done {
			continue
		}
		runnable := true
		for _, dep := range task.DependsOn {
			if !succeeded[dep] {
				runnable = false
				break
			}
		}
		if runnable {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	return ready
}
