package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mcpboost/mcpboost/opt"
	"github.com/mcpboost/mcpboost/opt/history"
)

// demoCmd reproduces the four optimization demonstrations against an
// in-process MCP fleet: context-aware caching, capability-aware load
// balancing, DAG orchestration, and regression monitoring.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the optimization-strategy demonstrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig()
		if err != nil {
			logrus.Fatalf("Loading config: %v", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		registry := opt.NewServerRegistry()
		cleanup, err := buildDemoFleet(ctx, registry)
		if err != nil {
			logrus.Fatalf("Building demo fleet: %v", err)
		}
		defer cleanup()

		cache := opt.NewContextAwareCache(cfg.Cache)
		balancer := opt.NewCapabilityAwareLoadBalancer(registry, cfg.Balancer)
		monitor := opt.NewPerformanceMonitor(cfg.Monitor)
		orch := opt.NewRequestOrchestrator(registry, cache, balancer, monitor)

		demoCaching(ctx, orch, cache)
		demoLoadBalancing(ctx, orch, registry)
		demoOrchestration(ctx, orch)
		demoMonitoring(cfg)

		logrus.Info("All optimization demos completed.")
	},
}

func init() {
	demoCmd.Flags().StringVar(&historyDB, "history-db", "", "SQLite file for persisting monitoring samples (optional)")
	rootCmd.AddCommand(demoCmd)
}

// demoCaching shows how context-aware caching absorbs repeated queries:
// the repeated search per user context hits, the distinct contexts do not
// share entries.
func demoCaching(ctx context.Context, orch *opt.RequestOrchestrator, cache *opt.ContextAwareCache) {
	logrus.Info("--- Context-Aware Caching Demo ---")
	contexts := []opt.RequestContext{
		{"user": "alice", "role": "admin"},
		{"user": "bob", "role": "viewer"},
	}
	queries := []string{"search:logs", "search:metrics", "search:logs"}

	for _, rctx := range contexts {
		for i, q := range queries {
			_, err := orch.Run(ctx, []opt.Task{{
				Name:       fmt.Sprintf("cache-%s-%d", rctx["user"], i),
				Capability: "search",
				Arguments:  map[string]any{"query": q},
				Context:    rctx,
			}})
			if err != nil {
				logrus.Fatalf("Caching demo run failed: %v", err)
			}
		}
	}

	stats := cache.Stats()
	logrus.Infof("  Cache hit rate : %.0f%%", stats.HitRate*100)
	logrus.Infof("  Hits / misses  : %d / %d", stats.Hits, stats.Misses)
}

// demoLoadBalancing pushes one large independent batch through the layer
// and reports how the fleet shared it.
func demoLoadBalancing(ctx context.Context, orch *opt.RequestOrchestrator, registry *opt.ServerRegistry) {
	logrus.Info("--- Capability-Aware Load Balancing Demo ---")
	var tasks []opt.Task
	for capability, count := range map[string]int{"search": 20, "summarize": 5, "classify": 8} {
		for i := 0; i < count; i++ {
			tasks = append(tasks, opt.Task{
				Name:       fmt.Sprintf("lb-%s-%d", capability, i),
				Capability: capability,
				Arguments:  map[string]any{"query": fmt.Sprintf("%s payload %d", capability, i)},
			})
		}
	}

	report, err := orch.Run(ctx, tasks)
	if err != nil {
		logrus.Fatalf("Load balancing demo run failed: %v", err)
	}
	logrus.Infof("  Dispatched %d tasks in %d batch(es)", report.Dispatched, len(report.Batches))
	logrus.Infof("  Load distribution: %v", registry.LoadDistribution())
}

// demoOrchestration runs the dependent research DAG and shows the batch
// structure the dependency levels produce.
func demoOrchestration(ctx context.Context, orch *opt.RequestOrchestrator) {
	logrus.Info("--- Request Orchestration Demo ---")
	tasks := []opt.Task{
		{Name: "fetch_docs", Capability: "search", Arguments: map[string]any{"query": "docs"}},
		{Name: "fetch_schema", Capability: "aggregate", Arguments: map[string]any{"query": "schema"}},
		{Name: "analyze", Capability: "classify", Arguments: map[string]any{"query": "analysis"}, DependsOn: []string{"fetch_docs", "fetch_schema"}},
		{Name: "summarize", Capability: "summarize", Arguments: map[string]any{"query": "summary"}, DependsOn: []string{"analyze"}},
	}

	report, err := orch.Run(ctx, tasks)
	if err != nil {
		logrus.Fatalf("Orchestration demo run failed: %v", err)
	}
	logrus.Infof("  Run %s: %d tasks in %d parallel batches", report.RunID, len(report.Outcomes), len(report.Batches))
	for i, batch := range report.Batches {
		logrus.Infof("    batch %d: %v", i+1, batch)
	}
	for name, outcome := range report.Outcomes {
		if outcome.Err != nil {
			logrus.Warnf("    %s: %v", name, outcome.Err)
			continue
		}
		logrus.Infof("    %s: latency=%s cached=%t", name, outcome.Latency, outcome.Cached)
	}
}

// demoMonitoring feeds a normal then a degraded latency period into a
// dedicated monitor and shows the regression flip. With --history-db the
// samples and the regression event are persisted.
func demoMonitoring(cfg opt.Config) {
	logrus.Info("--- Performance Monitoring Demo ---")
	monitorCfg := cfg.Monitor
	monitorCfg.Window = 20 // short window so the demo's two periods fill it
	monitor := opt.NewPerformanceMonitor(monitorCfg)

	const op = "search"
	for i := 0; i < 25; i++ {
		monitor.Record(op, 30*time.Millisecond+time.Duration(rand.Intn(10))*time.Millisecond)
	}
	logrus.Infof("  Mean after normal period   : %s", monitor.Mean(op))
	logrus.Infof("  Regression detected?       : %t", monitor.DetectRegression(op))

	for i := 0; i < 25; i++ {
		monitor.Record(op, 60*time.Millisecond+time.Duration(rand.Intn(20))*time.Millisecond)
	}
	logrus.Infof("  Mean after degraded period : %s", monitor.Mean(op))
	regressed := monitor.DetectRegression(op)
	logrus.Infof("  Regression detected?       : %t", regressed)

	if historyDB == "" {
		return
	}
	store, err := history.New(historyDB)
	if err != nil {
		logrus.Fatalf("Opening history store: %v", err)
	}
	defer store.Close()

	runID := uuid.NewString()
	var samples []history.Sample
	for _, s := range monitor.Samples(op) {
		samples = append(samples, history.Sample{
			RunID:      runID,
			Operation:  s.Operation,
			Duration:   s.Duration,
			RecordedAt: s.Timestamp,
		})
	}
	if err := store.SaveSamples(samples); err != nil {
		logrus.Fatalf("Persisting samples: %v", err)
	}
	if regressed {
		if err := store.SaveRegression(history.Regression{
			RunID:     runID,
			Operation: op,
			Baseline:  30 * time.Millisecond,
			Recent:    monitor.Mean(op),
		}); err != nil {
			logrus.Fatalf("Persisting regression: %v", err)
		}
	}
	logrus.Infof("  Persisted %d samples to %s (run %s)", len(samples), historyDB, runID)
}
