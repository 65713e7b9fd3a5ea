// ReelForge orchestrator: accepts production briefs over HTTP, drains them
// through a worker pool, and writes run artifacts (journal, media, EDLs)
// under the runs directory. With -brief it runs a single brief to completion
// and exits instead of serving.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/reelforge/reelforge/pkg/api"
	"github.com/reelforge/reelforge/pkg/assembly"
	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/cleanup"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/knowledge"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/provider"
	"github.com/reelforge/reelforge/pkg/queue"
	"github.com/reelforge/reelforge/pkg/version"
)

// Exit codes for one-shot runs.
const (
	exitOK         = 0
	exitFailed     = 1
	exitOverBudget = 2
	exitCancelled  = 130
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	briefPath := flag.String("brief",
		"",
		"Run a single brief file (YAML or JSON) to completion and exit")
	runID := flag.String("run-id",
		"",
		"Run id for -brief mode; reusing an id resumes that run")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	slog.Info("Starting ReelForge",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(exitFailed)
	}

	runsDir := getEnv("RUNS_DIR", cfg.System.RunsDir)
	store := journal.NewStore(runsDir)
	tracker := budget.NewTracker(runsDir)
	registry := provider.NewRegistry(cfg, provider.EnvCredentials{}, nil)

	mgr, err := learnings.NewManagerFromEnv(ctx, nil)
	if err != nil {
		slog.Error("Failed to initialize learnings store", "error", err)
		os.Exit(exitFailed)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Error("Error closing learnings store", "error", err)
		}
	}()

	graphPath := getEnv("KNOWLEDGE_GRAPH_PATH", filepath.Join(*configDir, "knowledge_graph.json"))
	graph, err := knowledge.Load(graphPath)
	if err != nil {
		slog.Error("Failed to load knowledge graph", "path", graphPath, "error", err)
		os.Exit(exitFailed)
	}
	slog.Info("Knowledge graph loaded", "path", graphPath, "figures", graph.Len())

	assembler := assembly.NewFFmpeg(cfg, store, nil)
	if status := assembler.CheckInstalled(ctx); status.Installed {
		slog.Info("FFmpeg available", "version", status.Version, "path", status.Path)
	} else {
		slog.Warn("FFmpeg not found, runs will stop after EDL planning")
	}

	executor := queue.NewExecutor(cfg, store, tracker, registry, mgr, graph, nil, assembler, nil)

	if *briefPath != "" {
		os.Exit(runOnce(ctx, executor, *briefPath, *runID))
	}

	q := queue.NewQueue(cfg.Queue.MaxQueueDepth)
	pool := queue.NewWorkerPool(q, cfg.Queue, executor)
	pool.Start(ctx)

	if cfg.Retention.Enabled {
		sweeper := cleanup.NewService(cfg.Retention, store, nil)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	server := api.NewServer(cfg, store, q, pool, tracker, nil)
	addr := ":" + getEnv("HTTP_PORT", "8080")

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx, addr) }()

	slog.Info("ReelForge started", "addr", addr, "workers", cfg.Queue.WorkerCount)

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(30 * time.Second):
		slog.Warn("Worker pool shutdown timeout exceeded, active runs resume on restart")
	}

	slog.Info("Shutdown complete")
}

// runOnce executes a single brief to a terminal state and maps the outcome
// to an exit code: 0 completed, 1 failed, 2 over budget, 130 cancelled.
func runOnce(ctx context.Context, executor *queue.Executor, briefPath, runID string) int {
	data, err := os.ReadFile(briefPath)
	if err != nil {
		slog.Error("Failed to read brief", "path", briefPath, "error", err)
		return exitFailed
	}
	var brief models.Brief
	if err := yaml.Unmarshal(data, &brief); err != nil {
		slog.Error("Failed to parse brief", "path", briefPath, "error", err)
		return exitFailed
	}

	if runID == "" {
		runID = "run-" + uuid.NewString()[:8]
	}
	slog.Info("Running brief", "run_id", runID, "concept", brief.Concept,
		"budget_usd", brief.BudgetUSD)

	result := executor.Execute(ctx, queue.Submission{
		RunID:       runID,
		ProjectName: brief.Concept,
		Brief:       brief,
	})
	if result == nil {
		return exitFailed
	}

	switch result.Status {
	case journal.StatusCompleted:
		slog.Info("Run completed", "run_id", runID)
		return exitOK
	case journal.StatusCancelled:
		slog.Warn("Run cancelled", "run_id", runID)
		return exitCancelled
	default:
		if faults.KindOf(result.Err) == faults.OverBudget {
			slog.Error("Run stopped over budget", "run_id", runID, "error", result.Err)
			return exitOverBudget
		}
		if result.Err != nil && errors.Is(result.Err, context.Canceled) {
			return exitCancelled
		}
		slog.Error("Run failed", "run_id", runID, "error", result.Err)
		return exitFailed
	}
}
