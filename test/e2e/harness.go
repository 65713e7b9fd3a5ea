// Package e2e boots a complete ReelForge instance against mock providers and
// exercises it through the HTTP API, the way the dashboard and CLI do.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/api"
	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/provider"
	"github.com/reelforge/reelforge/pkg/queue"
)

// TestApp is a full orchestrator stack on a temp runs directory: queue,
// worker pool, executor on mock providers, and the HTTP API.
type TestApp struct {
	Config    *config.Config
	Store     *journal.Store
	Tracker   *budget.Tracker
	Learnings *learnings.Manager
	Queue     *queue.Queue
	Pool      *queue.WorkerPool

	BaseURL string

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	mutate func(*config.Config)
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig mutates the default config before the stack is wired.
func WithConfig(mutate func(*config.Config)) TestAppOption {
	return func(c *testAppConfig) { c.mutate = mutate }
}

// NewTestApp boots the stack and registers cleanup. Runs execute on mock
// providers unless the brief asks for a live provider by name.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	var tc testAppConfig
	for _, opt := range opts {
		opt(&tc)
	}

	cfg, err := config.Initialize(context.Background(), "")
	require.NoError(t, err)
	cfg.Pilots.Count = 1 // one STATIC pilot keeps scenario runs deterministic
	if tc.mutate != nil {
		tc.mutate(cfg)
	}

	runsDir := t.TempDir()
	store := journal.NewStore(runsDir)
	tracker := budget.NewTracker(runsDir)
	registry := provider.NewRegistry(cfg, provider.StaticCredentials{}, nil)

	local, err := learnings.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	mgr := learnings.NewManager(local,
		learnings.Scope{OrgID: "acme", ActorID: "studio-bot"},
		learnings.RoleActor, nil)

	executor := queue.NewExecutor(cfg, store, tracker, registry, mgr, nil, nil, nil, nil)
	q := queue.NewQueue(cfg.Queue.MaxQueueDepth)
	pool := queue.NewWorkerPool(q, cfg.Queue, executor)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	server := api.NewServer(cfg, store, q, pool, tracker, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &TestApp{
		Config:    cfg,
		Store:     store,
		Tracker:   tracker,
		Learnings: mgr,
		Queue:     q,
		Pool:      pool,
		BaseURL:   ts.URL,
		t:         t,
	}
}

// SubmitBrief posts a brief and returns the accepted run id.
func (a *TestApp) SubmitBrief(body string) string {
	a.t.Helper()
	resp, err := http.Post(a.BaseURL+"/api/v1/briefs", "application/json", strings.NewReader(body))
	require.NoError(a.t, err)
	defer resp.Body.Close()
	require.Equal(a.t, http.StatusAccepted, resp.StatusCode)

	var ack api.SubmitBriefResponse
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&ack))
	require.NotEmpty(a.t, ack.RunID)
	return ack.RunID
}

// WaitForRun polls the run endpoint until the run reaches a terminal status.
func (a *TestApp) WaitForRun(runID string, timeout time.Duration) *journal.Run {
	a.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		run, err := a.Store.Get(runID)
		if err == nil && run.Status != journal.StatusRunning {
			return run
		}
		if time.Now().After(deadline) {
			status := "<missing>"
			if run != nil {
				status = run.Status
			}
			a.t.Fatalf("run %s did not finish within %v (status %s)", runID, timeout, status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// GetRun fetches a run through the API.
func (a *TestApp) GetRun(runID string) (int, map[string]json.RawMessage) {
	a.t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/runs/%s", a.BaseURL, runID))
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}
