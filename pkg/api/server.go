// Package api exposes the run surface over HTTP: brief submission, run
// inspection, cancellation, health and metrics. The dashboard is an external
// consumer of these endpoints; the server itself renders nothing.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/queue"
	"github.com/reelforge/reelforge/pkg/version"
)

// RunCanceller cancels an in-flight run and reports pool health.
type RunCanceller interface {
	CancelRun(runID string) bool
	Health() queue.PoolHealth
}

// Server wires the HTTP handlers to the queue, journal and budget tracker.
type Server struct {
	cfg     *config.Config
	store   *journal.Store
	queue   *queue.Queue
	pool    RunCanceller
	tracker *budget.Tracker
	logger  *slog.Logger
}

// NewServer creates the API server. A nil logger falls back to slog.Default.
func NewServer(cfg *config.Config, store *journal.Store, q *queue.Queue, pool RunCanceller, tracker *budget.Tracker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, store: store, queue: q, pool: pool, tracker: tracker, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.health)

	authed := v1.Group("")
	authed.Use(apiKeyAuth(s.cfg.System.APIKeyEnv, s.logger))
	authed.POST("/briefs", s.submitBrief)
	authed.GET("/runs", s.listRuns)
	authed.GET("/runs/:id", s.getRun)
	authed.POST("/runs/:id/cancel", s.cancelRun)

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", addr, "version", version.Full())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
