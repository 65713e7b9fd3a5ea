// Package cleanup enforces run retention: terminal runs older than the
// configured age are deleted together with their media directories.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/journal"
)

// Service periodically sweeps the runs directory. Running runs and runs
// younger than the retention window are never touched, so the sweep is
// idempotent and safe alongside active workers.
type Service struct {
	config config.RetentionConfig
	store  *journal.Store
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, store *journal.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{config: cfg, store: store, logger: logger}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"interval", s.config.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.Sweep()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep deletes terminal runs whose last update is older than the retention
// window and returns how many were removed.
func (s *Service) Sweep() int {
	runs, err := s.store.List(0)
	if err != nil {
		s.logger.Error("Retention: listing runs failed", "error", err)
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RunRetentionDays)
	deleted := 0
	for _, run := range runs {
		if run.Status == journal.StatusRunning || run.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(run.RunID); err != nil {
			s.logger.Error("Retention: deleting run failed", "run_id", run.RunID, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Retention: deleted old runs", "count", deleted)
	}
	return deleted
}
