package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/queue"
)

// SubmitBriefRequest is the body of POST /api/v1/briefs. RunID is optional;
// resubmitting an existing run id resumes that run from its journal.
type SubmitBriefRequest struct {
	RunID       string       `json:"run_id,omitempty"`
	ProjectName string       `json:"project_name,omitempty"`
	Brief       models.Brief `json:"brief" binding:"required"`
}

// SubmitBriefResponse acknowledges an enqueued run.
type SubmitBriefResponse struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	QueueDepth int    `json:"queue_depth"`
}

// RunSummary is the list-view projection of a run journal.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Concept      string        `json:"concept"`
	Status       string        `json:"status"`
	CurrentStage journal.Stage `json:"current_stage"`
	Progress     int           `json:"progress"`
	BudgetUSD    float64       `json:"budget_usd"`
	SpentUSD     float64       `json:"spent_usd"`
	Simulated    bool          `json:"simulated"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

func (s *Server) submitBrief(c *gin.Context) {
	var req SubmitBriefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = "run-" + uuid.NewString()[:8]
	}

	sub := queue.Submission{
		RunID:       runID,
		ProjectName: req.ProjectName,
		Brief:       req.Brief,
	}
	if err := s.queue.Enqueue(sub); err != nil {
		switch {
		case errors.Is(err, queue.ErrAtCapacity):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "run queue is full, retry later"})
		case faults.KindOf(err) == faults.InputInvalid:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Error("Failed to enqueue brief", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	s.logger.Info("Brief accepted", "run_id", runID, "concept", req.Brief.Concept,
		"budget_usd", req.Brief.BudgetUSD, "queue_depth", s.queue.Depth())
	c.JSON(http.StatusAccepted, SubmitBriefResponse{
		RunID:      runID,
		Status:     "queued",
		QueueDepth: s.queue.Depth(),
	})
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.store.List(limit)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, s.summarize(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": summaries, "count": len(summaries)})
}

func (s *Server) getRun(c *gin.Context) {
	runID := c.Param("id")
	run, err := s.store.Get(runID)
	if err != nil {
		if faults.KindOf(err) == faults.InputInvalid {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		s.logger.Error("Failed to load run", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":       run,
		"spent_usd": s.tracker.CommittedTotal(runID),
		"simulated": run.Simulated(),
	})
}

func (s *Server) cancelRun(c *gin.Context) {
	runID := c.Param("id")
	if s.pool.CancelRun(runID) {
		s.logger.Info("Cancel requested", "run_id", runID)
		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "cancelling"})
		return
	}

	// Not active: distinguish unknown runs from already-finished ones.
	run, err := s.store.Get(runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":  "run is not active",
		"status": run.Status,
	})
}

func (s *Server) health(c *gin.Context) {
	h := s.pool.Health()
	status := http.StatusOK
	state := "healthy"
	if !h.IsHealthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":      state,
		"queue_depth": s.queue.Depth(),
		"workers":     h,
	})
}

func (s *Server) summarize(run *journal.Run) RunSummary {
	return RunSummary{
		RunID:        run.RunID,
		Concept:      run.Concept,
		Status:       run.Status,
		CurrentStage: run.CurrentStage,
		Progress:     run.Progress,
		BudgetUSD:    run.BudgetUSD,
		SpentUSD:     s.tracker.CommittedTotal(run.RunID),
		Simulated:    run.Simulated(),
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
	}
}
