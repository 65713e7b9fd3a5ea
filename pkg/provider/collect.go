package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
)

// Collect submits a request and drives it to a completed result. Immediate
// outcomes return directly; job outcomes are polled to a terminal state and
// the artifact downloaded. A lapsed polling deadline counts as transient
// exactly once: the whole cycle restarts from a fresh submission, and a
// second lapse returns POLL_TIMEOUT.
func Collect(ctx context.Context, p Provider, req Request, retry RetryConfig,
	pollInterval, pollTimeout time.Duration, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res, err := collectOnce(ctx, p, req, retry, pollInterval, pollTimeout, logger)
	if faults.KindOf(err) == faults.PollTimeout {
		logger.Warn("Generation polling timed out, resubmitting once",
			"provider", p.Name(), "scene_id", req.SceneID)
		res, err = collectOnce(ctx, p, req, retry, pollInterval, pollTimeout, logger)
	}
	return res, err
}

func collectOnce(ctx context.Context, p Provider, req Request, retry RetryConfig,
	pollInterval, pollTimeout time.Duration, logger *slog.Logger) (*Result, error) {
	var out Outcome
	err := Retry(ctx, retry, func() error {
		var genErr error
		out, genErr = p.Generate(ctx, req)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	if out.Ready != nil {
		return out.Ready, nil
	}
	if out.Job == nil {
		return nil, faults.Newf(faults.ProviderPermanent, "%s returned neither a result nor a job", p.Name())
	}

	job, err := PollUntilDone(ctx, p, out.Job.ID, pollInterval, pollTimeout, logger)
	if err != nil {
		return nil, err
	}
	return p.Download(ctx, job, req.OutputPath)
}
