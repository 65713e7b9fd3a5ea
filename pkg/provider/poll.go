package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
)

// minPollInterval floors how often any vendor is polled, regardless of
// configuration. Variable so tests can shorten it.
var minPollInterval = 3 * time.Second

// PollUntilDone drives an async job to a terminal state. The vendor's
// NextPollAfter hint overrides the configured interval when longer; the floor
// always applies. A job still non-terminal at the deadline returns
// POLL_TIMEOUT, a FAILED job PROVIDER_PERMANENT with the vendor's reason, and
// a CANCELLED job the Cancelled kind.
func PollUntilDone(ctx context.Context, p Provider, jobID string, interval, timeout time.Duration, logger *slog.Logger) (*PendingJob, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		if timeout > 0 && time.Now().After(deadline) {
			return nil, faults.Newf(faults.PollTimeout, "%s job %s still pending after %s", p.Name(), jobID, timeout)
		}

		job, err := p.Poll(ctx, jobID)
		if err != nil {
			// Transient poll errors wait a cycle; anything else is final.
			if !faults.KindOf(err).Retryable() {
				return nil, err
			}
			logger.Warn("Poll failed, will retry", "provider", p.Name(), "job_id", jobID, "error", err)
		} else {
			switch job.State {
			case JobSucceeded:
				return job, nil
			case JobFailed:
				return nil, faults.Newf(faults.ProviderPermanent, "%s job %s failed: %s", p.Name(), jobID, job.FailureReason)
			case JobCancelled:
				return nil, faults.Newf(faults.Cancelled, "%s job %s cancelled by vendor", p.Name(), jobID)
			default:
				logger.Debug("Job pending", "provider", p.Name(), "job_id", jobID,
					"state", string(job.State), "progress", job.Progress)
			}
			if job.NextPollAfter > interval {
				interval = job.NextPollAfter
				if interval < minPollInterval {
					interval = minPollInterval
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, faults.Wrap(faults.Cancelled, ctx.Err(), "polling interrupted")
		case <-time.After(interval):
		}
	}
}
