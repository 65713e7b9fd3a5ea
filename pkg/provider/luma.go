package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// lumaCostPerSecondUSD approximates Dream Machine pricing for reservation
// sizing; the committed amount comes from the tier cost model.
const lumaCostPerSecondUSD = 0.08

// Luma is the Dream Machine video client. Generations are asynchronous: a
// submit returns a job id that is polled until the vendor reports a terminal
// state, then the video asset is downloaded.
type Luma struct {
	api   *apiClient
	model string
}

// NewLuma builds the Luma client. baseURL defaults to the public Dream
// Machine endpoint.
func NewLuma(apiKey, baseURL, model string, timeout time.Duration, ratePerMin int) *Luma {
	if baseURL == "" {
		baseURL = "https://api.lumalabs.ai/dream-machine/v1"
	}
	if model == "" {
		model = "ray-2"
	}
	return &Luma{api: newAPIClient("luma", baseURL, apiKey, timeout, ratePerMin), model: model}
}

// Name returns "luma".
func (l *Luma) Name() string { return "luma" }

// Kind returns VIDEO.
func (l *Luma) Kind() models.MediaKind { return models.KindVideo }

// Describe reports Dream Machine's generation limits.
func (l *Luma) Describe() Capabilities {
	return Capabilities{
		Kind:           models.KindVideo,
		Implemented:    true,
		MinDurationSec: 5,
		MaxDurationSec: 9,
		AspectRatios:   []string{"16:9", "9:16", "1:1", "4:3", "3:4", "21:9"},
		RequiredInputs: []string{"prompt"},
		OptionalInputs: []string{"duration_sec", "aspect_ratio"},
	}
}

// ValidateCredentials hits the credits endpoint, the cheapest authenticated
// call the vendor offers.
func (l *Luma) ValidateCredentials(ctx context.Context) error {
	if l.api.apiKey == "" {
		return faults.New(faults.CredentialMissing, "luma has no API key")
	}
	return l.api.doJSON(ctx, http.MethodGet, "/credits", nil, nil)
}

// EstimateCost sizes the reservation from clip duration.
func (l *Luma) EstimateCost(req Request) float64 {
	d := req.DurationSec
	if d <= 0 {
		d = 5
	}
	return d * lumaCostPerSecondUSD
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
	} `json:"assets"`
}

func (g lumaGeneration) job() *PendingJob {
	job := &PendingJob{ID: g.ID, OutputURL: g.Assets.Video, FailureReason: g.FailureReason}
	switch g.State {
	case "queued":
		job.State = JobQueued
	case "dreaming":
		job.State = JobRunning
		job.Progress = 0.5
	case "completed":
		job.State = JobSucceeded
		job.Progress = 1
	case "failed":
		job.State = JobFailed
	default:
		job.State = JobRunning
	}
	return job
}

// Generate submits a text-to-video generation and returns the pending job.
func (l *Luma) Generate(ctx context.Context, req Request) (Outcome, error) {
	body := map[string]any{
		"prompt": req.Prompt,
		"model":  l.model,
	}
	if req.DurationSec > 0 {
		body["duration"] = fmt.Sprintf("%ds", int(req.DurationSec))
	}
	if req.AspectRatio != "" {
		body["aspect_ratio"] = req.AspectRatio
	}
	var gen lumaGeneration
	if err := l.api.doJSON(ctx, http.MethodPost, "/generations", body, &gen); err != nil {
		return Outcome{}, err
	}
	if gen.ID == "" {
		return Outcome{}, faults.New(faults.ProviderPermanent, "luma returned a generation without an id")
	}
	return Outcome{Job: gen.job()}, nil
}

// Poll fetches the generation state.
func (l *Luma) Poll(ctx context.Context, jobID string) (*PendingJob, error) {
	var gen lumaGeneration
	if err := l.api.doJSON(ctx, http.MethodGet, "/generations/"+url.PathEscape(jobID), nil, &gen); err != nil {
		return nil, err
	}
	return gen.job(), nil
}

// Download streams the completed video to destPath.
func (l *Luma) Download(ctx context.Context, job *PendingJob, destPath string) (*Result, error) {
	if job.OutputURL == "" {
		return nil, faults.Newf(faults.ProviderPermanent, "luma job %s succeeded without a video asset", job.ID)
	}
	if _, err := l.api.fetch(ctx, job.OutputURL, destPath); err != nil {
		return nil, err
	}
	return &Result{
		LocalPath: destPath,
		RemoteURL: job.OutputURL,
		Metadata:  map[string]string{"model": l.model, "job_id": job.ID},
	}, nil
}
