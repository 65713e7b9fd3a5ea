package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLuma serves the Dream Machine generation lifecycle: submit, two pending
// polls, then completion with a downloadable asset.
func fakeLuma(t *testing.T, pollsUntilDone int32) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("POST /generations", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotEmpty(t, body["prompt"])
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "state": "queued"})
	})
	mux.HandleFunc("GET /generations/gen-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		if n < pollsUntilDone {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "state": "dreaming"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "gen-1", "state": "completed",
			"assets": map[string]string{"video": server.URL + "/assets/gen-1.mp4"},
		})
	})
	mux.HandleFunc("GET /assets/gen-1.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake mp4 bytes"))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLumaSubmitReturnsJob(t *testing.T) {
	server := fakeLuma(t, 1)
	l := NewLuma("test-key", server.URL, "", 10*time.Second, 0)

	out, err := l.Generate(context.Background(), Request{Prompt: "mountains", DurationSec: 5})
	require.NoError(t, err)
	require.NotNil(t, out.Job)
	assert.Nil(t, out.Ready)
	assert.Equal(t, "gen-1", out.Job.ID)
	assert.Equal(t, JobQueued, out.Job.State)
}

func TestLumaPollStateMapping(t *testing.T) {
	server := fakeLuma(t, 2)
	l := NewLuma("test-key", server.URL, "", 10*time.Second, 0)

	job, err := l.Poll(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, job.State)

	job, err = l.Poll(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, job.State)
	assert.NotEmpty(t, job.OutputURL)
}

func TestLumaDownload(t *testing.T) {
	server := fakeLuma(t, 1)
	l := NewLuma("test-key", server.URL, "ray-2", 10*time.Second, 0)

	job, err := l.Poll(context.Background(), "gen-1")
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, job.State)

	dest := filepath.Join(t.TempDir(), "videos", "scene_000_v0.mp4")
	res, err := l.Download(context.Background(), job, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, res.LocalPath)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake mp4 bytes", string(data))
}

func TestLumaFailureClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	l := NewLuma("test-key", server.URL, "", 10*time.Second, 0)
	_, err := l.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, faults.ProviderTransient, faults.KindOf(err))
}

func TestLumaFailedJobSurfacesReason(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /generations/gen-9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "gen-9", "state": "failed", "failure_reason": "content policy",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	l := NewLuma("test-key", server.URL, "", 10*time.Second, 0)
	job, err := l.Poll(context.Background(), "gen-9")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.State)
	assert.Equal(t, "content policy", job.FailureReason)
}
