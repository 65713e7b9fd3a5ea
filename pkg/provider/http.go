package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/reelforge/reelforge/pkg/faults"
	"golang.org/x/time/rate"
)

// apiClient is the shared HTTP plumbing for live providers: bearer auth,
// per-provider rate limiting and taxonomy classification of failures.
type apiClient struct {
	name    string
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
}

func newAPIClient(name, baseURL, apiKey string, timeout time.Duration, ratePerMin int) *apiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), ratePerMin)
	}
	return &apiClient{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (c *apiClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return faults.Wrap(faults.Cancelled, err, "rate limit wait")
	}
	return nil
}

// doJSON sends a JSON request and decodes a JSON response. Non-2xx statuses
// are classified through the fault taxonomy with a bounded body excerpt; the
// API key never appears in errors.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return faults.Wrap(faults.InputInvalid, err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return faults.Wrap(faults.InputInvalid, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return faults.Wrap(faults.ProviderTransient, err, c.name+" request failed")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return faults.Wrap(faults.ProviderTransient, err, "read response")
	}
	if kind := faults.FromHTTPStatus(resp.StatusCode); kind != "" {
		return faults.Newf(kind, "%s %s %s returned %d: %.300s", c.name, method, path, resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return faults.Wrap(faults.ProviderPermanent, err, "decode response")
		}
	}
	return nil
}

// doBinary sends a JSON request and streams the raw response body to
// destPath. Used by synthesis endpoints that return media directly.
func (c *apiClient) doBinary(ctx context.Context, method, path string, body any, destPath string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, faults.Wrap(faults.InputInvalid, err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, faults.Wrap(faults.InputInvalid, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, faults.Wrap(faults.ProviderTransient, err, c.name+" request failed")
	}
	defer resp.Body.Close()
	if kind := faults.FromHTTPStatus(resp.StatusCode); kind != "" {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, faults.Newf(kind, "%s %s %s returned %d: %.300s", c.name, method, path, resp.StatusCode, string(excerpt))
	}
	return writeStream(destPath, resp.Body)
}

// fetch streams an absolute URL (a vendor's asset CDN) to destPath.
func (c *apiClient) fetch(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, faults.Wrap(faults.InputInvalid, err, "build download request")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, faults.Wrap(faults.ProviderTransient, err, "download failed")
	}
	defer resp.Body.Close()
	if kind := faults.FromHTTPStatus(resp.StatusCode); kind != "" {
		return 0, faults.Newf(kind, "download %s returned %d", url, resp.StatusCode)
	}
	return writeStream(destPath, resp.Body)
}

// writeStream streams to a temp file and renames into place so partial
// downloads never land at the final path.
func writeStream(destPath string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, faults.Wrap(faults.JournalIO, err, "create output dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return 0, faults.Wrap(faults.JournalIO, err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, faults.Wrap(faults.ProviderTransient, err, "stream artifact")
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return 0, faults.Wrap(faults.JournalIO, err, "finalize artifact")
	}
	return n, nil
}
