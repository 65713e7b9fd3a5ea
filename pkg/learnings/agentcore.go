package learnings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/reelforge/reelforge/pkg/faults"
)

const agentCoreService = "bedrock-agentcore"

// AgentCoreStore talks to the hosted AgentCore memory service over
// SigV4-signed HTTPS. Selected when AGENTCORE_MEMORY_ID and AWS_REGION are
// both set. Semantic search runs server-side; the store only shapes requests
// and classifies failures.
type AgentCoreStore struct {
	memoryID string
	region   string
	endpoint string
	client   *http.Client
	creds    aws.CredentialsProvider
	signer   *v4.Signer
}

// NewAgentCoreStore resolves AWS credentials from the environment (static
// keys when present, otherwise the default chain) and verifies nothing; the
// first call surfaces credential problems as CREDENTIAL_MISSING faults.
func NewAgentCoreStore(ctx context.Context, memoryID, region string) (*AgentCoreStore, error) {
	if memoryID == "" || region == "" {
		return nil, faults.New(faults.CredentialMissing, "agentcore requires AGENTCORE_MEMORY_ID and AWS_REGION")
	}
	var creds aws.CredentialsProvider
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		creds = credentials.NewStaticCredentialsProvider(key, os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"))
	} else {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, faults.Wrap(faults.CredentialMissing, err, "load aws config")
		}
		creds = cfg.Credentials
	}
	return &AgentCoreStore{
		memoryID: memoryID,
		region:   region,
		endpoint: fmt.Sprintf("https://%s.%s.amazonaws.com", agentCoreService, region),
		client:   &http.Client{Timeout: 30 * time.Second},
		creds:    creds,
		signer:   v4.NewSigner(),
	}, nil
}

// agentCoreRecord is the wire shape stored in the service. The full Record is
// carried in content so round-trips preserve promotion history.
type agentCoreRecord struct {
	RecordID  string          `json:"recordId"`
	Namespace string          `json:"namespace"`
	Content   json.RawMessage `json:"content"`
}

func (s *AgentCoreStore) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return faults.Wrap(faults.InputInvalid, err, "encode agentcore request")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return faults.Wrap(faults.InputInvalid, err, "build agentcore request")
	}
	req.Header.Set("Content-Type", "application/json")

	hash := sha256.Sum256(payload)
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return faults.Wrap(faults.CredentialMissing, err, "retrieve aws credentials")
	}
	if err := s.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(hash[:]), agentCoreService, s.region, time.Now().UTC()); err != nil {
		return faults.Wrap(faults.CredentialMissing, err, "sign agentcore request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ProviderTransient, err, "agentcore request failed")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return faults.Wrap(faults.ProviderTransient, err, "read agentcore response")
	}
	if kind := faults.FromHTTPStatus(resp.StatusCode); kind != "" {
		return faults.Newf(kind, "agentcore %s %s returned %d: %.200s", method, path, resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return faults.Wrap(faults.ProviderPermanent, err, "decode agentcore response")
		}
	}
	return nil
}

func (s *AgentCoreStore) recordsPath() string {
	return "/memories/" + url.PathEscape(s.memoryID) + "/records"
}

// Create stores a record in the hosted memory.
func (s *AgentCoreStore) Create(ctx context.Context, rec *Record) (string, error) {
	if _, err := ParseNamespace(rec.Namespace); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	content, err := json.Marshal(rec)
	if err != nil {
		return "", faults.Wrap(faults.InputInvalid, err, "encode record")
	}
	var resp struct {
		RecordID string `json:"recordId"`
	}
	err = s.do(ctx, http.MethodPost, s.recordsPath(), map[string]any{
		"namespace": rec.Namespace,
		"content":   json.RawMessage(content),
	}, &resp)
	if err != nil {
		return "", err
	}
	rec.ID = resp.RecordID
	return resp.RecordID, nil
}

func decodeAgentCoreRecord(wire agentCoreRecord) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(wire.Content, &rec); err != nil {
		return nil, faults.Wrap(faults.ProviderPermanent, err, "decode stored record")
	}
	rec.ID = wire.RecordID
	rec.Namespace = wire.Namespace
	return &rec, nil
}

// Get fetches one record.
func (s *AgentCoreStore) Get(ctx context.Context, namespace, id string) (*Record, error) {
	var wire agentCoreRecord
	path := s.recordsPath() + "/" + url.PathEscape(id) + "?namespace=" + url.QueryEscape(namespace)
	if err := s.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return decodeAgentCoreRecord(wire)
}

// Update replaces the stored content for a record id.
func (s *AgentCoreStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	content, err := json.Marshal(rec)
	if err != nil {
		return faults.Wrap(faults.InputInvalid, err, "encode record")
	}
	path := s.recordsPath() + "/" + url.PathEscape(rec.ID)
	return s.do(ctx, http.MethodPut, path, map[string]any{
		"namespace": rec.Namespace,
		"content":   json.RawMessage(content),
	}, nil)
}

// Delete removes a record.
func (s *AgentCoreStore) Delete(ctx context.Context, namespace, id string) error {
	path := s.recordsPath() + "/" + url.PathEscape(id) + "?namespace=" + url.QueryEscape(namespace)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

// List pages records in a namespace.
func (s *AgentCoreStore) List(ctx context.Context, namespace string, limit, offset int, tags []string) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var resp struct {
		Records []agentCoreRecord `json:"records"`
	}
	err := s.do(ctx, http.MethodPost, s.recordsPath()+"/list", map[string]any{
		"namespace":  namespace,
		"maxResults": limit,
		"offset":     offset,
	}, &resp)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, wire := range resp.Records {
		rec, err := decodeAgentCoreRecord(wire)
		if err != nil {
			return nil, err
		}
		if hasAllTags(rec, tags) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Search runs the service's semantic retrieval across the given namespaces.
func (s *AgentCoreStore) Search(ctx context.Context, namespaces []string, query string, topK int, tags []string) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 20
	}
	var out []SearchResult
	for _, ns := range namespaces {
		var resp struct {
			Records []struct {
				agentCoreRecord
				Score float64 `json:"relevanceScore"`
			} `json:"memoryRecords"`
		}
		err := s.do(ctx, http.MethodPost, "/memories/"+url.PathEscape(s.memoryID)+"/retrieve", map[string]any{
			"namespace": ns,
			"searchCriteria": map[string]any{
				"searchQuery": query,
				"topK":        topK,
			},
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, wire := range resp.Records {
			rec, err := decodeAgentCoreRecord(wire.agentCoreRecord)
			if err != nil {
				return nil, err
			}
			if hasAllTags(rec, tags) {
				out = append(out, SearchResult{Record: *rec, Score: wire.Score})
			}
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// NamespaceExists reports whether the namespace has any records.
func (s *AgentCoreStore) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	recs, err := s.List(ctx, namespace, 1, 0, nil)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// DeleteNamespace removes every record in the namespace.
func (s *AgentCoreStore) DeleteNamespace(ctx context.Context, namespace string) error {
	for {
		recs, err := s.List(ctx, namespace, 100, 0, nil)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		for _, rec := range recs {
			if err := s.Delete(ctx, namespace, rec.ID); err != nil {
				return err
			}
		}
	}
}

// Close is a no-op for the hosted store.
func (s *AgentCoreStore) Close() error { return nil }
