package learnings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/reelforge/reelforge/pkg/faults"
)

// LocalStore keeps one JSON file per namespace under baseDir. Writes are
// atomic (write-temp-then-rename) and serialized per namespace, so concurrent
// validations of different records in one namespace never lose updates.
type LocalStore struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type namespaceFile struct {
	Namespace   string    `json:"namespace"`
	UpdatedAt   time.Time `json:"updated_at"`
	RecordCount int       `json:"record_count"`
	Records     []Record  `json:"records"`
}

// NewLocalStore creates a file-backed store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "memory"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "create memory dir")
	}
	return &LocalStore{baseDir: baseDir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *LocalStore) lockFor(namespace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[namespace]
	if !ok {
		l = &sync.Mutex{}
		s.locks[namespace] = l
	}
	return l
}

// filePath maps a namespace to baseDir/<path>.json, nesting directories per
// segment.
func (s *LocalStore) filePath(namespace string) string {
	rel := strings.Trim(namespace, "/")
	return filepath.Join(s.baseDir, filepath.FromSlash(rel)+".json")
}

func (s *LocalStore) load(namespace string) (*namespaceFile, error) {
	data, err := os.ReadFile(s.filePath(namespace))
	if os.IsNotExist(err) {
		return &namespaceFile{Namespace: namespace}, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "read namespace file")
	}
	var nf namespaceFile
	if err := json.Unmarshal(data, &nf); err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "decode namespace file")
	}
	return &nf, nil
}

func (s *LocalStore) save(nf *namespaceFile) error {
	nf.UpdatedAt = time.Now().UTC()
	nf.RecordCount = len(nf.Records)
	data, err := json.MarshalIndent(nf, "", "  ")
	if err != nil {
		return faults.Wrap(faults.JournalIO, err, "encode namespace file")
	}
	path := s.filePath(nf.Namespace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return faults.Wrap(faults.JournalIO, err, "create namespace dir")
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return faults.Wrap(faults.JournalIO, err, "write namespace file")
	}
	return nil
}

// mutate runs fn against the namespace file under its lock and persists the
// result when fn succeeds.
func (s *LocalStore) mutate(namespace string, fn func(*namespaceFile) error) error {
	l := s.lockFor(namespace)
	l.Lock()
	defer l.Unlock()
	nf, err := s.load(namespace)
	if err != nil {
		return err
	}
	if err := fn(nf); err != nil {
		return err
	}
	return s.save(nf)
}

// Create stores a new record, assigning an id when the caller left it empty.
func (s *LocalStore) Create(_ context.Context, rec *Record) (string, error) {
	if _, err := ParseNamespace(rec.Namespace); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	err := s.mutate(rec.Namespace, func(nf *namespaceFile) error {
		for _, existing := range nf.Records {
			if existing.ID == rec.ID {
				return faults.New(faults.InputInvalid, fmt.Sprintf("record %s already exists in %s", rec.ID, rec.Namespace))
			}
		}
		nf.Records = append(nf.Records, *rec)
		return nil
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Get returns a copy of the record.
func (s *LocalStore) Get(_ context.Context, namespace, id string) (*Record, error) {
	l := s.lockFor(namespace)
	l.Lock()
	defer l.Unlock()
	nf, err := s.load(namespace)
	if err != nil {
		return nil, err
	}
	for i := range nf.Records {
		if nf.Records[i].ID == id {
			rec := nf.Records[i]
			return &rec, nil
		}
	}
	return nil, faults.New(faults.InputInvalid, fmt.Sprintf("record %s not found in %s", id, namespace))
}

// Update replaces the record in place.
func (s *LocalStore) Update(_ context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	return s.mutate(rec.Namespace, func(nf *namespaceFile) error {
		for i := range nf.Records {
			if nf.Records[i].ID == rec.ID {
				nf.Records[i] = *rec
				return nil
			}
		}
		return faults.New(faults.InputInvalid, fmt.Sprintf("record %s not found in %s", rec.ID, rec.Namespace))
	})
}

// Delete removes the record.
func (s *LocalStore) Delete(_ context.Context, namespace, id string) error {
	return s.mutate(namespace, func(nf *namespaceFile) error {
		for i := range nf.Records {
			if nf.Records[i].ID == id {
				nf.Records = append(nf.Records[:i], nf.Records[i+1:]...)
				return nil
			}
		}
		return faults.New(faults.InputInvalid, fmt.Sprintf("record %s not found in %s", id, namespace))
	})
}

// List pages records newest-first.
func (s *LocalStore) List(_ context.Context, namespace string, limit, offset int, tags []string) ([]Record, error) {
	l := s.lockFor(namespace)
	l.Lock()
	defer l.Unlock()
	nf, err := s.load(namespace)
	if err != nil {
		return nil, err
	}
	var out []Record
	for i := range nf.Records {
		if hasAllTags(&nf.Records[i], tags) {
			out = append(out, nf.Records[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search ranks records by word overlap between the query and the record's
// search text, weighted by confidence.
func (s *LocalStore) Search(ctx context.Context, namespaces []string, query string, topK int, tags []string) ([]SearchResult, error) {
	queryTokens := tokenize(query)
	var results []SearchResult
	for _, ns := range namespaces {
		recs, err := s.List(ctx, ns, 0, 0, tags)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			score := overlapScore(queryTokens, tokenize(rec.TextForSearch))
			if score <= 0 {
				continue
			}
			results = append(results, SearchResult{Record: rec, Score: score * (0.5 + 0.5*rec.Confidence)})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// NamespaceExists reports whether the namespace file holds any records.
func (s *LocalStore) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	l := s.lockFor(namespace)
	l.Lock()
	defer l.Unlock()
	nf, err := s.load(namespace)
	if err != nil {
		return false, err
	}
	return len(nf.Records) > 0, nil
}

// DeleteNamespace removes the namespace file.
func (s *LocalStore) DeleteNamespace(_ context.Context, namespace string) error {
	l := s.lockFor(namespace)
	l.Lock()
	defer l.Unlock()
	if err := os.Remove(s.filePath(namespace)); err != nil && !os.IsNotExist(err) {
		return faults.Wrap(faults.JournalIO, err, "delete namespace file")
	}
	return nil
}

// Close is a no-op for the file store.
func (s *LocalStore) Close() error { return nil }

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// overlapScore is the fraction of query tokens present in the text.
func overlapScore(query, text map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for w := range query {
		if _, ok := text[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}
