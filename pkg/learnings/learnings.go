// Package learnings implements the namespaced multi-tenant store of
// guidance records used to bias prompt generation and record outcomes.
// Three back-ends sit behind one Store contract: a local JSON-file store, a
// self-hosted Postgres store, and the hosted AgentCore memory service.
package learnings

import (
	"context"
	"time"
)

// Level orders namespaces PLATFORM > ORG > USER > SESSION.
type Level int

// Namespace levels, lowest first so Level comparisons read naturally.
const (
	LevelSession Level = iota
	LevelUser
	LevelOrg
	LevelPlatform
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSession:
		return "SESSION"
	case LevelUser:
		return "USER"
	case LevelOrg:
		return "ORG"
	case LevelPlatform:
		return "PLATFORM"
	default:
		return "UNKNOWN"
	}
}

// Above returns the next level up, or false at PLATFORM.
func (l Level) Above() (Level, bool) {
	if l >= LevelPlatform {
		return LevelPlatform, false
	}
	return l + 1, true
}

// PromotionEntry documents one promotion step. History is append-only; each
// entry references a source namespace of strictly lower level.
type PromotionEntry struct {
	FromNamespace string    `json:"from_namespace"`
	FromLevel     string    `json:"from_level"`
	PromotedAt    time.Time `json:"promoted_at"`
	ApprovedBy    string    `json:"approved_by,omitempty"`
}

// Record is one stored learning. Promotion never mutates the original; it
// creates a new record at the higher namespace with a back-pointer.
type Record struct {
	ID               string           `json:"record_id"`
	Namespace        string           `json:"namespace"`
	Content          map[string]any   `json:"content"`
	TextForSearch    string           `json:"text_for_search"`
	CreatedBy        string           `json:"created_by"`
	Validations      int              `json:"validations"`
	Confidence       float64          `json:"confidence"` // 0-1
	Tags             []string         `json:"tags,omitempty"`
	PromotedFrom     string           `json:"promoted_from,omitempty"`
	PromotionHistory []PromotionEntry `json:"promotion_history,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// SearchResult pairs a record with its relevance score.
type SearchResult struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// Store is the back-end contract. Retrieval returns value copies; mutating a
// returned record does not affect the store until Update is called.
type Store interface {
	// Create appends a record and returns its id. The record must be durable
	// before Create returns.
	Create(ctx context.Context, rec *Record) (string, error)
	// Get fetches one record by namespace and id.
	Get(ctx context.Context, namespace, id string) (*Record, error)
	// Update replaces a record in place and bumps updated_at.
	Update(ctx context.Context, rec *Record) error
	// Delete removes one record.
	Delete(ctx context.Context, namespace, id string) error
	// List returns records newest-first with limit/offset paging, optionally
	// filtered to records carrying all given tags.
	List(ctx context.Context, namespace string, limit, offset int, tags []string) ([]Record, error)
	// Search scores records in the given namespaces against the query text
	// and returns the top k. The local back-end uses word-overlap scoring;
	// hosted back-ends score semantically.
	Search(ctx context.Context, namespaces []string, query string, topK int, tags []string) ([]SearchResult, error)
	// NamespaceExists reports whether a namespace has any records.
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	// DeleteNamespace removes a namespace and all its records.
	DeleteNamespace(ctx context.Context, namespace string) error
	// Close releases back-end resources.
	Close() error
}

func hasAllTags(rec *Record, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(rec.Tags))
	for _, t := range rec.Tags {
		set[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
