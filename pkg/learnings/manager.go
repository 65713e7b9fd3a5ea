package learnings

import (
	"context"
	"log/slog"
	"os"
)

// Manager is the orchestrator-facing facade: backend selection, the caller's
// scope and role, priority retrieval and the promotion ladder.
type Manager struct {
	store    Store
	scope    Scope
	role     Role
	promoter *Promoter
	logger   *slog.Logger
}

// NewManager wires a manager over an explicit store.
func NewManager(store Store, scope Scope, role Role, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		scope:    scope,
		role:     role,
		promoter: NewPromoter(store, DefaultPromotionRules()),
		logger:   logger,
	}
}

// NewManagerFromEnv picks the back-end from the environment: AgentCore when
// AGENTCORE_MEMORY_ID and AWS_REGION are set, Postgres when
// LEARNINGS_DATABASE_URL is set, local JSON files otherwise.
func NewManagerFromEnv(ctx context.Context, logger *slog.Logger) (*Manager, error) {
	scope := Scope{
		OrgID:   os.Getenv("MEMORY_ORG_ID"),
		ActorID: os.Getenv("MEMORY_ACTOR_ID"),
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)
	switch {
	case os.Getenv("AGENTCORE_MEMORY_ID") != "" && os.Getenv("AWS_REGION") != "":
		store, err = NewAgentCoreStore(ctx, os.Getenv("AGENTCORE_MEMORY_ID"), os.Getenv("AWS_REGION"))
		logger.Info("Learnings backend selected", "backend", "agentcore")
	case os.Getenv("LEARNINGS_DATABASE_URL") != "":
		store, err = NewPostgresStore(ctx, os.Getenv("LEARNINGS_DATABASE_URL"))
		logger.Info("Learnings backend selected", "backend", "postgres")
	default:
		store, err = NewLocalStore(os.Getenv("MEMORY_BASE_PATH"))
		logger.Info("Learnings backend selected", "backend", "local")
	}
	if err != nil {
		return nil, err
	}
	return NewManager(store, scope, RoleActor, logger), nil
}

// Store exposes the underlying back-end.
func (m *Manager) Store() Store { return m.store }

// Scope returns the caller scope.
func (m *Manager) Scope() Scope { return m.scope }

// WithSession returns a manager bound to a session id for session-scoped
// writes and retrieval.
func (m *Manager) WithSession(sessionID string) *Manager {
	copied := *m
	copied.scope.SessionID = sessionID
	return &copied
}

// Record writes a learning after an access check. The record's namespace may
// be a pattern with {org_id}, {actor_id}, {session_id} and {provider}
// placeholders, expanded against the manager's scope.
func (m *Manager) Record(ctx context.Context, namespacePattern, providerID string, rec *Record) (string, error) {
	path, err := BuildNamespace(namespacePattern, map[string]string{
		"org_id":     m.scope.OrgID,
		"actor_id":   m.scope.ActorID,
		"session_id": m.scope.SessionID,
		"provider":   providerID,
	})
	if err != nil {
		return "", err
	}
	ns, err := ParseNamespace(path)
	if err != nil {
		return "", err
	}
	if !CanWrite(ns, m.scope, m.role) {
		return "", accessFault("write", path, m.scope)
	}
	rec.Namespace = path
	if rec.CreatedBy == "" {
		rec.CreatedBy = m.scope.ActorID
	}
	id, err := m.store.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	m.logger.Debug("Learning recorded", "namespace", path, "record_id", id)
	return id, nil
}

// RetrieveForProvider walks the priority chain for a provider and merges
// weighted results. Namespaces the scope may not read are skipped, not
// errors.
func (m *Manager) RetrieveForProvider(ctx context.Context, providerID, query string, topK int) ([]SearchResult, error) {
	chain := PriorityNamespaces(providerID, m.scope)
	byNamespace := make(map[string][]SearchResult, len(chain))
	for _, wn := range chain {
		ns, err := ParseNamespace(wn.Namespace)
		if err != nil {
			return nil, err
		}
		if !CanRead(ns, m.scope, m.role) {
			continue
		}
		results, err := m.store.Search(ctx, []string{wn.Namespace}, query, topK, nil)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			byNamespace[wn.Namespace] = results
		}
	}
	return MergeWeighted(byNamespace, chain, topK), nil
}

// Validate reports one usage outcome for a record and runs the promotion
// ladder.
func (m *Manager) Validate(ctx context.Context, namespace, recordID string, success bool) (*ValidationResult, error) {
	ns, err := ParseNamespace(namespace)
	if err != nil {
		return nil, err
	}
	if !CanWrite(ns, m.scope, m.role) {
		return nil, accessFault("validate", namespace, m.scope)
	}
	res, err := m.promoter.Validate(ctx, namespace, recordID, success)
	if err != nil {
		return nil, err
	}
	if res.Promoted {
		m.logger.Info("Learning promoted", "from", namespace, "record_id", recordID, "promoted_id", res.PromotedID)
	}
	if res.PendingApproval != nil {
		m.logger.Info("Learning promotion queued for approval",
			"from", namespace, "record_id", recordID, "pending_id", res.PendingApproval.ID)
	}
	return res, nil
}

// PendingPromotions lists approval-gated promotions.
func (m *Manager) PendingPromotions() []PendingPromotion { return m.promoter.Pending() }

// ApprovePromotion executes a queued promotion as the given approver.
func (m *Manager) ApprovePromotion(ctx context.Context, pendingID, approver string) (string, error) {
	return m.promoter.Approve(ctx, pendingID, approver, m.role)
}

// RejectPromotion drops a queued promotion.
func (m *Manager) RejectPromotion(pendingID string) error {
	return m.promoter.Reject(pendingID, m.role)
}

// CleanupSession deletes the session namespace after a run completes, keeping
// only what was promoted.
func (m *Manager) CleanupSession(ctx context.Context, sessionID string) error {
	if m.scope.OrgID == "" || m.scope.ActorID == "" || sessionID == "" {
		return nil
	}
	ns := "/org/" + m.scope.OrgID + "/actor/" + m.scope.ActorID + "/sessions/" + sessionID
	return m.store.DeleteNamespace(ctx, ns)
}

// Close releases the back-end.
func (m *Manager) Close() error { return m.store.Close() }
