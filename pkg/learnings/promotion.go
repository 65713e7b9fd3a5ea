package learnings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/pkg/faults"
)

// PromotionRule gates promotion from one level to the next.
type PromotionRule struct {
	From             Level
	To               Level
	MinValidations   int
	MinConfidence    float64
	RequiresApproval bool
}

// DefaultPromotionRules: session learnings promote to the actor after two
// validations, actor learnings to the org after three, and org learnings to
// the platform only after five validations plus an explicit admin approval.
func DefaultPromotionRules() []PromotionRule {
	return []PromotionRule{
		{From: LevelSession, To: LevelUser, MinValidations: 2, MinConfidence: 0.6},
		{From: LevelUser, To: LevelOrg, MinValidations: 3, MinConfidence: 0.7},
		{From: LevelOrg, To: LevelPlatform, MinValidations: 5, MinConfidence: 0.9, RequiresApproval: true},
	}
}

// confidenceDelta is applied per validation outcome, clamped to [0, 1].
const confidenceDelta = 0.1

// PendingPromotion is a queued approval-gated promotion.
type PendingPromotion struct {
	ID              string    `json:"id"`
	RecordID        string    `json:"record_id"`
	SourceNamespace string    `json:"source_namespace"`
	TargetNamespace string    `json:"target_namespace"`
	QueuedAt        time.Time `json:"queued_at"`
}

// Promoter applies validation outcomes and the promotion ladder on top of a
// Store. Approval-gated promotions are queued in memory until an admin
// approves or rejects them.
type Promoter struct {
	store Store
	rules []PromotionRule

	mu      sync.Mutex
	pending map[string]PendingPromotion
}

// NewPromoter wires a promoter over the store with the given rules.
func NewPromoter(store Store, rules []PromotionRule) *Promoter {
	return &Promoter{store: store, rules: rules, pending: make(map[string]PendingPromotion)}
}

func (p *Promoter) ruleFor(from Level) (PromotionRule, bool) {
	for _, r := range p.rules {
		if r.From == from {
			return r, true
		}
	}
	return PromotionRule{}, false
}

// ValidationResult reports what a Validate call did.
type ValidationResult struct {
	Record          Record
	Promoted        bool
	PromotedID      string
	PendingApproval *PendingPromotion
}

// Validate records one validation outcome against a record. A success bumps
// validations and confidence; a failure lowers confidence only. When the
// record crosses its level's promotion thresholds, an automatic rule copies
// it up immediately and an approval-gated rule queues it instead. The source
// record is never modified by the promotion itself.
func (p *Promoter) Validate(ctx context.Context, namespace, recordID string, success bool) (*ValidationResult, error) {
	rec, err := p.store.Get(ctx, namespace, recordID)
	if err != nil {
		return nil, err
	}
	if success {
		rec.Validations++
		rec.Confidence = clamp01(rec.Confidence + confidenceDelta)
	} else {
		rec.Confidence = clamp01(rec.Confidence - confidenceDelta)
	}
	if err := p.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	res := &ValidationResult{Record: *rec}
	if !success {
		return res, nil
	}

	ns, err := ParseNamespace(namespace)
	if err != nil {
		return nil, err
	}
	rule, ok := p.ruleFor(ns.Level)
	if !ok {
		return res, nil
	}
	if rec.Validations < rule.MinValidations || rec.Confidence < rule.MinConfidence {
		return res, nil
	}

	target, ok := ns.Parent()
	if !ok {
		return res, nil
	}
	if rule.RequiresApproval {
		pend := PendingPromotion{
			ID:              uuid.NewString(),
			RecordID:        rec.ID,
			SourceNamespace: namespace,
			TargetNamespace: target.String(),
			QueuedAt:        time.Now().UTC(),
		}
		p.mu.Lock()
		p.pending[pend.ID] = pend
		p.mu.Unlock()
		res.PendingApproval = &pend
		return res, nil
	}

	promotedID, err := p.promote(ctx, rec, namespace, target.String(), "")
	if err != nil {
		return nil, err
	}
	res.Promoted = true
	res.PromotedID = promotedID
	return res, nil
}

// promote copies the record into the target namespace with a fresh id,
// promoted_from back-pointer and one more promotion_history entry.
func (p *Promoter) promote(ctx context.Context, src *Record, fromNS, toNS, approvedBy string) (string, error) {
	srcNS, err := ParseNamespace(fromNS)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	copyRec := *src
	copyRec.ID = ""
	copyRec.Namespace = toNS
	copyRec.PromotedFrom = src.ID
	copyRec.PromotionHistory = append(append([]PromotionEntry(nil), src.PromotionHistory...), PromotionEntry{
		FromNamespace: fromNS,
		FromLevel:     srcNS.Level.String(),
		PromotedAt:    now,
		ApprovedBy:    approvedBy,
	})
	copyRec.CreatedAt = now
	copyRec.UpdatedAt = now
	return p.store.Create(ctx, &copyRec)
}

// Pending lists queued promotions awaiting approval.
func (p *Promoter) Pending() []PendingPromotion {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingPromotion, 0, len(p.pending))
	for _, pend := range p.pending {
		out = append(out, pend)
	}
	return out
}

// Approve executes a queued promotion. Only platform admins may approve.
func (p *Promoter) Approve(ctx context.Context, pendingID, approver string, role Role) (string, error) {
	if role != RolePlatformAdmin {
		return "", faults.New(faults.InputInvalid, "promotion approval requires a platform admin")
	}
	p.mu.Lock()
	pend, ok := p.pending[pendingID]
	if ok {
		delete(p.pending, pendingID)
	}
	p.mu.Unlock()
	if !ok {
		return "", faults.New(faults.InputInvalid, fmt.Sprintf("no pending promotion %s", pendingID))
	}
	src, err := p.store.Get(ctx, pend.SourceNamespace, pend.RecordID)
	if err != nil {
		return "", err
	}
	return p.promote(ctx, src, pend.SourceNamespace, pend.TargetNamespace, approver)
}

// Reject drops a queued promotion without touching the record.
func (p *Promoter) Reject(pendingID string, role Role) error {
	if role != RolePlatformAdmin {
		return faults.New(faults.InputInvalid, "promotion rejection requires a platform admin")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[pendingID]; !ok {
		return faults.New(faults.InputInvalid, fmt.Sprintf("no pending promotion %s", pendingID))
	}
	delete(p.pending, pendingID)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
