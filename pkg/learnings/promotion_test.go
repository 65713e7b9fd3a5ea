package learnings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationAdjustsConfidence(t *testing.T) {
	s := newLocal(t)
	p := NewPromoter(s, DefaultPromotionRules())
	ctx := context.Background()
	const ns = "/org/acme/globals"

	id, err := s.Create(ctx, &Record{Namespace: ns, TextForSearch: "x", Confidence: 0.5})
	require.NoError(t, err)

	res, err := p.Validate(ctx, ns, id, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.Validations)
	assert.InDelta(t, 0.6, res.Record.Confidence, 1e-9)

	res, err = p.Validate(ctx, ns, id, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.Validations, "failures do not add validations")
	assert.InDelta(t, 0.5, res.Record.Confidence, 1e-9)

	// Clamped at [0, 1].
	for i := 0; i < 20; i++ {
		res, err = p.Validate(ctx, ns, id, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, res.Record.Confidence)
}

func TestAutoPromotionUserToOrg(t *testing.T) {
	s := newLocal(t)
	p := NewPromoter(s, DefaultPromotionRules())
	ctx := context.Background()
	const userNS = "/org/acme/actor/u1/providers/luma"

	id, err := s.Create(ctx, &Record{
		Namespace:     userNS,
		Content:       map[string]any{"guidance": "avoid fast pans"},
		TextForSearch: "avoid fast pans",
		Confidence:    0.5,
	})
	require.NoError(t, err)

	// USER -> ORG needs 3 validations and confidence >= 0.7.
	var res *ValidationResult
	for i := 0; i < 3; i++ {
		res, err = p.Validate(ctx, userNS, id, true)
		require.NoError(t, err)
	}
	require.True(t, res.Promoted)
	require.NotEmpty(t, res.PromotedID)

	// Promoted copy lives at the org namespace with a back-pointer and one
	// history entry; the original is untouched apart from its counters.
	promoted, err := s.Get(ctx, "/org/acme/providers/luma", res.PromotedID)
	require.NoError(t, err)
	assert.Equal(t, id, promoted.PromotedFrom)
	require.Len(t, promoted.PromotionHistory, 1)
	assert.Equal(t, userNS, promoted.PromotionHistory[0].FromNamespace)
	assert.Equal(t, "USER", promoted.PromotionHistory[0].FromLevel)

	orig, err := s.Get(ctx, userNS, id)
	require.NoError(t, err)
	assert.Empty(t, orig.PromotedFrom)
	assert.Empty(t, orig.PromotionHistory)
	assert.Equal(t, 3, orig.Validations)
}

func TestOrgToPlatformRequiresApproval(t *testing.T) {
	s := newLocal(t)
	p := NewPromoter(s, DefaultPromotionRules())
	ctx := context.Background()
	const orgNS = "/org/acme/globals"

	id, err := s.Create(ctx, &Record{Namespace: orgNS, TextForSearch: "x", Confidence: 0.5})
	require.NoError(t, err)

	// Five successes push validations to 5 and confidence to 1.0.
	var res *ValidationResult
	for i := 0; i < 5; i++ {
		res, err = p.Validate(ctx, orgNS, id, true)
		require.NoError(t, err)
	}
	require.NotNil(t, res.PendingApproval)
	assert.False(t, res.Promoted)
	assert.Equal(t, "/platform/globals", res.PendingApproval.TargetNamespace)

	// Nothing lands at the platform until an admin approves.
	exists, err := s.NamespaceExists(ctx, "/platform/globals")
	require.NoError(t, err)
	assert.False(t, exists)

	// Actors cannot approve.
	_, err = p.Approve(ctx, res.PendingApproval.ID, "eve", RoleActor)
	require.Error(t, err)

	promotedID, err := p.Approve(ctx, res.PendingApproval.ID, "admin", RolePlatformAdmin)
	require.NoError(t, err)
	promoted, err := s.Get(ctx, "/platform/globals", promotedID)
	require.NoError(t, err)
	assert.Equal(t, "admin", promoted.PromotionHistory[0].ApprovedBy)

	// The queue entry is consumed.
	_, err = p.Approve(ctx, res.PendingApproval.ID, "admin", RolePlatformAdmin)
	require.Error(t, err)
}

func TestRejectDropsPending(t *testing.T) {
	s := newLocal(t)
	p := NewPromoter(s, DefaultPromotionRules())
	ctx := context.Background()

	id, err := s.Create(ctx, &Record{Namespace: "/org/acme/globals", TextForSearch: "x", Confidence: 0.9})
	require.NoError(t, err)
	var res *ValidationResult
	for i := 0; i < 5; i++ {
		res, err = p.Validate(ctx, "/org/acme/globals", id, true)
		require.NoError(t, err)
	}
	require.NotNil(t, res.PendingApproval)

	require.NoError(t, p.Reject(res.PendingApproval.ID, RolePlatformAdmin))
	assert.Empty(t, p.Pending())
	exists, err := s.NamespaceExists(ctx, "/platform/globals")
	require.NoError(t, err)
	assert.False(t, exists)
}
