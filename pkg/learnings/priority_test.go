package learnings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityChainFullScope(t *testing.T) {
	chain := PriorityNamespaces("luma", Scope{OrgID: "acme", ActorID: "u1", SessionID: "s9"})
	require.Len(t, chain, 7)

	assert.Equal(t, "/platform/globals", chain[0].Namespace)
	assert.Equal(t, 1.00, chain[0].Weight)
	assert.Equal(t, "/platform/providers/luma", chain[1].Namespace)
	assert.Equal(t, "/org/acme/globals", chain[2].Namespace)
	assert.Equal(t, "/org/acme/providers/luma", chain[3].Namespace)
	assert.Equal(t, "/org/acme/actor/u1/globals", chain[4].Namespace)
	assert.Equal(t, "/org/acme/actor/u1/providers/luma", chain[5].Namespace)
	assert.Equal(t, "/org/acme/actor/u1/sessions/s9", chain[6].Namespace)
	assert.Equal(t, 0.50, chain[6].Weight)

	// Strictly descending weights.
	for i := 1; i < len(chain); i++ {
		assert.Greater(t, chain[i-1].Weight, chain[i].Weight)
	}
}

func TestPriorityChainOmitsUnsetScope(t *testing.T) {
	chain := PriorityNamespaces("luma", Scope{OrgID: "acme"})
	require.Len(t, chain, 4)
	for _, wn := range chain {
		assert.NotContains(t, wn.Namespace, "/actor/")
	}

	chain = PriorityNamespaces("", Scope{})
	require.Len(t, chain, 1)
	assert.Equal(t, "/platform/globals", chain[0].Namespace)
}

func TestMergeWeightedOrdersByEffectiveScore(t *testing.T) {
	chain := PriorityNamespaces("luma", Scope{OrgID: "acme", ActorID: "u1"})
	byNS := map[string][]SearchResult{
		// Raw score 0.9 at weight 0.65 = 0.585
		"/org/acme/actor/u1/providers/luma": {{Record: Record{ID: "actor"}, Score: 0.9}},
		// Raw score 0.7 at weight 1.00 = 0.7, outranks the actor hit.
		"/platform/globals": {{Record: Record{ID: "plat"}, Score: 0.7}},
	}
	merged := MergeWeighted(byNS, chain, 10)
	require.Len(t, merged, 2)
	assert.Equal(t, "plat", merged[0].Record.ID)
	assert.Equal(t, "actor", merged[1].Record.ID)

	merged = MergeWeighted(byNS, chain, 1)
	require.Len(t, merged, 1)
	assert.Equal(t, "plat", merged[0].Record.ID)
}
