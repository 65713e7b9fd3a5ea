package learnings

import "sort"

// Scope identifies the caller for priority retrieval and access checks.
type Scope struct {
	OrgID     string
	ActorID   string
	SessionID string
}

// WeightedNamespace is one entry in the retrieval chain.
type WeightedNamespace struct {
	Namespace string
	Weight    float64
}

// PriorityNamespaces returns the retrieval chain for a provider, most
// authoritative first. Platform guidance outranks org guidance, which
// outranks actor guidance; within a level the provider-specific namespace is
// consulted alongside globals. Entries whose scope ids are unset are omitted.
func PriorityNamespaces(providerID string, scope Scope) []WeightedNamespace {
	chain := []WeightedNamespace{
		{Namespace: "/platform/globals", Weight: 1.00},
	}
	if providerID != "" {
		chain = append(chain, WeightedNamespace{"/platform/providers/" + providerID, 0.95})
	}
	if scope.OrgID != "" {
		org := "/org/" + scope.OrgID
		chain = append(chain, WeightedNamespace{org + "/globals", 0.85})
		if providerID != "" {
			chain = append(chain, WeightedNamespace{org + "/providers/" + providerID, 0.80})
		}
		if scope.ActorID != "" {
			actor := org + "/actor/" + scope.ActorID
			chain = append(chain, WeightedNamespace{actor + "/globals", 0.70})
			if providerID != "" {
				chain = append(chain, WeightedNamespace{actor + "/providers/" + providerID, 0.65})
			}
			if scope.SessionID != "" {
				chain = append(chain, WeightedNamespace{actor + "/sessions/" + scope.SessionID, 0.50})
			}
		}
	}
	return chain
}

// MergeWeighted combines per-namespace search results into one ranked list.
// Effective score is namespace weight times match score; ties break on
// confidence, then record id for stable output. The result is truncated to
// topK when topK is positive.
func MergeWeighted(byNamespace map[string][]SearchResult, chain []WeightedNamespace, topK int) []SearchResult {
	weights := make(map[string]float64, len(chain))
	for _, wn := range chain {
		weights[wn.Namespace] = wn.Weight
	}
	var merged []SearchResult
	for ns, results := range byNamespace {
		w, ok := weights[ns]
		if !ok {
			continue
		}
		for _, r := range results {
			r.Score *= w
			merged = append(merged, r)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Record.Confidence != merged[j].Record.Confidence {
			return merged[i].Record.Confidence > merged[j].Record.Confidence
		}
		return merged[i].Record.ID < merged[j].Record.ID
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
