// Package knowledge holds the figure knowledge graph produced by the
// document-ingestion pipeline. The orchestrator consumes it as opaque data:
// figures live in an arena map keyed by id and all cross-links are id
// references, never pointers into the arena.
package knowledge

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Figure is one atom of the graph: a recurring subject with keywords and an
// optional seed image used for image-to-video generation.
type Figure struct {
	ID         string   `json:"figure_id"`
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	ImagePath  string   `json:"image_path,omitempty"`
	RelatedIDs []string `json:"related_ids,omitempty"`
}

// Graph is the arena of figures. Immutable after construction.
type Graph struct {
	figures map[string]Figure
}

// New builds a graph from a figure list. Duplicate ids keep the last entry.
func New(figures []Figure) *Graph {
	arena := make(map[string]Figure, len(figures))
	for _, f := range figures {
		arena[f.ID] = f
	}
	return &Graph{figures: arena}
}

// Load reads a graph export file. A missing file yields an empty graph, not
// an error; figure matching is optional enrichment.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "read knowledge graph")
	}
	var export struct {
		Figures []Figure `json:"figures"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, faults.Wrap(faults.InputInvalid, err, "decode knowledge graph")
	}
	return New(export.Figures), nil
}

// Len returns the number of figures.
func (g *Graph) Len() int { return len(g.figures) }

// Figure looks up a figure by id.
func (g *Graph) Figure(id string) (Figure, bool) {
	f, ok := g.figures[id]
	return f, ok
}

// Figures returns all figures in deterministic id order.
func (g *Graph) Figures() []Figure {
	ids := make([]string, 0, len(g.figures))
	for id := range g.figures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Figure, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.figures[id])
	}
	return out
}

// Related resolves a figure's cross-links. Dangling ids are skipped.
func (g *Graph) Related(id string) []Figure {
	f, ok := g.figures[id]
	if !ok {
		return nil
	}
	var out []Figure
	for _, rid := range f.RelatedIDs {
		if rel, ok := g.figures[rid]; ok {
			out = append(out, rel)
		}
	}
	return out
}

// minKeywordMatches is the overlap a scene must reach before a figure is
// considered a match.
const minKeywordMatches = 2

// Matcher computes scene-to-figure matches with a cache, so each scene is
// matched once per pilot regardless of how many variations it spawns.
type Matcher struct {
	graph *Graph

	mu    sync.Mutex
	cache map[string]string // scene id -> figure id ("" for no match)
}

// NewMatcher builds a matcher over the graph.
func NewMatcher(g *Graph) *Matcher {
	return &Matcher{graph: g, cache: make(map[string]string)}
}

// Match returns the best-matching figure for a scene, requiring at least two
// keyword hits against the scene's title, description and visual elements.
// Ties break on more hits, then lexicographic figure id for determinism.
func (m *Matcher) Match(scene models.Scene) (Figure, bool) {
	m.mu.Lock()
	if id, ok := m.cache[scene.ID]; ok {
		m.mu.Unlock()
		if id == "" {
			return Figure{}, false
		}
		f, ok := m.graph.Figure(id)
		return f, ok
	}
	m.mu.Unlock()

	sceneTokens := sceneTokenSet(scene)
	bestID := ""
	bestHits := 0
	ids := make([]string, 0, len(m.graph.figures))
	for id := range m.graph.figures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := m.graph.figures[id]
		hits := 0
		for _, kw := range f.Keywords {
			if _, ok := sceneTokens[strings.ToLower(kw)]; ok {
				hits++
			}
		}
		if hits >= minKeywordMatches && hits > bestHits {
			bestID, bestHits = id, hits
		}
	}

	m.mu.Lock()
	m.cache[scene.ID] = bestID
	m.mu.Unlock()
	if bestID == "" {
		return Figure{}, false
	}
	return m.graph.figures[bestID], true
}

func sceneTokenSet(scene models.Scene) map[string]struct{} {
	tokens := make(map[string]struct{})
	add := func(text string) {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,;:!?\"'()[]")
			if w != "" {
				tokens[w] = struct{}{}
			}
		}
	}
	add(scene.Title)
	add(scene.Description)
	for _, el := range scene.VisualElements {
		add(el)
	}
	return tokens
}
