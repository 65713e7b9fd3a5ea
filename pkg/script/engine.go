// Package script turns a brief into per-scene scripts. The heuristic engine
// is deterministic and offline; an LLM-backed engine can satisfy the same
// interface without touching the pipeline.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Engine produces a pilot's scene list. Implementations must return scenes
// with contiguous ordinals starting at 0 and durations summing to the
// brief's target.
type Engine interface {
	GenerateScenes(ctx context.Context, brief models.Brief, pilot models.Pilot) ([]models.Scene, error)
}

// Heuristic is the built-in engine: it slices the concept into clauses,
// spreads the target duration evenly and derives visual elements from the
// concept's keywords.
type Heuristic struct{}

// NewHeuristic returns the deterministic engine.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// GenerateScenes splits the brief into pilot.TargetScenes scenes.
func (h *Heuristic) GenerateScenes(_ context.Context, brief models.Brief, pilot models.Pilot) ([]models.Scene, error) {
	n := pilot.TargetScenes
	if n <= 0 {
		return nil, faults.Newf(faults.InputInvalid, "pilot %s has no target scenes", pilot.ID)
	}
	if brief.TargetDurationSec <= 0 {
		return nil, faults.New(faults.InputInvalid, "brief target duration must be positive")
	}

	clauses := splitClauses(brief.Concept)
	perScene := brief.TargetDurationSec / float64(n)
	wantsVO := brief.AudioTier.WantsVoiceover()

	scenes := make([]models.Scene, 0, n)
	for i := 0; i < n; i++ {
		clause := clauses[i%len(clauses)]
		scene := models.Scene{
			ID:                fmt.Sprintf("%s-scene-%03d", pilot.ID, i),
			Ordinal:           i,
			Title:             sceneTitle(clause, i, n),
			Description:       sceneDescription(clause, i, n),
			TargetDurationSec: perScene,
			VisualElements:    keywords(clause, 4),
		}
		if wantsVO {
			scene.VoiceoverText = clause
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

// splitClauses breaks the concept on sentence and clause boundaries. Callers
// reuse clauses cyclically when there are fewer clauses than scenes.
func splitClauses(concept string) []string {
	raw := strings.FieldsFunc(concept, func(r rune) bool {
		return r == '.' || r == ';' || r == ','
	})
	var clauses []string
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		clauses = []string{strings.TrimSpace(concept)}
	}
	if clauses[0] == "" {
		clauses[0] = "untitled concept"
	}
	return clauses
}

func sceneTitle(clause string, i, n int) string {
	words := strings.Fields(clause)
	if len(words) > 5 {
		words = words[:5]
	}
	title := strings.Join(words, " ")
	switch {
	case i == 0:
		return "Opening: " + title
	case i == n-1:
		return "Closing: " + title
	default:
		return title
	}
}

func sceneDescription(clause string, i, n int) string {
	switch {
	case i == 0:
		return "Establishing shot. " + clause
	case i == n-1:
		return clause + ". Hold on the final frame"
	default:
		return clause
	}
}

// keywords picks up to max distinct significant words from the clause.
func keywords(clause string, max int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(strings.ToLower(clause)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}
