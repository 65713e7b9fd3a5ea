// Package scene runs the per-pilot generation pipeline: biased prompting,
// bounded fan-out to providers, QA scoring, winner selection and parallel
// audio.
package scene

import (
	"fmt"
	"strings"

	"github.com/reelforge/reelforge/pkg/knowledge"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/models"
)

// maxGuidanceLines bounds how much retrieved guidance is injected into one
// prompt.
const maxGuidanceLines = 5

// PromptInputs collects everything that shapes one scene's prompt.
type PromptInputs struct {
	Brief    models.Brief
	Scene    models.Scene
	Figure   *knowledge.Figure
	Guidance []learnings.SearchResult
}

// BuildPrompt assembles the generation prompt: retrieved learnings first (a
// prologue the model reads before the scene), then the scene itself, then
// framing constraints.
func BuildPrompt(in PromptInputs) string {
	var b strings.Builder

	if len(in.Guidance) > 0 {
		b.WriteString("Follow this provider-specific guidance:\n")
		for i, g := range in.Guidance {
			if i == maxGuidanceLines {
				break
			}
			line := guidanceLine(g.Record)
			if line != "" {
				b.WriteString("- " + line + "\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(in.Scene.Description)
	if len(in.Scene.VisualElements) > 0 {
		b.WriteString(". Key elements: " + strings.Join(in.Scene.VisualElements, ", "))
	}
	if in.Figure != nil {
		b.WriteString(fmt.Sprintf(". Feature %s prominently", in.Figure.Name))
		if in.Figure.ImagePath != "" {
			b.WriteString(" (seed image: " + in.Figure.ImagePath + ")")
		}
	}
	b.WriteString(fmt.Sprintf(". Duration %.1f seconds", in.Scene.TargetDurationSec))
	return b.String()
}

// guidanceLine extracts the usable text from a learning record, preferring
// the structured guidance field.
func guidanceLine(rec learnings.Record) string {
	if g, ok := rec.Content["guidance"].(string); ok && g != "" {
		return g
	}
	return rec.TextForSearch
}
