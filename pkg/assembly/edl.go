// Package assembly plans the final edit: it turns a winning pilot's scene
// assets into an edit decision list with competing editorial candidates, and
// hands the recommended candidate to the external renderer.
package assembly

import (
	"bytes"
	"encoding/json"

	"github.com/reelforge/reelforge/pkg/faults"
)

// Transition is the closed set of clip transitions.
type Transition string

// Transition constants.
const (
	TransitionCut           Transition = "cut"
	TransitionFadeIn        Transition = "fade_in"
	TransitionFadeOut       Transition = "fade_out"
	TransitionCrossDissolve Transition = "cross_dissolve"
)

// IsValid checks if the transition is a known value.
func (t Transition) IsValid() bool {
	switch t {
	case TransitionCut, TransitionFadeIn, TransitionFadeOut, TransitionCrossDissolve:
		return true
	default:
		return false
	}
}

// Decision places one trimmed clip on the timeline.
type Decision struct {
	SceneID               string     `json:"scene_id"`
	SelectedVariation     int        `json:"selected_variation"`
	VideoURL              string     `json:"video_url"`
	AudioURL              string     `json:"audio_url,omitempty"`
	InPoint               float64    `json:"in_point"`
	OutPoint              float64    `json:"out_point"`
	TransitionIn          Transition `json:"transition_in"`
	TransitionInDuration  float64    `json:"transition_in_duration"`
	TransitionOut         Transition `json:"transition_out"`
	TransitionOutDuration float64    `json:"transition_out_duration"`
	StartTime             float64    `json:"start_time"`
	Duration              float64    `json:"duration"`
	TextOverlay           string     `json:"text_overlay,omitempty"`
	TextPosition          string     `json:"text_position"`
	TextStyle             string     `json:"text_style"`
	TextStartTime         *float64   `json:"text_start_time,omitempty"`
	TextDuration          *float64   `json:"text_duration,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
}

// Candidate is one editorial take on the same material.
type Candidate struct {
	CandidateID      string     `json:"candidate_id"`
	Name             string     `json:"name"`
	Style            string     `json:"style"`
	TotalDuration    float64    `json:"total_duration"`
	EstimatedQuality float64    `json:"estimated_quality"`
	Description      string     `json:"description"`
	ContinuityIssues []string   `json:"continuity_issues,omitempty"`
	Decisions        []Decision `json:"decisions"`
}

// EDL is the structured edit document external tools consume.
type EDL struct {
	EDLID                  string      `json:"edl_id"`
	ProjectName            string      `json:"project_name"`
	TotalScenes            int         `json:"total_scenes"`
	RecommendedCandidateID string      `json:"recommended_candidate_id"`
	Candidates             []Candidate `json:"candidates"`
}

// Candidate returns the candidate with the given id, or nil.
func (e *EDL) Candidate(candidateID string) *Candidate {
	for i := range e.Candidates {
		if e.Candidates[i].CandidateID == candidateID {
			return &e.Candidates[i]
		}
	}
	return nil
}

// Marshal serializes the EDL. Field order follows the struct declarations,
// so the same document always produces the same bytes.
func (e *EDL) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "encoding EDL")
	}
	return buf.Bytes(), nil
}

// UnmarshalEDL parses a serialized EDL.
func UnmarshalEDL(data []byte) (*EDL, error) {
	var e EDL
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, faults.Wrap(faults.InputInvalid, err, "parsing EDL")
	}
	return &e, nil
}

// ValidateTransitions enforces the transition legality rules on one
// candidate: at most one fade-in on the very first clip, one fade-out on the
// very last, and symmetric cuts or cross-dissolves everywhere in between.
// Mid-video fades are rejected outright.
func ValidateTransitions(c *Candidate) error {
	for i, d := range c.Decisions {
		if !d.TransitionIn.IsValid() || !d.TransitionOut.IsValid() {
			return faults.Newf(faults.InputInvalid,
				"candidate %s decision %d: unknown transition", c.CandidateID, i)
		}
		first, last := i == 0, i == len(c.Decisions)-1

		if d.TransitionIn == TransitionFadeIn && !first {
			return faults.Newf(faults.InputInvalid,
				"candidate %s: fade-in on interior clip %d", c.CandidateID, i)
		}
		if d.TransitionOut == TransitionFadeOut && !last {
			return faults.Newf(faults.InputInvalid,
				"candidate %s: fade-out on interior clip %d", c.CandidateID, i)
		}
		if d.TransitionIn == TransitionFadeOut || d.TransitionOut == TransitionFadeIn {
			return faults.Newf(faults.InputInvalid,
				"candidate %s decision %d: transition direction mismatch", c.CandidateID, i)
		}
		if !last {
			next := c.Decisions[i+1]
			if (d.TransitionOut == TransitionCrossDissolve) != (next.TransitionIn == TransitionCrossDissolve) {
				return faults.Newf(faults.InputInvalid,
					"candidate %s: asymmetric dissolve between clips %d and %d", c.CandidateID, i, i+1)
			}
		}
	}
	return nil
}
