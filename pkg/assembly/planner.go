package assembly

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/scene"
)

// candidatesFile is the EDL document name under edl/.
const candidatesFile = "edit_candidates"

var defaultStyles = []string{"safe", "dynamic", "balanced"}

// Planner builds candidate edits from a winning pilot's outcome.
type Planner struct {
	cfg    *config.Config
	store  *journal.Store
	logger *slog.Logger
}

// NewPlanner wires the assembly planner.
func NewPlanner(cfg *config.Config, store *journal.Store, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, store: store, logger: logger}
}

// BuildEDL produces the edit document plus the mix timeline for the winning
// outcome. Scenes are assembled in ordinal order regardless of generation
// order; failed scenes leave a continuity issue on every candidate.
func (p *Planner) BuildEDL(runID, projectName string, outcome *scene.Outcome) (*EDL, []AudioTrack, error) {
	if outcome == nil || len(outcome.Scenes) == 0 {
		return nil, nil, faults.New(faults.InputInvalid, "assembly needs at least one scene result")
	}

	ordered := make([]scene.SceneResult, len(outcome.Scenes))
	copy(ordered, outcome.Scenes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scene.Ordinal < ordered[j].Scene.Ordinal
	})

	var sharedIssues []string
	var winners []scene.SceneResult
	for _, sr := range ordered {
		if sr.Winner == nil {
			sharedIssues = append(sharedIssues,
				fmt.Sprintf("scene %s has no passing variation: %s", sr.Scene.ID, sr.FailReason))
			continue
		}
		winners = append(winners, sr)
	}
	if len(winners) == 0 {
		return nil, nil, faults.New(faults.InputInvalid, "no scene produced a passing variation")
	}

	voiceover := voiceoverByScene(outcome.AudioAssets)

	styles := p.cfg.Assembly.CandidateStyles
	if len(styles) == 0 {
		styles = defaultStyles
	}

	edl := &EDL{
		EDLID:       uuid.NewString(),
		ProjectName: projectName,
		TotalScenes: len(ordered),
	}
	for _, style := range styles {
		c := p.buildCandidate(style, winners, voiceover, outcome.AvgQA)
		c.ContinuityIssues = append(append([]string(nil), sharedIssues...), c.ContinuityIssues...)
		if err := ValidateTransitions(&c); err != nil {
			return nil, nil, err
		}
		edl.Candidates = append(edl.Candidates, c)
	}
	edl.RecommendedCandidateID = recommend(edl.Candidates)

	tracks := p.buildTracks(edl.Candidate(edl.RecommendedCandidateID), outcome.AudioAssets)
	return edl, tracks, nil
}

// buildCandidate lays the winning clips on a timeline in one editorial style.
func (p *Planner) buildCandidate(style string, winners []scene.SceneResult,
	voiceover map[string]models.MediaAsset, avgQA float64) Candidate {

	dissolve := p.cfg.Assembly.TransitionDurationSec
	c := Candidate{
		CandidateID:      style + "-" + uuid.NewString()[:8],
		Name:             styleName(style),
		Style:            style,
		EstimatedQuality: avgQA,
		Description:      styleDescription(style),
	}

	start := 0.0
	for i, sr := range winners {
		asset := *sr.Winner
		dur := asset.DurationSec
		if dur <= 0 {
			dur = sr.Scene.TargetDurationSec
		}
		d := Decision{
			SceneID:           sr.Scene.ID,
			SelectedVariation: variationIndex(sr),
			VideoURL:          asset.LocalPath,
			InPoint:           0,
			OutPoint:          dur,
			TransitionIn:      TransitionCut,
			TransitionOut:     TransitionCut,
			TextPosition:      "bottom_center",
			TextStyle:         "default",
		}
		if vo, ok := voiceover[sr.Scene.ID]; ok {
			d.AudioURL = vo.LocalPath
		}

		// Safe edits are cuts end to end; the other styles frame the video
		// with a fade-in on the first clip and a fade-out on the last.
		first, last := i == 0, i == len(winners)-1
		if first {
			if style != "safe" {
				d.TransitionIn = TransitionFadeIn
				d.TransitionInDuration = dissolve
			}
			d.TextOverlay = sr.Scene.Title
			d.TextStartTime = ptr(0.0)
			d.TextDuration = ptr(minFloat(2.5, dur))
		}
		if last && style != "safe" {
			d.TransitionOut = TransitionFadeOut
			d.TransitionOutDuration = dissolve
		}

		// Interior boundaries: dissolves by style, always symmetric.
		if !first && dissolveBefore(style, i) {
			d.TransitionIn = TransitionCrossDissolve
			d.TransitionInDuration = dissolve
		}
		if !last && dissolveBefore(style, i+1) {
			d.TransitionOut = TransitionCrossDissolve
			d.TransitionOutDuration = dissolve
		}

		if d.TransitionIn == TransitionCrossDissolve {
			start -= d.TransitionInDuration
			if start < 0 {
				start = 0
			}
		}
		d.StartTime = start
		d.Duration = d.OutPoint - d.InPoint
		start += d.Duration

		if _, err := os.Stat(asset.LocalPath); err != nil {
			c.ContinuityIssues = append(c.ContinuityIssues,
				fmt.Sprintf("missing video file for scene %s: %s", sr.Scene.ID, asset.LocalPath))
		}
		if d.AudioURL != "" {
			if _, err := os.Stat(d.AudioURL); err != nil {
				c.ContinuityIssues = append(c.ContinuityIssues,
					fmt.Sprintf("missing audio file for scene %s: %s", sr.Scene.ID, d.AudioURL))
			}
		}
		c.Decisions = append(c.Decisions, d)
	}
	c.TotalDuration = start
	return c
}

// dissolveBefore decides whether the boundary entering clip i is a
// cross-dissolve for the given style.
func dissolveBefore(style string, i int) bool {
	switch style {
	case "dynamic":
		return true
	case "balanced":
		return i%2 == 0
	default: // safe: hard cuts only
		return false
	}
}

// buildTracks assembles the mix timeline for the chosen candidate and
// applies gains and ducking.
func (p *Planner) buildTracks(c *Candidate, audio []models.MediaAsset) []AudioTrack {
	if c == nil {
		return nil
	}
	sceneStart := make(map[string]Decision, len(c.Decisions))
	for _, d := range c.Decisions {
		sceneStart[d.SceneID] = d
	}

	var tracks []AudioTrack
	for _, a := range audio {
		t := AudioTrack{TrackID: a.ID, Path: a.LocalPath, Duration: a.DurationSec}
		switch a.Kind {
		case models.KindMusic:
			t.Type = TrackMusic
			t.StartTime = 0
			if t.Duration <= 0 || t.Duration > c.TotalDuration {
				t.Duration = c.TotalDuration
			}
		default:
			t.Type = TrackVoiceover
			d, ok := sceneStart[a.SceneID]
			if !ok {
				continue
			}
			t.StartTime = d.StartTime
			if t.Duration <= 0 {
				t.Duration = d.Duration
			}
		}
		tracks = append(tracks, t)
	}
	ApplyGains(tracks, p.cfg.Assembly.GainsDB, p.cfg.Audio.MusicDuckDB)
	return tracks
}

// WriteEDL persists the full document plus one file per candidate under edl/.
func (p *Planner) WriteEDL(runID string, edl *EDL) error {
	data, err := edl.Marshal()
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(p.store.EDLPath(runID, candidatesFile), data, 0o644); err != nil {
		return faults.Wrap(faults.JournalIO, err, "writing EDL")
	}
	for i := range edl.Candidates {
		single := &EDL{
			EDLID:                  edl.EDLID,
			ProjectName:            edl.ProjectName,
			TotalScenes:            edl.TotalScenes,
			RecommendedCandidateID: edl.Candidates[i].CandidateID,
			Candidates:             edl.Candidates[i : i+1],
		}
		data, err := single.Marshal()
		if err != nil {
			return err
		}
		path := p.store.EDLPath(runID, edl.Candidates[i].CandidateID)
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			return faults.Wrap(faults.JournalIO, err, "writing candidate EDL")
		}
	}
	return nil
}

// recommend picks the candidate with the fewest continuity issues, then the
// highest estimated quality, then document order.
func recommend(candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		a, b := candidates[i], candidates[best]
		switch {
		case len(a.ContinuityIssues) < len(b.ContinuityIssues):
			best = i
		case len(a.ContinuityIssues) == len(b.ContinuityIssues) && a.EstimatedQuality > b.EstimatedQuality:
			best = i
		}
	}
	return candidates[best].CandidateID
}

// variationIndex recovers which variation won from the audit list.
func variationIndex(sr scene.SceneResult) int {
	for i, v := range sr.Variations {
		if v.Asset.ID == sr.Winner.ID {
			return i
		}
	}
	return 0
}

func voiceoverByScene(audio []models.MediaAsset) map[string]models.MediaAsset {
	out := make(map[string]models.MediaAsset)
	for _, a := range audio {
		if a.Kind == models.KindAudio && a.SceneID != "" {
			out[a.SceneID] = a
		}
	}
	return out
}

func styleName(style string) string {
	switch style {
	case "safe":
		return "Safe Cut"
	case "dynamic":
		return "Dynamic Flow"
	case "balanced":
		return "Balanced Mix"
	default:
		return style
	}
}

func styleDescription(style string) string {
	switch style {
	case "safe":
		return "Hard cuts at every boundary, including the ends."
	case "dynamic":
		return "Cross-dissolves at every boundary for continuous motion."
	case "balanced":
		return "Alternating cuts and dissolves."
	default:
		return "Custom editorial style."
	}
}

func ptr(v float64) *float64 { return &v }

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
