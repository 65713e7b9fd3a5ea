package scene

import (
	"context"
	"math"
	"os"
	"strings"

	"github.com/reelforge/reelforge/pkg/models"
)

// QAVisualAnalysis is the opaque verdict of an external vision model on a
// downloaded artifact. All axes are 0-100.
type QAVisualAnalysis struct {
	VisualAccuracy   float64 `json:"visual_accuracy"`
	StyleConsistency float64 `json:"style_consistency"`
	TechnicalQuality float64 `json:"technical_quality"`
	NarrativeFit     float64 `json:"narrative_fit"`
}

// VisionAnalyzer is the hook for vision-model scoring. Nil means heuristic
// scoring only.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, assetPath string, scene models.Scene) (*QAVisualAnalysis, error)
}

// QAScore is the four-axis quality verdict for one variation.
type QAScore struct {
	VisualAccuracy   float64 `json:"visual_accuracy"`
	StyleConsistency float64 `json:"style_consistency"`
	TechnicalQuality float64 `json:"technical_quality"`
	NarrativeFit     float64 `json:"narrative_fit"`
}

// Overall averages the four axes.
func (q QAScore) Overall() float64 {
	return (q.VisualAccuracy + q.StyleConsistency + q.TechnicalQuality + q.NarrativeFit) / 4
}

// ScoreAsset rates a downloaded variation. It is a pure function of the
// asset metadata and scene expectations; when a vision analysis is supplied
// its axes replace the heuristics for accuracy, style and narrative.
func ScoreAsset(asset models.MediaAsset, scene models.Scene, analysis *QAVisualAnalysis) QAScore {
	score := QAScore{
		VisualAccuracy:   70,
		StyleConsistency: 70,
		TechnicalQuality: technicalScore(asset, scene),
		NarrativeFit:     narrativeScore(asset, scene),
	}
	if analysis != nil {
		score.VisualAccuracy = clampScore(analysis.VisualAccuracy)
		score.StyleConsistency = clampScore(analysis.StyleConsistency)
		score.NarrativeFit = clampScore(analysis.NarrativeFit)
		if analysis.TechnicalQuality > 0 {
			score.TechnicalQuality = clampScore(analysis.TechnicalQuality)
		}
	}
	return score
}

// technicalScore checks the artifact exists on disk and is non-empty, then
// rates duration fidelity against the scene target.
func technicalScore(asset models.MediaAsset, scene models.Scene) float64 {
	info, err := os.Stat(asset.LocalPath)
	if err != nil || info.Size() == 0 {
		return 0
	}
	if asset.DurationSec <= 0 || scene.TargetDurationSec <= 0 {
		return 60
	}
	// Full marks within 10% of target, falling off linearly to zero at 2x off.
	ratio := math.Abs(asset.DurationSec-scene.TargetDurationSec) / scene.TargetDurationSec
	switch {
	case ratio <= 0.1:
		return 95
	case ratio >= 1:
		return 20
	default:
		return 95 - (ratio-0.1)/0.9*75
	}
}

// narrativeScore rewards provider metadata echoing the scene's key elements.
func narrativeScore(asset models.MediaAsset, scene models.Scene) float64 {
	if len(scene.VisualElements) == 0 {
		return 65
	}
	joined := strings.ToLower(strings.Join(mapValues(asset.Metadata), " "))
	hits := 0
	for _, el := range scene.VisualElements {
		if strings.Contains(joined, strings.ToLower(el)) {
			hits++
		}
	}
	return 60 + 40*float64(hits)/float64(len(scene.VisualElements))
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
