package pilot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/scene"
)

// Critic compares a pilot's outcome to the brief and to the pilot's own
// promises, producing the evaluation the ranking runs on.
type Critic struct{}

// NewCritic returns the heuristic critic.
func NewCritic() *Critic { return &Critic{} }

// Evaluate scores a completed pilot. The critic score blends scene
// completion, QA quality and duration fidelity. A pilot is approved only if
// every scene produced a winner, it stayed inside its allocation, and the
// critic score clears 50.
func (c *Critic) Evaluate(brief models.Brief, pilot models.Pilot, out *scene.Outcome) models.PilotEvaluation {
	total := len(out.Scenes)
	won := 0
	var producedSec float64
	for _, sr := range out.Scenes {
		if sr.Winner != nil {
			won++
			producedSec += sr.Winner.DurationSec
		}
	}

	completion := 0.0
	if total > 0 {
		completion = 100 * float64(won) / float64(total)
	}
	fidelity := durationFidelity(producedSec, brief.TargetDurationSec)
	criticScore := 0.5*completion + 0.3*out.AvgQA + 0.2*fidelity

	var objections []string
	if won < total {
		objections = append(objections, fmt.Sprintf("%d of %d scenes failed QA", total-won, total))
	}
	if pilot.AllocatedBudgetUSD > 0 && out.CostUSD > pilot.AllocatedBudgetUSD {
		objections = append(objections, fmt.Sprintf(
			"spent $%.2f against a $%.2f allocation", out.CostUSD, pilot.AllocatedBudgetUSD))
	}
	if criticScore < 50 {
		objections = append(objections, fmt.Sprintf("critic score %.1f below 50", criticScore))
	}

	eval := models.PilotEvaluation{
		PilotID:     pilot.ID,
		CriticScore: criticScore,
		AvgQA:       out.AvgQA,
		Approved:    len(objections) == 0,
		CostUSD:     out.CostUSD,
	}
	if eval.Approved {
		eval.Reasoning = fmt.Sprintf(
			"all %d scenes passed; avg QA %.1f; produced %.1fs against a %.1fs target",
			total, out.AvgQA, producedSec, brief.TargetDurationSec)
	} else {
		eval.Reasoning = strings.Join(objections, "; ")
	}
	return eval
}

// durationFidelity is 100 at an exact match, falling linearly to zero at a
// factor-of-two miss.
func durationFidelity(produced, target float64) float64 {
	if target <= 0 {
		return 50
	}
	if produced <= 0 {
		return 0
	}
	ratio := math.Abs(produced-target) / target
	if ratio >= 1 {
		return 0
	}
	return 100 * (1 - ratio)
}

// Rank orders evaluations for promotion: approved pilots first, then highest
// composite score, ties broken by lowest cost. The slice is not mutated.
func Rank(evals []models.PilotEvaluation) []models.PilotEvaluation {
	ranked := make([]models.PilotEvaluation, len(evals))
	copy(ranked, evals)
	sort.SliceStable(ranked, func(i, j int) bool { return evalLess(ranked[i], ranked[j]) })
	return ranked
}

func evalLess(a, b models.PilotEvaluation) bool {
	if a.Approved != b.Approved {
		return a.Approved
	}
	if a.CompositeScore() != b.CompositeScore() {
		return a.CompositeScore() > b.CompositeScore()
	}
	return a.CostUSD < b.CostUSD
}
