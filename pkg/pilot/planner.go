// Package pilot turns one brief into competing production plans, runs them
// with bounded parallelism, evaluates each, and selects a winner.
package pilot

import (
	"fmt"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// defaultTierOrder is the plan ladder, cheapest first.
var defaultTierOrder = []models.ProductionTier{
	models.TierStatic,
	models.TierAnimated,
	models.TierPhotorealistic,
}

// Planner produces pilot plans from a brief.
type Planner struct {
	cfg *config.Config
}

// NewPlanner returns a planner bound to the merged configuration.
func NewPlanner(cfg *config.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan generates up to pilots.count plans spanning the given tiers. Budget is
// allocated proportionally to the tier cost model, with the total capped at
// budget × min(overhead_factor, 1 − reserve_fraction). The reserve is never
// handed to a pilot; it covers final assembly and winning-pilot overruns.
//
// A pilot whose estimated cost exceeds its allocation is still planned: the
// budget tracker denies its first reservation at runtime and the scheduler
// rejects it with a budget reason.
func (p *Planner) Plan(brief models.Brief, tiers []models.ProductionTier) ([]models.Pilot, error) {
	if brief.BudgetUSD <= 0 {
		return nil, faults.Newf(faults.InputInvalid, "brief budget must be > 0, got %v", brief.BudgetUSD)
	}
	if brief.TargetDurationSec <= 0 {
		return nil, faults.Newf(faults.InputInvalid, "brief duration must be > 0, got %v", brief.TargetDurationSec)
	}
	if len(tiers) == 0 {
		tiers = defaultTierOrder
	}
	for _, t := range tiers {
		if !t.IsValid() {
			return nil, faults.Newf(faults.InputInvalid, "unknown production tier %q", t)
		}
	}
	if count := p.cfg.Pilots.Count; count > 0 && len(tiers) > count {
		tiers = tiers[:count]
	}

	cap := brief.BudgetUSD * allocatableFraction(p.cfg.Budget)

	weights := make([]float64, len(tiers))
	var total float64
	for i, t := range tiers {
		weights[i] = p.estimate(brief, t)
		total += weights[i]
	}

	pilots := make([]models.Pilot, len(tiers))
	for i, t := range tiers {
		td := p.cfg.TierDefaults(t)
		share := cap / float64(len(tiers))
		if total > 0 {
			share = cap * weights[i] / total
		}
		pilots[i] = models.Pilot{
			ID:                 fmt.Sprintf("pilot-%d", i+1),
			Tier:               t,
			AllocatedBudgetUSD: share,
			TargetScenes:       max(1, td.SceneCount),
			VariationsPerScene: max(1, td.VariationsPerScene),
			Status:             models.PilotPlanned,
		}
	}
	return pilots, nil
}

// estimate is the planning-time cost model for one pilot: tier cost per
// second across the full duration, once per variation.
func (p *Planner) estimate(brief models.Brief, tier models.ProductionTier) float64 {
	td := p.cfg.TierDefaults(tier)
	return td.CostPerSecondUSD * brief.TargetDurationSec * float64(max(1, td.VariationsPerScene))
}

// allocatableFraction applies both caps: the explicit overhead factor and the
// assembly reserve.
func allocatableFraction(b config.BudgetConfig) float64 {
	f := 1 - b.ReserveFraction
	if b.OverheadFactor > 0 && b.OverheadFactor < f {
		f = b.OverheadFactor
	}
	if f < 0 {
		f = 0
	}
	return f
}
