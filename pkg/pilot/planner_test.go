package pilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), "")
	require.NoError(t, err)
	return cfg
}

func TestPlanAllocationsProportionalToTierCost(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pilots.Count = 3
	p := NewPlanner(cfg)

	brief := models.Brief{Concept: "x", TargetDurationSec: 30, BudgetUSD: 100}
	pilots, err := p.Plan(brief, []models.ProductionTier{models.TierStatic, models.TierAnimated})
	require.NoError(t, err)
	require.Len(t, pilots, 2)

	// Allocations scale with the tier cost model and never exceed the
	// reserve-capped total.
	assert.Less(t, pilots[0].AllocatedBudgetUSD, pilots[1].AllocatedBudgetUSD)
	total := pilots[0].AllocatedBudgetUSD + pilots[1].AllocatedBudgetUSD
	assert.InDelta(t, 100*(1-cfg.Budget.ReserveFraction), total, 1e-9)
	for _, pl := range pilots {
		assert.LessOrEqual(t, pl.AllocatedBudgetUSD, brief.BudgetUSD)
		assert.Equal(t, models.PilotPlanned, pl.Status)
		assert.Positive(t, pl.TargetScenes)
		assert.Positive(t, pl.VariationsPerScene)
	}
}

func TestPlanTruncatesToConfiguredCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pilots.Count = 2
	pilots, err := NewPlanner(cfg).Plan(
		models.Brief{Concept: "x", TargetDurationSec: 10, BudgetUSD: 10}, nil)
	require.NoError(t, err)
	require.Len(t, pilots, 2)
	assert.Equal(t, models.TierStatic, pilots[0].Tier)
	assert.Equal(t, models.TierAnimated, pilots[1].Tier)
	assert.Equal(t, "pilot-1", pilots[0].ID)
	assert.Equal(t, "pilot-2", pilots[1].ID)
}

func TestPlanRejectsInvalidBriefs(t *testing.T) {
	p := NewPlanner(testConfig(t))

	_, err := p.Plan(models.Brief{Concept: "x", TargetDurationSec: 10}, nil)
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	_, err = p.Plan(models.Brief{Concept: "x", BudgetUSD: 10}, nil)
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))

	_, err = p.Plan(models.Brief{Concept: "x", TargetDurationSec: 10, BudgetUSD: 10},
		[]models.ProductionTier{"CINEMATIC"})
	assert.Equal(t, faults.InputInvalid, faults.KindOf(err))
}

func TestPlanOverheadFactorTightensCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Budget.ReserveFraction = 0.1
	cfg.Budget.OverheadFactor = 0.5
	pilots, err := NewPlanner(cfg).Plan(
		models.Brief{Concept: "x", TargetDurationSec: 10, BudgetUSD: 40},
		[]models.ProductionTier{models.TierStatic, models.TierAnimated})
	require.NoError(t, err)

	total := 0.0
	for _, pl := range pilots {
		total += pl.AllocatedBudgetUSD
	}
	assert.InDelta(t, 20, total, 1e-9)
}
