package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/pkg/budget"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
	"github.com/reelforge/reelforge/pkg/knowledge"
	"github.com/reelforge/reelforge/pkg/learnings"
	"github.com/reelforge/reelforge/pkg/metrics"
	"github.com/reelforge/reelforge/pkg/models"
	"github.com/reelforge/reelforge/pkg/provider"
)

// Pipeline generates one pilot's media: all scenes fanned out with bounded
// parallelism, voice-over and music in their own bounded pool alongside.
type Pipeline struct {
	cfg      *config.Config
	registry *provider.Registry
	budget   *budget.Tracker
	store    *journal.Store
	mgr      *learnings.Manager // nil disables biased prompting
	matcher  *knowledge.Matcher // nil disables figure seeding
	vision   VisionAnalyzer     // nil: heuristic QA only
	logger   *slog.Logger
}

// NewPipeline wires the scene pipeline. Learnings manager, figure matcher
// and vision analyzer are optional.
func NewPipeline(cfg *config.Config, reg *provider.Registry, tracker *budget.Tracker,
	store *journal.Store, mgr *learnings.Manager, matcher *knowledge.Matcher,
	vision VisionAnalyzer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg: cfg, registry: reg, budget: tracker, store: store,
		mgr: mgr, matcher: matcher, vision: vision, logger: logger,
	}
}

// Variation is one generated alternative with its QA verdict.
type Variation struct {
	Asset models.MediaAsset `json:"asset"`
	Score QAScore           `json:"score"`
}

// SceneResult is the outcome for one scene: the winner plus every rejected
// variation for audit.
type SceneResult struct {
	Scene      models.Scene       `json:"scene"`
	Variations []Variation        `json:"variations"`
	Winner     *models.MediaAsset `json:"winner,omitempty"`
	Failed     bool               `json:"failed"`
	FailReason string             `json:"fail_reason,omitempty"`
}

// Outcome is the pilot-level result fed to the evaluator.
type Outcome struct {
	PilotID       string              `json:"pilot_id"`
	Scenes        []SceneResult       `json:"scenes"`
	AudioAssets   []models.MediaAsset `json:"audio_assets,omitempty"`
	VideoProvider string              `json:"video_provider"`
	AvgQA         float64             `json:"avg_qa"`
	CostUSD       float64             `json:"cost_usd"`
}

// Run executes the pipeline for one pilot. Scene failures degrade the
// outcome rather than aborting; only cancellation and journal failures
// return an error.
func (p *Pipeline) Run(ctx context.Context, runID string, brief models.Brief, pilot models.Pilot, scenes []models.Scene) (*Outcome, error) {
	tier := p.cfg.TierDefaults(pilot.Tier)

	preferred := brief.VideoProvider
	if preferred == "" {
		preferred = tier.VideoProvider
	}
	vp, fellBack, err := p.registry.ResolveForKind(preferred, models.KindVideo)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetActualProvider(runID, models.KindVideo, vp.Name()); err != nil {
		return nil, err
	}
	if fellBack {
		_ = p.store.AddWarning(runID, fmt.Sprintf(
			"video provider %q unavailable (credential missing); pilot %s runs simulated on %s",
			preferred, pilot.ID, vp.Name()))
	}

	if err := p.writeSceneScripts(runID, scenes); err != nil {
		return nil, err
	}

	var guidance []learnings.SearchResult
	if p.mgr != nil {
		guidance, err = p.mgr.RetrieveForProvider(ctx, vp.Name(), brief.Concept, maxGuidanceLines)
		if err != nil {
			p.logger.Warn("Learnings retrieval failed, continuing unbiased", "provider", vp.Name(), "error", err)
			guidance = nil
		}
	}

	outcome := &Outcome{PilotID: pilot.ID, VideoProvider: vp.Name(), Scenes: make([]SceneResult, len(scenes))}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vg, vctx := errgroup.WithContext(gctx)
		vg.SetLimit(max(1, min(len(scenes), p.cfg.Pilots.MaxParallelScenes)))
		for i, sc := range scenes {
			vg.Go(func() error {
				res, err := p.runScene(vctx, runID, pilot, tier, vp, sc, guidance)
				if err != nil {
					return err
				}
				outcome.Scenes[i] = *res
				return nil
			})
		}
		return vg.Wait()
	})

	audioAssets := make(chan models.MediaAsset, len(scenes)+1)
	g.Go(func() error {
		defer close(audioAssets)
		return p.runAudio(gctx, runID, brief, pilot, scenes, audioAssets)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for a := range audioAssets {
		outcome.AudioAssets = append(outcome.AudioAssets, a)
	}

	p.finalize(outcome)
	return outcome, nil
}

// writeSceneScripts persists per-scene script data under scenes/.
func (p *Pipeline) writeSceneScripts(runID string, scenes []models.Scene) error {
	for _, sc := range scenes {
		data, err := json.MarshalIndent(sc, "", "  ")
		if err != nil {
			return faults.Wrap(faults.JournalIO, err, "encoding scene script")
		}
		if err := renameio.WriteFile(p.store.ScenePath(runID, sc.ID), data, 0o644); err != nil {
			return faults.Wrap(faults.JournalIO, err, "writing scene script")
		}
	}
	return nil
}

// runScene generates every variation for one scene, scores them and selects
// the winner.
func (p *Pipeline) runScene(ctx context.Context, runID string, pilot models.Pilot,
	tier config.TierDefaults, vp provider.Provider, sc models.Scene,
	guidance []learnings.SearchResult) (*SceneResult, error) {

	res := &SceneResult{Scene: sc}

	var figure *knowledge.Figure
	if p.matcher != nil {
		if f, ok := p.matcher.Match(sc); ok {
			figure = &f
		}
	}
	prompt := BuildPrompt(PromptInputs{Scene: sc, Figure: figure, Guidance: guidance})

	variations := max(1, pilot.VariationsPerScene)
	for v := 0; v < variations; v++ {
		if err := ctx.Err(); err != nil {
			return nil, faults.Wrap(faults.Cancelled, err, "scene pipeline cancelled")
		}
		asset, err := p.generateVariation(ctx, runID, pilot, tier, vp, sc, prompt, v)
		if err != nil {
			kind := faults.KindOf(err)
			if kind == faults.Cancelled || kind == faults.JournalIO {
				return nil, err
			}
			_ = p.store.AddError(runID, journal.RunError{
				Stage: journal.StageGenVideo, Kind: string(kind),
				Provider: vp.Name(),
				Message:  fmt.Sprintf("scene %s variation %d: %v", sc.ID, v, err),
			})
			if kind == faults.OverBudget {
				// No funds for further variations of this scene.
				res.FailReason = "budget exhausted"
				break
			}
			continue
		}
		res.Variations = append(res.Variations, Variation{Asset: *asset})
	}

	p.scoreAndPick(ctx, res, tier)
	if res.Failed {
		metrics.ScenesFailed.Inc()
		_ = p.store.AddWarning(runID, fmt.Sprintf("scene %s failed: %s", sc.ID, res.FailReason))
	}
	return res, nil
}

// generateVariation runs one reserve → submit → poll → download → commit
// cycle. The reservation is released on any failure.
func (p *Pipeline) generateVariation(ctx context.Context, runID string, pilot models.Pilot,
	tier config.TierDefaults, vp provider.Provider, sc models.Scene, prompt string, v int) (*models.MediaAsset, error) {

	req := provider.Request{
		Prompt:      prompt,
		DurationSec: sc.TargetDurationSec,
		SceneID:     sc.ID,
		OutputPath:  p.store.VideoPath(runID, sc.ID, v, ".mp4"),
	}

	est := vp.EstimateCost(req)
	if est == 0 && tier.CostPerSecondUSD > 0 && vp.Name() != provider.MockFor(models.KindVideo) {
		est = tier.CostPerSecondUSD * sc.TargetDurationSec
	}
	resID, err := p.budget.Reserve(runID, est, budget.CategoryVideo, pilot.ID)
	if err != nil {
		if faults.KindOf(err) == faults.OverBudget {
			metrics.BudgetDenied.Inc()
		}
		return nil, err
	}

	started := time.Now()
	result, err := p.submitAndCollect(ctx, vp, req)
	if err != nil {
		_ = p.budget.Release(resID)
		metrics.ProviderCalls.WithLabelValues(vp.Name(), string(faults.KindOf(err))).Inc()
		return nil, err
	}
	metrics.ProviderCalls.WithLabelValues(vp.Name(), "success").Inc()
	metrics.ProviderLatency.WithLabelValues(vp.Name()).Observe(time.Since(started).Seconds())

	actual := result.CostUSD
	if actual == 0 {
		actual = est
	}
	asset := models.MediaAsset{
		ID:          uuid.NewString(),
		Kind:        models.KindVideo,
		SceneID:     sc.ID,
		LocalPath:   result.LocalPath,
		RemoteURL:   result.RemoteURL,
		DurationSec: orDefault(result.DurationSec, sc.TargetDurationSec),
		CostUSD:     actual,
		Provider:    vp.Name(),
		Metadata:    result.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.budget.Commit(resID, actual, asset.ID); err != nil {
		// A denied commit keeps the reservation held; drop it so the funds
		// return to the run's pool.
		_ = p.budget.Release(resID)
		return nil, err
	}
	metrics.BudgetCommitted.WithLabelValues(budget.CategoryVideo).Add(actual)
	if err := p.store.AddAsset(runID, asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// submitAndCollect handles both submission patterns: immediate results come
// back directly; job outcomes are polled to a terminal state and downloaded.
func (p *Pipeline) submitAndCollect(ctx context.Context, prov provider.Provider, req provider.Request) (*provider.Result, error) {
	pc, _ := p.cfg.Provider(prov.Name())
	return provider.Collect(ctx, prov, req, p.registry.RetryFor(prov.Name()),
		pc.PollInterval(), pc.Timeout(), p.logger)
}

// scoreAndPick QA-scores every variation and selects the winner: highest
// overall at or above the tier threshold, ties broken by lowest cost.
func (p *Pipeline) scoreAndPick(ctx context.Context, res *SceneResult, tier config.TierDefaults) {
	for i := range res.Variations {
		va := &res.Variations[i]
		var analysis *QAVisualAnalysis
		if p.vision != nil {
			a, err := p.vision.Analyze(ctx, va.Asset.LocalPath, res.Scene)
			if err != nil {
				p.logger.Warn("Vision analysis failed, using heuristics",
					"scene_id", res.Scene.ID, "error", err)
			} else {
				analysis = a
			}
		}
		va.Score = ScoreAsset(va.Asset, res.Scene, analysis)
		overall := va.Score.Overall()
		va.Asset.QualityScore = &overall
	}

	best := -1
	for i := range res.Variations {
		score := res.Variations[i].Score.Overall()
		if score < tier.PassThreshold {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bestScore := res.Variations[best].Score.Overall()
		if score > bestScore ||
			(score == bestScore && res.Variations[i].Asset.CostUSD < res.Variations[best].Asset.CostUSD) {
			best = i
		}
	}
	if best < 0 {
		res.Failed = true
		if res.FailReason == "" {
			res.FailReason = fmt.Sprintf("no variation reached the %s threshold %.0f (best %.1f of %d)",
				res.Scene.ID, tier.PassThreshold, bestOverall(res.Variations), len(res.Variations))
		}
		return
	}
	winner := res.Variations[best].Asset
	res.Winner = &winner
}

func bestOverall(vars []Variation) float64 {
	best := 0.0
	for _, v := range vars {
		if s := v.Score.Overall(); s > best {
			best = s
		}
	}
	return best
}

// runAudio generates voice-over per scene (bounded pool) and an optional
// music bed, following the brief's audio tier.
func (p *Pipeline) runAudio(ctx context.Context, runID string, brief models.Brief,
	pilot models.Pilot, scenes []models.Scene, out chan<- models.MediaAsset) error {

	tierWantsVO := brief.AudioTier.WantsVoiceover()
	tierWantsMusic := brief.AudioTier.WantsMusic() ||
		(brief.AudioTier == models.AudioFullProduction && p.cfg.Audio.FullProductionExtras)

	if tierWantsVO {
		ap, fellBack, err := p.registry.ResolveForKind(p.cfg.Audio.Provider, models.KindAudio)
		if err != nil {
			return err
		}
		if err := p.store.SetActualProvider(runID, models.KindAudio, ap.Name()); err != nil {
			return err
		}
		if fellBack {
			_ = p.store.AddWarning(runID, fmt.Sprintf(
				"audio provider %q unavailable; voice-over runs simulated on %s", p.cfg.Audio.Provider, ap.Name()))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, p.cfg.Pilots.MaxParallelAudio))
		for _, sc := range scenes {
			if sc.VoiceoverText == "" {
				continue
			}
			g.Go(func() error {
				asset, err := p.generateAudio(gctx, runID, pilot, ap, provider.Request{
					Prompt:     sc.VoiceoverText,
					SceneID:    sc.ID,
					Voice:      p.cfg.Audio.Voice,
					Speed:      p.cfg.Audio.Speed,
					OutputPath: p.store.AudioPath(runID, sc.ID, "vo", "mp3"),
				}, budget.CategoryAudio)
				if err != nil {
					kind := faults.KindOf(err)
					if kind == faults.Cancelled || kind == faults.JournalIO {
						return err
					}
					_ = p.store.AddError(runID, journal.RunError{
						Stage: journal.StageGenAudio, Kind: string(kind), Provider: ap.Name(),
						Message: fmt.Sprintf("voice-over for scene %s: %v", sc.ID, err),
					})
					return nil
				}
				out <- *asset
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	if tierWantsMusic {
		asset, err := p.generateMusic(ctx, runID, brief, pilot)
		if err != nil {
			kind := faults.KindOf(err)
			if kind == faults.Cancelled || kind == faults.JournalIO {
				return err
			}
			_ = p.store.AddError(runID, journal.RunError{
				Stage: journal.StageGenAudio, Kind: string(kind),
				Message: fmt.Sprintf("music bed: %v", err),
			})
		} else if asset != nil {
			out <- *asset
		}
	}
	return nil
}

// generateMusic tries the configured music provider and degrades to the mock
// when the provider is a stub or fails permanently.
func (p *Pipeline) generateMusic(ctx context.Context, runID string, brief models.Brief, pilot models.Pilot) (*models.MediaAsset, error) {
	req := provider.Request{
		Prompt:      "instrumental bed matching: " + brief.Concept,
		DurationSec: brief.TargetDurationSec,
		Mood:        brief.MusicMood,
		Tempo:       brief.MusicTempo,
		OutputPath:  p.store.AudioPath(runID, pilot.ID, "music", "mp3"),
	}

	mp, _, err := p.registry.ResolveForKind("suno", models.KindMusic)
	if err != nil {
		mp, _, err = p.registry.ResolveForKind("", models.KindMusic)
		if err != nil {
			return nil, err
		}
	}
	asset, err := p.generateAudio(ctx, runID, pilot, mp, req, budget.CategoryMusic)
	if err != nil && faults.KindOf(err) == faults.ProviderPermanent {
		_ = p.store.AddWarning(runID, fmt.Sprintf(
			"music provider %q unavailable (%v); using %s", mp.Name(), err, provider.MockFor(models.KindMusic)))
		mock, _, rerr := p.registry.ResolveForKind("", models.KindMusic)
		if rerr != nil {
			return nil, rerr
		}
		asset, err = p.generateAudio(ctx, runID, pilot, mock, req, budget.CategoryMusic)
	}
	if err != nil {
		return nil, err
	}
	_ = p.store.SetActualProvider(runID, models.KindMusic, asset.Provider)
	return asset, nil
}

// generateAudio runs one reserve → generate → commit cycle for an immediate
// audio provider.
func (p *Pipeline) generateAudio(ctx context.Context, runID string, pilot models.Pilot,
	ap provider.Provider, req provider.Request, category string) (*models.MediaAsset, error) {

	est := ap.EstimateCost(req)
	resID, err := p.budget.Reserve(runID, est, category, pilot.ID)
	if err != nil {
		if faults.KindOf(err) == faults.OverBudget {
			metrics.BudgetDenied.Inc()
		}
		return nil, err
	}

	result, err := p.submitAndCollect(ctx, ap, req)
	if err != nil {
		_ = p.budget.Release(resID)
		metrics.ProviderCalls.WithLabelValues(ap.Name(), string(faults.KindOf(err))).Inc()
		return nil, err
	}
	metrics.ProviderCalls.WithLabelValues(ap.Name(), "success").Inc()

	actual := result.CostUSD
	if actual == 0 {
		actual = est
	}
	asset := models.MediaAsset{
		ID:          uuid.NewString(),
		Kind:        ap.Kind(),
		SceneID:     req.SceneID,
		LocalPath:   result.LocalPath,
		DurationSec: result.DurationSec,
		CostUSD:     actual,
		Provider:    ap.Name(),
		Metadata:    result.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.budget.Commit(resID, actual, asset.ID); err != nil {
		// A denied commit keeps the reservation held; drop it so the funds
		// return to the run's pool.
		_ = p.budget.Release(resID)
		return nil, err
	}
	metrics.BudgetCommitted.WithLabelValues(category).Add(actual)
	if err := p.store.AddAsset(runID, asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// finalize computes the pilot-level aggregates.
func (p *Pipeline) finalize(outcome *Outcome) {
	var qaSum, cost float64
	scored := 0
	for _, sr := range outcome.Scenes {
		for _, v := range sr.Variations {
			cost += v.Asset.CostUSD
		}
		if sr.Winner != nil && sr.Winner.QualityScore != nil {
			qaSum += *sr.Winner.QualityScore
			scored++
		}
	}
	for _, a := range outcome.AudioAssets {
		cost += a.CostUSD
	}
	if scored > 0 {
		outcome.AvgQA = qaSum / float64(scored)
	}
	outcome.CostUSD = cost
}

func orDefault(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
