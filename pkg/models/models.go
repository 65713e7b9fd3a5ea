// Package models defines the core domain entities shared across the
// orchestrator: briefs, pilots, scenes, media assets and their enums.
package models

import "time"

// ProductionTier identifies a cost/quality tier for a pilot.
type ProductionTier string

// Production tier constants, ordered cheapest to most expensive.
const (
	TierStatic         ProductionTier = "STATIC"
	TierAnimated       ProductionTier = "ANIMATED"
	TierPhotorealistic ProductionTier = "PHOTOREALISTIC"
)

// IsValid checks if the production tier is a known value.
func (t ProductionTier) IsValid() bool {
	switch t {
	case TierStatic, TierAnimated, TierPhotorealistic:
		return true
	default:
		return false
	}
}

// AudioTier controls how much audio production a run receives.
type AudioTier string

// Audio tier constants, in escalating synchronisation requirements.
const (
	AudioNone           AudioTier = "NONE"
	AudioMusicOnly      AudioTier = "MUSIC_ONLY"
	AudioSimpleOverlay  AudioTier = "SIMPLE_OVERLAY"
	AudioTimeSynced     AudioTier = "TIME_SYNCED"
	AudioFullProduction AudioTier = "FULL_PRODUCTION"
)

// IsValid checks if the audio tier is a known value.
func (t AudioTier) IsValid() bool {
	switch t {
	case AudioNone, AudioMusicOnly, AudioSimpleOverlay, AudioTimeSynced, AudioFullProduction:
		return true
	default:
		return false
	}
}

// WantsVoiceover reports whether the tier requires voice-over synthesis.
func (t AudioTier) WantsVoiceover() bool {
	switch t {
	case AudioSimpleOverlay, AudioTimeSynced, AudioFullProduction:
		return true
	default:
		return false
	}
}

// WantsMusic reports whether the tier requires a music bed.
func (t AudioTier) WantsMusic() bool {
	return t == AudioMusicOnly || t == AudioFullProduction
}

// PilotStatus tracks the lifecycle of a pilot plan.
type PilotStatus string

// Pilot status constants. PLANNED → RUNNING → {APPROVED, REJECTED, CANCELLED}.
const (
	PilotPlanned   PilotStatus = "PLANNED"
	PilotRunning   PilotStatus = "RUNNING"
	PilotApproved  PilotStatus = "APPROVED"
	PilotRejected  PilotStatus = "REJECTED"
	PilotCancelled PilotStatus = "CANCELLED"
)

// IsTerminal reports whether the status is final.
func (s PilotStatus) IsTerminal() bool {
	switch s {
	case PilotApproved, PilotRejected, PilotCancelled:
		return true
	default:
		return false
	}
}

// MediaKind identifies the kind of a generated artifact.
type MediaKind string

// Media kind constants.
const (
	KindVideo MediaKind = "VIDEO"
	KindAudio MediaKind = "AUDIO"
	KindImage MediaKind = "IMAGE"
	KindMusic MediaKind = "MUSIC"
)

// SeedAsset is a user-supplied input asset with a declared role.
type SeedAsset struct {
	Path string `json:"path" yaml:"path"`
	Role string `json:"role" yaml:"role"` // e.g. "reference", "logo", "figure"
}

// Brief is the user's production request. Immutable after submission.
type Brief struct {
	Concept           string      `json:"concept" yaml:"concept"`
	TargetDurationSec float64     `json:"target_duration_sec" yaml:"target_duration_sec"`
	BudgetUSD         float64     `json:"budget_usd" yaml:"budget_usd"`
	AudioTier         AudioTier   `json:"audio_tier,omitempty" yaml:"audio_tier,omitempty"`
	VideoProvider     string      `json:"video_provider,omitempty" yaml:"video_provider,omitempty"`
	MusicMood         string      `json:"music_mood,omitempty" yaml:"music_mood,omitempty"`
	MusicTempo        string      `json:"music_tempo,omitempty" yaml:"music_tempo,omitempty"`
	SeedAssets        []SeedAsset `json:"seed_assets,omitempty" yaml:"seed_assets,omitempty"`
}

// Pilot is one competing production plan.
type Pilot struct {
	ID                 string         `json:"pilot_id"`
	Tier               ProductionTier `json:"tier"`
	AllocatedBudgetUSD float64        `json:"allocated_budget_usd"`
	TargetScenes       int            `json:"target_scenes"`
	VariationsPerScene int            `json:"variations_per_scene"`
	Status             PilotStatus    `json:"status"`
	StatusReason       string         `json:"status_reason,omitempty"`
}

// Scene is one contiguous clip in the final video, the atomic unit of
// generation. Ordinals are contiguous from 0 within a pilot.
type Scene struct {
	ID                string   `json:"scene_id"`
	Ordinal           int      `json:"ordinal"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	TargetDurationSec float64  `json:"target_duration_sec"`
	VisualElements    []string `json:"visual_elements,omitempty"`
	VoiceoverText     string   `json:"voiceover_text,omitempty"`
}

// MediaAsset is a generated artifact. Immutable after creation apart from
// quality score assignment.
type MediaAsset struct {
	ID           string            `json:"asset_id"`
	Kind         MediaKind         `json:"kind"`
	SceneID      string            `json:"scene_id,omitempty"`
	LocalPath    string            `json:"local_path,omitempty"`
	RemoteURL    string            `json:"remote_url,omitempty"`
	DurationSec  float64           `json:"duration_sec"`
	CostUSD      float64           `json:"cost_usd"`
	Provider     string            `json:"provider_name"`
	QualityScore *float64          `json:"quality_score,omitempty"` // 0-100
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// PilotEvaluation is the critic's verdict on a completed pilot.
type PilotEvaluation struct {
	PilotID     string  `json:"pilot_id"`
	CriticScore float64 `json:"critic_score"` // 0-100
	AvgQA       float64 `json:"avg_qa"`       // 0-100
	Approved    bool    `json:"approved"`
	Reasoning   string  `json:"reasoning"`
	CostUSD     float64 `json:"cost_usd"`
}

// CompositeScore is the ranking key among approved pilots:
// 0.6·critic + 0.4·avgQA.
func (e PilotEvaluation) CompositeScore() float64 {
	return 0.6*e.CriticScore + 0.4*e.AvgQA
}
