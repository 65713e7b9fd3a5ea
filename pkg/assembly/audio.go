package assembly

import "github.com/reelforge/reelforge/pkg/config"

// TrackType is the logical role of an audio track.
type TrackType string

// Track type constants.
const (
	TrackVoiceover TrackType = "VOICEOVER"
	TrackMusic     TrackType = "MUSIC"
	TrackSFX       TrackType = "SFX"
	TrackAmbient   TrackType = "AMBIENT"
)

// AudioTrack places one audio file on the mix timeline.
type AudioTrack struct {
	TrackID   string    `json:"track_id"`
	Type      TrackType `json:"type"`
	Path      string    `json:"path"`
	StartTime float64   `json:"start_time"`
	Duration  float64   `json:"duration"`
	GainDB    float64   `json:"gain_db"`
}

// End returns the track's end time on the timeline.
func (t AudioTrack) End() float64 { return t.StartTime + t.Duration }

// ApplyGains assigns per-type default gains and ducks MUSIC tracks under
// overlapping VOICEOVER by duckDB. Tracks are mutated in place.
func ApplyGains(tracks []AudioTrack, gains config.GainsDB, duckDB float64) {
	for i := range tracks {
		switch tracks[i].Type {
		case TrackVoiceover:
			tracks[i].GainDB = gains.Voiceover
		case TrackMusic:
			tracks[i].GainDB = gains.Music
		case TrackSFX:
			tracks[i].GainDB = gains.SFX
		case TrackAmbient:
			tracks[i].GainDB = gains.Ambient
		}
	}
	for i := range tracks {
		if tracks[i].Type != TrackMusic {
			continue
		}
		for _, other := range tracks {
			if other.Type == TrackVoiceover && tracksOverlap(tracks[i], other) {
				tracks[i].GainDB -= duckDB
				break
			}
		}
	}
}

func tracksOverlap(a, b AudioTrack) bool {
	return a.StartTime < b.End() && b.StartTime < a.End()
}
