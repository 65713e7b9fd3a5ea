package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/journal"
)

// InstallStatus reports whether the external renderer is available.
type InstallStatus struct {
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
}

// RenderResult is the renderer's verdict for one candidate.
type RenderResult struct {
	Success       bool    `json:"success"`
	OutputPath    string  `json:"output_path,omitempty"`
	DurationSec   float64 `json:"duration,omitempty"`
	FileSizeBytes int64   `json:"file_size,omitempty"`
	RenderTimeSec float64 `json:"render_time,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Assembler renders one EDL candidate to a final file. A missing assembler
// is non-fatal: the run completes with the EDL but no render.
type Assembler interface {
	CheckInstalled(ctx context.Context) InstallStatus
	Render(ctx context.Context, edl *EDL, candidateID string, tracks []AudioTrack, runID string) (*RenderResult, error)
}

// FFmpeg drives the ffmpeg binary.
type FFmpeg struct {
	path   string
	store  *journal.Store
	logger *slog.Logger
}

// NewFFmpeg builds the ffmpeg assembler. An empty configured path resolves
// from PATH at check time.
func NewFFmpeg(cfg *config.Config, store *journal.Store, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Assembly.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, store: store, logger: logger}
}

// CheckInstalled probes for the binary and reads its version banner.
func (f *FFmpeg) CheckInstalled(ctx context.Context) InstallStatus {
	resolved, err := exec.LookPath(f.path)
	if err != nil {
		return InstallStatus{}
	}
	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		return InstallStatus{}
	}
	return InstallStatus{Installed: true, Version: parseVersion(string(out)), Path: resolved}
}

// parseVersion extracts "N.N.N" from the "ffmpeg version X ..." banner.
func parseVersion(banner string) string {
	fields := strings.Fields(banner)
	if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
		return fields[2]
	}
	return ""
}

// Render concatenates the candidate's clips and mixes the audio timeline
// into runs/{run}/renders/. The returned result carries the failure message
// rather than an error for renderer-side problems; errors are reserved for
// invalid input.
func (f *FFmpeg) Render(ctx context.Context, edl *EDL, candidateID string, tracks []AudioTrack, runID string) (*RenderResult, error) {
	c := edl.Candidate(candidateID)
	if c == nil {
		return nil, faults.Newf(faults.InputInvalid, "unknown candidate %q", candidateID)
	}
	if len(c.Decisions) == 0 {
		return nil, faults.Newf(faults.InputInvalid, "candidate %q has no decisions", candidateID)
	}

	output := f.store.RenderPath(runID, candidateID)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, faults.Wrap(faults.JournalIO, err, "creating render directory")
	}
	args := renderArgs(c, tracks, output)

	f.logger.Info("Rendering candidate", "run_id", runID, "candidate_id", candidateID, "clips", len(c.Decisions))
	started := time.Now()
	cmd := exec.CommandContext(ctx, f.path, args...)
	combined, err := cmd.CombinedOutput()
	elapsed := time.Since(started).Seconds()
	if err != nil {
		if ctx.Err() != nil {
			return nil, faults.Wrap(faults.Cancelled, ctx.Err(), "render cancelled")
		}
		msg := strings.TrimSpace(string(combined))
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return &RenderResult{Error: fmt.Sprintf("ffmpeg failed: %v: %s", err, msg), RenderTimeSec: elapsed}, nil
	}

	info, err := os.Stat(output)
	if err != nil {
		return &RenderResult{Error: "ffmpeg reported success but produced no file", RenderTimeSec: elapsed}, nil
	}
	return &RenderResult{
		Success:       true,
		OutputPath:    output,
		DurationSec:   c.TotalDuration,
		FileSizeBytes: info.Size(),
		RenderTimeSec: elapsed,
	}, nil
}

// renderArgs builds the full ffmpeg invocation: one input per clip and audio
// track, a filter graph for trims, fades, dissolves and the mix, and a
// single H.264/AAC output.
func renderArgs(c *Candidate, tracks []AudioTrack, output string) []string {
	args := []string{"-y"}
	for _, d := range c.Decisions {
		args = append(args, "-i", d.VideoURL)
	}
	for _, t := range tracks {
		args = append(args, "-i", t.Path)
	}

	filter := buildFilter(c, tracks)
	args = append(args, "-filter_complex", filter, "-map", "[vout]")
	if len(tracks) > 0 {
		args = append(args, "-map", "[aout]")
	}
	args = append(args,
		"-c:v", "libx264", "-preset", "medium", "-crf", "22",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		output,
	)
	return args
}

// buildFilter assembles the filter graph. Fades are applied per input before
// concatenation; a fade filter after the concat would black out mid-video
// frames.
func buildFilter(c *Candidate, tracks []AudioTrack) string {
	var b strings.Builder

	for i, d := range c.Decisions {
		fmt.Fprintf(&b, "[%d:v]trim=start=%.3f:end=%.3f,setpts=PTS-STARTPTS", i, d.InPoint, d.OutPoint)
		if d.TransitionIn == TransitionFadeIn {
			fmt.Fprintf(&b, ",fade=t=in:st=0:d=%.3f", d.TransitionInDuration)
		}
		if d.TransitionOut == TransitionFadeOut {
			fmt.Fprintf(&b, ",fade=t=out:st=%.3f:d=%.3f", d.Duration-d.TransitionOutDuration, d.TransitionOutDuration)
		}
		fmt.Fprintf(&b, "[v%d];", i)
	}

	// Dissolving boundaries use xfade chains; pure cut timelines concat in
	// one step.
	if hasDissolve(c) {
		prev := "v0"
		offset := c.Decisions[0].Duration
		for i := 1; i < len(c.Decisions); i++ {
			d := c.Decisions[i]
			out := fmt.Sprintf("x%d", i)
			if i == len(c.Decisions)-1 {
				out = "vout"
			}
			if d.TransitionIn == TransitionCrossDissolve {
				offset -= d.TransitionInDuration
				fmt.Fprintf(&b, "[%s][v%d]xfade=transition=fade:duration=%.3f:offset=%.3f[%s];",
					prev, i, d.TransitionInDuration, offset, out)
			} else {
				fmt.Fprintf(&b, "[%s][v%d]concat=n=2:v=1:a=0[%s];", prev, i, out)
			}
			prev = out
			offset += d.Duration
		}
	} else {
		for i := range c.Decisions {
			fmt.Fprintf(&b, "[v%d]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[vout];", len(c.Decisions))
	}

	n := len(c.Decisions)
	for i, t := range tracks {
		delayMS := int(t.StartTime * 1000)
		fmt.Fprintf(&b, "[%d:a]volume=%.1fdB,adelay=%d|%d[a%d];", n+i, t.GainDB, delayMS, delayMS, i)
	}
	if len(tracks) > 0 {
		for i := range tracks {
			fmt.Fprintf(&b, "[a%d]", i)
		}
		fmt.Fprintf(&b, "amix=inputs=%d:normalize=0[aout];", len(tracks))
	}

	return strings.TrimSuffix(b.String(), ";")
}

func hasDissolve(c *Candidate) bool {
	for _, d := range c.Decisions {
		if d.TransitionIn == TransitionCrossDissolve || d.TransitionOut == TransitionCrossDissolve {
			return true
		}
	}
	return false
}
