package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/reelforge/reelforge/pkg/faults"
	"github.com/reelforge/reelforge/pkg/models"
)

// Per-request flat prices for reservation sizing.
const (
	openAIImageCostUSD        = 0.04
	openAITTSCostPer1kCharUSD = 0.015
)

// OpenAIImage generates still images, completing synchronously with
// base64-encoded payloads.
type OpenAIImage struct {
	api   *apiClient
	model string
}

// NewOpenAIImage builds the image client. baseURL defaults to the public API.
func NewOpenAIImage(apiKey, baseURL, model string, timeout time.Duration, ratePerMin int) *OpenAIImage {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIImage{api: newAPIClient("openai-image", baseURL, apiKey, timeout, ratePerMin), model: model}
}

// Name returns "openai-image".
func (o *OpenAIImage) Name() string { return "openai-image" }

// Kind returns IMAGE.
func (o *OpenAIImage) Kind() models.MediaKind { return models.KindImage }

// Describe reports the image sizes the model accepts.
func (o *OpenAIImage) Describe() Capabilities {
	return Capabilities{
		Kind:           models.KindImage,
		Implemented:    true,
		AspectRatios:   []string{"1:1", "3:2", "2:3"},
		RequiredInputs: []string{"prompt"},
		OptionalInputs: []string{"size"},
	}
}

// ValidateCredentials retrieves the configured model, which requires a valid
// key but costs nothing.
func (o *OpenAIImage) ValidateCredentials(ctx context.Context) error {
	if o.api.apiKey == "" {
		return faults.New(faults.CredentialMissing, "openai-image has no API key")
	}
	return o.api.doJSON(ctx, http.MethodGet, "/models/"+o.model, nil, nil)
}

// EstimateCost is a flat per-image price.
func (o *OpenAIImage) EstimateCost(Request) float64 { return openAIImageCostUSD }

// Generate requests one image and writes the decoded payload to OutputPath.
func (o *OpenAIImage) Generate(ctx context.Context, req Request) (Outcome, error) {
	if req.OutputPath == "" {
		return Outcome{}, faults.New(faults.InputInvalid, "image generation requires an output path")
	}
	var resp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	body := map[string]any{
		"model":  o.model,
		"prompt": req.Prompt,
		"n":      1,
	}
	if req.Size != "" {
		body["size"] = req.Size
	}
	if err := o.api.doJSON(ctx, http.MethodPost, "/images/generations", body, &resp); err != nil {
		return Outcome{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Outcome{}, faults.New(faults.ProviderPermanent, "openai returned no image data")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Outcome{}, faults.Wrap(faults.ProviderPermanent, err, "decode image payload")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Outcome{}, faults.Wrap(faults.JournalIO, err, "create output dir")
	}
	if err := renameio.WriteFile(req.OutputPath, raw, 0o644); err != nil {
		return Outcome{}, faults.Wrap(faults.JournalIO, err, "write image")
	}
	return Outcome{Ready: &Result{
		LocalPath: req.OutputPath,
		CostUSD:   openAIImageCostUSD,
		Metadata:  map[string]string{"model": o.model},
	}}, nil
}

// Poll is never reached for a synchronous provider.
func (o *OpenAIImage) Poll(context.Context, string) (*PendingJob, error) {
	return nil, faults.New(faults.InputInvalid, "openai-image completes synchronously and has no jobs")
}

// Download is never reached for a synchronous provider.
func (o *OpenAIImage) Download(context.Context, *PendingJob, string) (*Result, error) {
	return nil, faults.New(faults.InputInvalid, "openai-image completes synchronously and has no jobs")
}

// OpenAITTS synthesizes voice-over audio, streaming the response body
// directly to disk.
type OpenAITTS struct {
	api   *apiClient
	model string
	voice string
	speed float64
}

// NewOpenAITTS builds the speech client.
func NewOpenAITTS(apiKey, baseURL, model, voice string, speed float64, timeout time.Duration, ratePerMin int) *OpenAITTS {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &OpenAITTS{
		api:   newAPIClient("openai-tts", baseURL, apiKey, timeout, ratePerMin),
		model: model,
		voice: voice,
		speed: speed,
	}
}

// Name returns "openai-tts".
func (o *OpenAITTS) Name() string { return "openai-tts" }

// Kind returns AUDIO.
func (o *OpenAITTS) Kind() models.MediaKind { return models.KindAudio }

// ttsVoices is the fixed voice catalogue of the speech endpoint.
var ttsVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// Describe lists the available voices alongside the speech surface.
func (o *OpenAITTS) Describe() Capabilities {
	return Capabilities{
		Kind:           models.KindAudio,
		Implemented:    true,
		Voices:         ttsVoices,
		RequiredInputs: []string{"prompt"},
		OptionalInputs: []string{"voice", "speed"},
	}
}

// ValidateCredentials retrieves the configured model, which requires a valid
// key but costs nothing.
func (o *OpenAITTS) ValidateCredentials(ctx context.Context) error {
	if o.api.apiKey == "" {
		return faults.New(faults.CredentialMissing, "openai-tts has no API key")
	}
	return o.api.doJSON(ctx, http.MethodGet, "/models/"+o.model, nil, nil)
}

// EstimateCost prices by input length.
func (o *OpenAITTS) EstimateCost(req Request) float64 {
	chars := len(req.Prompt)
	if chars == 0 {
		chars = 100
	}
	return float64(chars) / 1000.0 * openAITTSCostPer1kCharUSD
}

// Generate synthesizes speech for the prompt text and writes it to
// OutputPath.
func (o *OpenAITTS) Generate(ctx context.Context, req Request) (Outcome, error) {
	if req.OutputPath == "" {
		return Outcome{}, faults.New(faults.InputInvalid, "speech synthesis requires an output path")
	}
	voice := o.voice
	if req.Voice != "" {
		voice = req.Voice
	}
	speed := o.speed
	if req.Speed > 0 {
		speed = req.Speed
	}
	body := map[string]any{
		"model": o.model,
		"input": req.Prompt,
		"voice": voice,
		"speed": speed,
	}
	if _, err := o.api.doBinary(ctx, http.MethodPost, "/audio/speech", body, req.OutputPath); err != nil {
		return Outcome{}, err
	}
	return Outcome{Ready: &Result{
		LocalPath: req.OutputPath,
		CostUSD:   o.EstimateCost(req),
		Metadata:  map[string]string{"model": o.model, "voice": voice},
	}}, nil
}

// Poll is never reached for a synchronous provider.
func (o *OpenAITTS) Poll(context.Context, string) (*PendingJob, error) {
	return nil, faults.New(faults.InputInvalid, "openai-tts completes synchronously and has no jobs")
}

// Download is never reached for a synchronous provider.
func (o *OpenAITTS) Download(context.Context, *PendingJob, string) (*Result, error) {
	return nil, faults.New(faults.InputInvalid, "openai-tts completes synchronously and has no jobs")
}
