// Package thumbnail implements the Thumbnail Pipeline (spec §4.9): an
// LLM vision pass over reference thumbnails producing a fixed-schema
// guideline JSON, a local annotated-preview renderer over that JSON, and
// a thin client over a fine-tuned image model for concept generation.
// The guideline-to-preview compositing follows the teacher's
// internal/service/variations.go generateThumbnailImage shape (a
// fogleman/gg canvas, gradient background, measured/centered text,
// border stroke) generalized from a fixed "CLICK HERE" overlay into a
// guideline-zone-labeled preview driven by the analyzed JSON.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

// Zone is one labeled layout region of a thumbnail (e.g. "face",
// "title text", "logo bug").
type Zone struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"` // fraction of width, 0-1
	Y      float64 `json:"y"` // fraction of height, 0-1
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Typography describes the title-text treatment a series' thumbnails
// consistently use.
type Typography struct {
	FontStyle string `json:"fontStyle"`
	ColorHex  string `json:"colorHex"`
	MaxWords  int    `json:"maxWords"`
}

// TrainingGuidance is the prefix/suffix wrapped around every image-model
// prompt so the fine-tuned model keeps a series' visual identity
// (spec §4.9 "TRAINING_GUIDANCE block").
type TrainingGuidance struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Guidelines is the fixed-schema JSON an analysis pass produces
// (spec §4.9 "guideline JSON").
type Guidelines struct {
	LayoutZones         []Zone           `json:"layoutZones"`
	Typography          Typography       `json:"typography"`
	Overlays            []string         `json:"overlays"`
	SeriesConstants     []string         `json:"seriesConstants"`
	StyleClassification string          `json:"styleClassification"`
	TrainingGuidance    TrainingGuidance `json:"trainingGuidance"`
}

// guidanceScaleTable maps a style classification to the image model's
// guidance_scale parameter (spec §4.9 "mapped to a guidance_scale
// table"). Unclassified styles fall back to a balanced default.
var guidanceScaleTable = map[string]float64{
	"bold_contrast":     8.5,
	"minimalist":        6.0,
	"photo_realistic":   7.0,
	"illustrated":       9.0,
	"reaction_face":     8.0,
	"text_heavy":        7.5,
	"cinematic":         7.0,
	"meme_style":        9.5,
}

const defaultGuidanceScale = 7.0

// GuidanceScale looks up the image model's guidance_scale for a
// classified style.
func GuidanceScale(styleClassification string) float64 {
	if v, ok := guidanceScaleTable[strings.ToLower(strings.TrimSpace(styleClassification))]; ok {
		return v
	}
	return defaultGuidanceScale
}

// Analyzer runs the LLM vision pass over a set of reference thumbnails.
type Analyzer struct {
	llm   *llm.Client
	model string
}

// NewAnalyzer creates an Analyzer using client for its LLM calls.
func NewAnalyzer(client *llm.Client, model string) *Analyzer {
	return &Analyzer{llm: client, model: model}
}

// AnalyzeReferences produces Guidelines from a set of reference
// thumbnail URLs for a given series (spec §4.9 "Analyze references ->
// guideline JSON").
func (a *Analyzer) AnalyzeReferences(ctx context.Context, seriesName string, referenceURLs []string) (*Guidelines, error) {
	if len(referenceURLs) == 0 {
		return nil, domain.Validationf("thumbnail analysis requires at least one reference image")
	}
	var out Guidelines
	_, err := a.llm.StructuredCall(ctx, llm.Request{
		Model:     a.model,
		System:    analysisSystemPrompt(),
		User:      []llm.Part{{Text: analysisUserPrompt(seriesName, referenceURLs)}},
		MaxTokens: 2048,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func analysisSystemPrompt() string {
	return `You analyze a set of reference YouTube thumbnails from the same video
series and produce a fixed-schema JSON guideline describing the
reusable visual identity, so a fine-tuned image model can reproduce it
for new concepts. Respond with JSON only:
{"layoutZones": [{"name": "...", "x": 0.0, "y": 0.0, "width": 0.0,
"height": 0.0}], "typography": {"fontStyle": "...", "colorHex": "#...",
"maxWords": 0}, "overlays": ["..."], "seriesConstants": ["..."],
"styleClassification": "one of: bold_contrast, minimalist,
photo_realistic, illustrated, reaction_face, text_heavy, cinematic,
meme_style", "trainingGuidance": {"prefix": "...", "suffix": "..."}}
layoutZones coordinates are fractions of the image width/height (0-1).
trainingGuidance.prefix/suffix are the strings that must wrap every
future generation prompt to preserve this series' identity.`
}

func analysisUserPrompt(seriesName string, referenceURLs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Series: %s\n\nReference thumbnails:\n", seriesName)
	for _, u := range referenceURLs {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return b.String()
}

// RenderPreview composes a guideline-annotated preview image: a
// gradient background sized to a standard 1280x720 thumbnail, with each
// layout zone drawn as a labeled rectangle and the typography sample
// rendered in the guideline's font color (spec §4.9, grounded on the
// teacher's generateThumbnailImage gg usage).
func RenderPreview(g *Guidelines, concept string) ([]byte, error) {
	const wPx, hPx = 1280, 720
	const w, h float64 = wPx, hPx
	dc := gg.NewContext(wPx, hPx)

	grad := gg.NewLinearGradient(0, 0, w, h)
	grad.AddColorStop(0, color.RGBA{30, 30, 40, 255})
	grad.AddColorStop(1, color.RGBA{70, 70, 90, 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetLineWidth(3)
	for _, z := range g.LayoutZones {
		x, y := z.X*w, z.Y*h
		zw, zh := z.Width*w, z.Height*h
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(x, y, zw, zh)
		dc.Stroke()
		dc.DrawString(z.Name, x+4, y+16)
	}

	dc.SetRGB(1, 1, 1)
	if g.Typography.ColorHex != "" {
		dc.SetHexColor(g.Typography.ColorHex)
	}
	text := concept
	if text == "" {
		text = "(untitled concept)"
	}
	tw, th := dc.MeasureString(text)
	dc.DrawString(text, (w-tw)/2, (h+th)/2)

	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(8)
	dc.DrawRectangle(8, 8, w-16, h-16)
	dc.Stroke()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generator calls the fine-tuned image model to produce concept
// thumbnails (spec §4.9 "Generate thumbnails").
type Generator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGenerator creates a Generator.
func NewGenerator(apiKey, baseURL string) *Generator {
	return &Generator{apiKey: apiKey, baseURL: baseURL, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

type generateRequestBody struct {
	Model         string  `json:"model"`
	Prompt        string  `json:"prompt"`
	GuidanceScale float64 `json:"guidance_scale"`
	N             int     `json:"n"`
}

type generateResponseBody struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate renders concept thumbnails with a trained model reference
// (version + trigger word), wrapping concept in the guideline's
// training-guidance prefix/suffix (spec §4.9).
func (gen *Generator) Generate(ctx context.Context, modelVersion, triggerWord, concept string, g *Guidelines, count int) ([]string, error) {
	if count <= 0 {
		count = 1
	}
	prompt := triggerWord + " " + concept
	guidanceScale := defaultGuidanceScale
	if g != nil {
		if g.TrainingGuidance.Prefix != "" {
			prompt = g.TrainingGuidance.Prefix + " " + prompt
		}
		if g.TrainingGuidance.Suffix != "" {
			prompt = prompt + " " + g.TrainingGuidance.Suffix
		}
		guidanceScale = GuidanceScale(g.StyleClassification)
	}

	body := generateRequestBody{Model: modelVersion, Prompt: prompt, GuidanceScale: guidanceScale, N: count}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gen.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+gen.apiKey)

	resp, err := gen.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrUpstreamTransient, "image model request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, domain.NewError(domain.ErrUpstreamTransient, "image model upstream error", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.ErrInternal, "image model rejected request", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out generateResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.NewError(domain.ErrParse, "image model response decode failed", err)
	}
	urls := make([]string, 0, len(out.Data))
	for _, d := range out.Data {
		urls = append(urls, d.URL)
	}
	return urls, nil
}

// Pipeline bundles the analyzer and generator into the two operations
// the orchestrator drives (spec §4.9).
type Pipeline struct {
	Analyzer  *Analyzer
	Generator *Generator
}

// NewPipeline creates a Pipeline.
func NewPipeline(analyzer *Analyzer, generator *Generator) *Pipeline {
	return &Pipeline{Analyzer: analyzer, Generator: generator}
}

// Run analyzes reference thumbnails, then generates one thumbnail per
// requested concept using the resulting guidelines, returning the
// persisted ThumbnailAssets shape.
func (p *Pipeline) Run(ctx context.Context, projectID, seriesName string, referenceURLs []string, modelVersion, triggerWord string, concepts []string) (*domain.ThumbnailAssets, error) {
	guidelines, err := p.Analyzer.AnalyzeReferences(ctx, seriesName, referenceURLs)
	if err != nil {
		return nil, err
	}
	guidelinesJSON, err := json.Marshal(guidelines)
	if err != nil {
		return nil, err
	}

	assets := &domain.ThumbnailAssets{
		ProjectID:           projectID,
		GuidelinesJSON:      string(guidelinesJSON),
		TrainedModelVersion: modelVersion,
		TriggerWord:         triggerWord,
		Concepts:            concepts,
	}

	if modelVersion == "" || triggerWord == "" {
		// No trained model yet (training is an external collaborator,
		// spec §4.9) — return the guideline analysis alone.
		return assets, nil
	}
	for _, concept := range concepts {
		urls, err := p.Generator.Generate(ctx, modelVersion, triggerWord, concept, guidelines, 1)
		if err != nil {
			return nil, err
		}
		assets.RenderedURLs = append(assets.RenderedURLs, urls...)
	}
	return assets, nil
}
