// Package breakdown implements the Script Breakdown component (spec
// §4.6): a transcript-derived style-analysis template capturing both a
// video series' structure and its writing voice. It follows the
// teacher's internal/service/ai_script.go shape (a system-prompt
// builder + a single structured LLM call per request) generalized from
// a one-shot "generate a script" prompt into the two-stage
// analyze-then-merge flow the spec requires.
package breakdown

import (
	"context"
	"fmt"
	"strings"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

const maxSegmentMinutes = 10

// TranscriptInput is one source video's transcript-derived inputs
// (spec §4.6 "breakdown(series, theme, transcripts, durations, titles,
// descriptions)").
type TranscriptInput struct {
	Title       string
	Description string
	Transcript  string
	DurationSec int
}

type analysisResult struct {
	Structure            string   `json:"structure"`
	SegmentTemplates      []string `json:"segmentTemplates"`
	TransitionTechniques  []string `json:"transitionTechniques"`
	RecurringElements     []string `json:"recurringElements"`
	WritingStyleAnalysis  string   `json:"writingStyleAnalysis"`
	IsClipReactive        bool     `json:"isClipReactive"`
}

// Analyzer runs the per-transcript style analysis and cross-transcript
// merge LLM calls.
type Analyzer struct {
	llm   *llm.Client
	model string
}

// New creates an Analyzer using client for its LLM calls.
func New(client *llm.Client, model string) *Analyzer {
	return &Analyzer{llm: client, model: model}
}

// Breakdown produces a ScriptBreakdown for (series, theme) from one or
// more source transcripts (spec §4.6).
func (a *Analyzer) Breakdown(ctx context.Context, projectID, seriesName, themeName string, inputs []TranscriptInput) (*domain.ScriptBreakdown, error) {
	if len(inputs) == 0 {
		return nil, domain.Validationf("breakdown requires at least one transcript")
	}

	results := make([]*analysisResult, 0, len(inputs))
	for _, in := range inputs {
		r, err := a.analyzeOne(ctx, in)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	final := results[0]
	if len(results) > 1 {
		merged, err := a.merge(ctx, results)
		if err != nil {
			return nil, err
		}
		final = merged
	}

	return &domain.ScriptBreakdown{
		ProjectID:            projectID,
		SeriesName:           seriesName,
		ThemeName:            themeName,
		IsClipReactive:       final.IsClipReactive,
		Structure:            final.Structure,
		SegmentTemplates:     final.SegmentTemplates,
		TransitionTechniques: final.TransitionTechniques,
		RecurringElements:    final.RecurringElements,
		WritingStyleAnalysis: final.WritingStyleAnalysis,
		ScriptBreakdownText:  renderBreakdownText(final),
	}, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, in TranscriptInput) (*analysisResult, error) {
	var out analysisResult
	_, err := a.llm.StructuredCall(ctx, llm.Request{
		Model:     a.model,
		System:    styleAnalysisSystemPrompt(),
		User:      []llm.Part{{Text: renderTranscriptPrompt(in)}},
		MaxTokens: 4096,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Analyzer) merge(ctx context.Context, results []*analysisResult) (*analysisResult, error) {
	var out analysisResult
	_, err := a.llm.StructuredCall(ctx, llm.Request{
		Model:     a.model,
		System:    mergeSystemPrompt(),
		User:      []llm.Part{{Text: renderMergePrompt(results)}},
		MaxTokens: 4096,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func styleAnalysisSystemPrompt() string {
	return fmt.Sprintf(`You analyze a YouTube video's transcript and produce a reusable style
template for writing future videos in the same series.

Produce, as JSON, a breakdown covering:
- "structure": the Video Structure, with approximate timestamps for each
  section.
- "segmentTemplates": the Segment Outline Template — one entry per
  segment, each naming its plot points and duration. No segment template
  may describe a segment exceeding %d minutes; if the source video has a
  longer section, split it into multiple template entries.
- "transitionTechniques": 3-5 transition techniques observed between
  segments.
- "recurringElements": 3-5 recurring elements (running bits, catchphrases,
  visual motifs).
- "writingStyleAnalysis": a Writing Style Analysis covering sentence
  structure, vocabulary, pacing, rhetorical devices, character voice,
  engagement techniques, and callbacks.
- "isClipReactive": true if the video is primarily reacting to clips
  rather than original narration.

Every example you quote must replace channel-specific names with
[CHANNEL_NAME] or host names with [HOST_NAME]. Respond with JSON only:
{"structure": "...", "segmentTemplates": ["..."], "transitionTechniques":
["..."], "recurringElements": ["..."], "writingStyleAnalysis": "...",
"isClipReactive": false}`, maxSegmentMinutes)
}

func mergeSystemPrompt() string {
	return `You are given several per-video style breakdowns for the same series and
theme. Merge them into a single unified breakdown that preserves the
timing detail of each, in the same JSON shape as the inputs:
{"structure": "...", "segmentTemplates": ["..."], "transitionTechniques":
["..."], "recurringElements": ["..."], "writingStyleAnalysis": "...",
"isClipReactive": false}`
}

func renderTranscriptPrompt(in TranscriptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", in.Description)
	}
	fmt.Fprintf(&b, "Duration: %d seconds\n\nTranscript:\n%s", in.DurationSec, in.Transcript)
	return b.String()
}

func renderMergePrompt(results []*analysisResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "--- Breakdown %d ---\n", i+1)
		fmt.Fprintf(&b, "Structure: %s\n", r.Structure)
		fmt.Fprintf(&b, "Segment templates: %s\n", strings.Join(r.SegmentTemplates, "; "))
		fmt.Fprintf(&b, "Transitions: %s\n", strings.Join(r.TransitionTechniques, "; "))
		fmt.Fprintf(&b, "Recurring elements: %s\n", strings.Join(r.RecurringElements, "; "))
		fmt.Fprintf(&b, "Writing style: %s\n\n", r.WritingStyleAnalysis)
	}
	return b.String()
}

// renderBreakdownText wraps the final structured result as the
// persisted text blob (spec §4.6 step 4).
func renderBreakdownText(r *analysisResult) string {
	var b strings.Builder
	b.WriteString("## Video Structure\n")
	b.WriteString(r.Structure)
	b.WriteString("\n\n## Segment Outline Template\n")
	for _, s := range r.SegmentTemplates {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n## Transition Techniques\n")
	for _, t := range r.TransitionTechniques {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("\n## Recurring Elements\n")
	for _, e := range r.RecurringElements {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\n## Writing Style Analysis\n")
	b.WriteString(r.WritingStyleAnalysis)
	return b.String()
}
