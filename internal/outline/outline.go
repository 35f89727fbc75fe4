// Package outline implements the Plot Outline component (spec §4.7): a
// duration-budgeted, timestamped segment planner with a continuation
// loop for truncated responses and strict parse/validate rules. The
// continuation-retry shape follows the teacher's
// internal/service/ai_scene.go pattern of re-prompting the same model
// call with an incremental instruction when a first pass comes back
// incomplete, generalized here to the Video Structure section
// specifically (spec §4.7 step 2).
package outline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

const (
	maxContinuations = 3
	continuationMarker = "would you like me to continue"
)

// Planner produces PlotOutlines via a free-text LLM call and a strict
// local parser/validator.
type Planner struct {
	llm   *llm.Client
	model string
}

// New creates a Planner using client for its LLM calls.
func New(client *llm.Client, model string) *Planner {
	return &Planner{llm: client, model: model}
}

// Outline produces a validated PlotOutline for title given a
// ScriptBreakdown template and a target video length in minutes
// (spec §4.7 "outline").
func (p *Planner) Outline(ctx context.Context, title string, breakdown *domain.ScriptBreakdown, seriesName, themeName string, videoLengthMin int) (*domain.PlotOutline, error) {
	system := outlineSystemPrompt(videoLengthMin)
	user := outlineUserPrompt(title, breakdown, seriesName, themeName, videoLengthMin)

	text, err := p.callWithContinuation(ctx, system, user)
	if err != nil {
		return nil, err
	}

	segments, err := parseVideoStructure(text)
	if err != nil {
		return nil, err
	}

	plot := buildPlotOutline(title, segments)
	if err := Validate(plot); err != nil {
		return nil, err
	}
	return plot, nil
}

// callWithContinuation issues the initial call and, while the response
// contains a continuation marker, re-prompts up to maxContinuations times
// asking only for the remainder of the Video Structure section,
// concatenating results (spec §4.7 step 2, §8 scenario 3).
func (p *Planner) callWithContinuation(ctx context.Context, system, user string) (string, error) {
	resp, err := p.llm.Call(ctx, llm.Request{Model: p.model, System: system, User: []llm.Part{{Text: user}}, MaxTokens: 4096})
	if err != nil {
		return "", err
	}
	full := resp.Text

	for i := 0; i < maxContinuations && containsContinuationMarker(full); i++ {
		contSystem := system + "\n\nContinue ONLY the Video Structure section from where it left off. Do not repeat earlier segments."
		contUser := "Here is what has been produced so far:\n" + full + "\n\nContinue the Video Structure section."
		contResp, err := p.llm.Call(ctx, llm.Request{Model: p.model, System: contSystem, User: []llm.Part{{Text: contUser}}, MaxTokens: 4096})
		if err != nil {
			return "", err
		}
		full = stripContinuationMarker(full) + "\n" + contResp.Text
	}
	return full, nil
}

func containsContinuationMarker(s string) bool {
	return strings.Contains(strings.ToLower(s), continuationMarker)
}

func stripContinuationMarker(s string) string {
	lower := strings.ToLower(s)
	if idx := strings.Index(lower, continuationMarker); idx >= 0 {
		// Trim back to the start of the line carrying the marker.
		lineStart := strings.LastIndex(s[:idx], "\n")
		if lineStart < 0 {
			lineStart = 0
		}
		return strings.TrimRight(s[:lineStart], "\n")
	}
	return s
}

var structureLineRe = regexp.MustCompile(
	`^\s*\d+\.\s+(.+?)\s*\(\s*([\d:]+)\s*-\s*([\d:]+)\s*,\s*Duration:\s*([\d:]+)\s*\)\s*$`)

type parsedSegment struct {
	name        string
	startSec    int
	endSec      int
	durationSec int
}

// parseVideoStructure extracts one entry per line matching the Video
// Structure grammar (spec §4.7 step 3, §6 "Plot-outline timestamp
// grammar").
func parseVideoStructure(text string) ([]parsedSegment, error) {
	var segments []parsedSegment
	for _, line := range strings.Split(text, "\n") {
		m := structureLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start, err := parseTimestamp(m[2])
		if err != nil {
			continue
		}
		end, err := parseTimestamp(m[3])
		if err != nil {
			continue
		}
		duration, err := parseTimestamp(m[4])
		if err != nil {
			continue
		}
		segments = append(segments, parsedSegment{
			name:        strings.TrimSpace(m[1]),
			startSec:    start,
			endSec:      end,
			durationSec: duration,
		})
	}
	if len(segments) == 0 {
		return nil, domain.NewError(domain.ErrParse, "no Video Structure lines parsed", nil)
	}
	return segments, nil
}

// parseTimestamp parses HH:MM:SS or MM:SS into whole seconds, supporting
// hours unbounded (spec §6).
func parseTimestamp(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var h, m, sec int
	var err error
	switch len(parts) {
	case 2:
		m, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, err
		}
		sec, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, err
		}
	case 3:
		h, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, err
		}
		m, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, err
		}
		sec, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return h*3600 + m*60 + sec, nil
}

func buildPlotOutline(title string, segments []parsedSegment) *domain.PlotOutline {
	out := &domain.PlotOutline{Title: title}
	for _, s := range segments {
		out.Segments = append(out.Segments, domain.Segment{
			Name:        s.name,
			StartSec:    s.startSec,
			EndSec:      s.endSec,
			DurationSec: s.durationSec,
		})
		out.TotalDurationSec += s.durationSec
	}
	return out
}

// Validate enforces the PlotOutline invariants (spec §3, §8 "Outline
// soundness"): durations sum to the total, segments are contiguous, no
// segment exceeds the hard cap, and the first (introduction) segment is
// short.
func Validate(p *domain.PlotOutline) error {
	if len(p.Segments) == 0 {
		return domain.Validationf("plot outline has no segments")
	}
	sum := 0
	for i, s := range p.Segments {
		sum += s.DurationSec
		if s.DurationSec > domain.MaxSegmentDurationSec {
			return domain.Validationf("segment %q exceeds max duration: %ds > %ds", s.Name, s.DurationSec, domain.MaxSegmentDurationSec)
		}
		if i > 0 {
			prev := p.Segments[i-1]
			if s.StartSec != prev.EndSec {
				return domain.Validationf("segment %q does not start where %q ends (%d != %d)", s.Name, prev.Name, s.StartSec, prev.EndSec)
			}
		}
	}
	if p.Segments[0].DurationSec > domain.MaxIntroDurationSec {
		return domain.Validationf("introduction segment exceeds %ds: got %ds", domain.MaxIntroDurationSec, p.Segments[0].DurationSec)
	}
	if sum != p.TotalDurationSec {
		return domain.Validationf("segment durations sum to %ds, want %ds", sum, p.TotalDurationSec)
	}
	return nil
}

// forbiddenGenericLabels lists generic segment names the prompt must
// steer the model away from reusing verbatim (spec §4.7 step 1).
var forbiddenGenericLabels = []string{
	"introduction", "conclusion", "opening title", "primary warning signs",
	"segment 1", "segment 2", "outro", "intro",
}

func outlineSystemPrompt(videoLengthMin int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You produce a Plot Outline for a %d-minute video as a "Video Structure"
section: a numbered list, one line per segment, in the exact format:

N. Segment Title (HH:MM:SS - HH:MM:SS, Duration: HH:MM:SS)

Rules:
- List every segment explicitly; never write "continue" or "..." as a
  placeholder for remaining segments.
- Each line must be followed by that segment's key points as a bullet
  list.
- The introduction segment (first) must be 20 seconds or less.
- No segment may exceed 10 minutes; split any segment that would
  otherwise run longer.
- Segment titles must be renamed from generic template labels into
  story-specific 2-6 word titles. Do NOT reuse generic labels such as: %s.
`, videoLengthMin, strings.Join(forbiddenGenericLabels, ", "))
	return b.String()
}

func outlineUserPrompt(title string, breakdown *domain.ScriptBreakdown, seriesName, themeName string, videoLengthMin int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video title: %s\nSeries: %s\nTheme: %s\nTarget length: %d minutes\n\n",
		title, seriesName, themeName, videoLengthMin)
	if breakdown != nil {
		b.WriteString("Script breakdown template to follow:\n")
		b.WriteString(breakdown.ScriptBreakdownText)
	}
	return b.String()
}
