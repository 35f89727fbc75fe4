// Package script implements the Full Script component (spec §4.8):
// parallel per-segment generation with prompt caching, chunking of long
// segments, post-processing, and cost accounting. The bounded-concurrency
// fan-out follows the teacher's internal/service/batch.go worker-pool
// shape (a semaphore-limited group of goroutines writing into a
// pre-sized, index-addressed result slice so output order survives
// concurrent completion), generalized here from whole-video batch jobs
// to per-segment script chunks within a single video.
package script

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

const (
	wordsPerMinuteTarget = 170
	wordsPerMinuteMin    = 160
	chunkWordThreshold   = 1600
	wordsPerChunkTarget  = 2000
	segmentConcurrency   = 5
	chunkRetries         = 3
	segmentRetries       = 5

	costInputPerMillion       = 3.0
	costOutputPerMillion      = 15.0
	cachedInputDiscountFactor = 0.10 // cached input billed at 10% of list rate
)

const segmentBreak = "=== SEGMENT BREAK ==="

// Character is one named participant in the script (host, co-host,
// recurring guest).
type Character struct {
	Name        string
	Description string
}

// Generator produces a FullScript for a PlotOutline + ScriptBreakdown.
type Generator struct {
	llm   *llm.Client
	model string
	sem   chan struct{}
}

// New creates a Generator bounded by the global per-worker concurrency
// semaphore (spec §5 "LLM calls: a global semaphore (default 5)").
func New(client *llm.Client, model string) *Generator {
	return &Generator{llm: client, model: model, sem: make(chan struct{}, segmentConcurrency)}
}

// Generate produces the full rendered script and its cost report
// (spec §4.8 "full_script").
func (g *Generator) Generate(ctx context.Context, title string, outline *domain.PlotOutline, breakdown *domain.ScriptBreakdown, characters []Character, hostName string, sponsoredInstructions string) (*domain.FullScript, *domain.CostReport, []string) {
	n := len(outline.Segments)
	rendered := make([]domain.RenderedSegment, n)
	costs := make([]domain.SegmentCost, n)
	placeholders := make([]string, n)

	var wg sync.WaitGroup
	for i, seg := range outline.Segments {
		wg.Add(1)
		go func(i int, seg domain.Segment) {
			defer wg.Done()
			g.sem <- struct{}{}
			defer func() { <-g.sem }()

			body, cost, placeholderNote := g.generateSegment(ctx, title, seg, outline, breakdown, characters, hostName, sponsoredInstructions)
			rendered[i] = domain.RenderedSegment{Header: segmentHeader(seg), Body: body}
			costs[i] = cost
			placeholders[i] = placeholderNote
		}(i, seg)
	}
	wg.Wait()

	var notes []string
	for _, p := range placeholders {
		if p != "" {
			notes = append(notes, p)
		}
	}

	report := &domain.CostReport{}
	var textParts []string
	for i := range rendered {
		report.Add(costs[i])
		textParts = append(textParts, rendered[i].Body)
	}

	full := &domain.FullScript{
		Title:    title,
		Segments: rendered,
		Text:     strings.Join(textParts, "\n"+segmentBreak+"\n"),
		Cost:     *report,
	}
	return full, report, notes
}

// generateSegment produces one segment's body, chunking it if its
// target word count exceeds chunkWordThreshold (spec §4.8 step 1).
// Per-segment failures after exhausting retries never abort the run:
// they return a single placeholder line instead (spec §4.8 "Failure
// semantics").
func (g *Generator) generateSegment(ctx context.Context, title string, seg domain.Segment, outline *domain.PlotOutline, breakdown *domain.ScriptBreakdown, characters []Character, hostName, sponsored string) (string, domain.SegmentCost, string) {
	minutes := float64(seg.DurationSec) / 60
	minWords := int(minutes * wordsPerMinuteMin)

	cost := domain.SegmentCost{SegmentName: seg.Name}

	header := segmentHeader(seg)

	if minWords <= chunkWordThreshold {
		body, usage, err := g.callSegmentWithRetry(ctx, title, seg, outline, breakdown, characters, hostName, sponsored, 1, 1)
		accumulateCost(&cost, usage)
		if err != nil {
			return header + "\n" + placeholderLine(hostName), cost, fmt.Sprintf("%s: placeholder inserted after %d retries: %v", seg.Name, segmentRetries, err)
		}
		return header + "\n" + postProcess(stripHeaderLine(body), hostName), cost, ""
	}

	numChunks := int(math.Ceil(float64(minWords) / float64(wordsPerChunkTarget)))
	var chunks []string
	for c := 0; c < numChunks; c++ {
		body, usage, err := g.callSegmentWithRetry(ctx, title, seg, outline, breakdown, characters, hostName, sponsored, c+1, numChunks)
		accumulateCost(&cost, usage)
		if err != nil {
			return header + "\n" + placeholderLine(hostName), cost, fmt.Sprintf("%s: placeholder inserted after %d retries (chunk %d/%d): %v", seg.Name, chunkRetries, c+1, numChunks, err)
		}
		chunks = append(chunks, stripHeaderLine(body))
	}
	return header + "\n" + postProcess(strings.Join(chunks, "\n"), hostName), cost, ""
}

// callSegmentWithRetry retries a single call up to segmentRetries times
// for an unchunked segment, or chunkRetries times for one chunk of a
// split segment, on top of the underlying LLM client's own transient
// retries; its attempts follow one another without delay.
func (g *Generator) callSegmentWithRetry(ctx context.Context, title string, seg domain.Segment, outline *domain.PlotOutline, breakdown *domain.ScriptBreakdown, characters []Character, hostName, sponsored string, chunkIdx, chunkTotal int) (string, llm.Usage, error) {
	system := segmentSystemPrompt(seg, hostName)
	user := segmentUserPrompt(title, seg, outline, breakdown, characters, hostName, sponsored, chunkIdx, chunkTotal)

	maxAttempts := segmentRetries
	if chunkTotal > 1 {
		maxAttempts = chunkRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := g.llm.Call(ctx, llm.Request{
			Model:     g.model,
			System:    system,
			User:      []llm.Part{{Text: staticGuidelinesBlock(seg), CacheEphemeral: true}, {Text: user}},
			MaxTokens: 8192,
		})
		if err == nil {
			return resp.Text, resp.Usage, nil
		}
		lastErr = err
	}
	return "", llm.Usage{}, lastErr
}

func accumulateCost(cost *domain.SegmentCost, usage llm.Usage) {
	cost.InputTokens += usage.InputTokens
	cost.OutputTokens += usage.OutputTokens
	cost.CacheReadTokens += usage.CacheReadTokens
	billableInput := float64(usage.InputTokens-usage.CacheReadTokens) + float64(usage.CacheReadTokens)*cachedInputDiscountFactor
	cost.CostUSD += billableInput/1_000_000*costInputPerMillion + float64(usage.OutputTokens)/1_000_000*costOutputPerMillion
}

func placeholderLine(hostName string) string {
	return fmt.Sprintf("[%s]: Error generating content for this segment.", displayHost(hostName))
}

func displayHost(hostName string) string {
	if hostName == "" {
		return "HOST_NAME"
	}
	return hostName
}

func segmentHeader(seg domain.Segment) string {
	return fmt.Sprintf("%s (%s - %s, Duration: %s)", seg.Name, formatHMS(seg.StartSec), formatHMS(seg.EndSec), formatHMS(seg.DurationSec))
}

func formatHMS(totalSec int) string {
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	s := totalSec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

var (
	metaSentenceRe = regexp.MustCompile(`(?i)^(i understand|here is|here's|sure[,!]?|certainly|of course)[^\n]*\n`)
	wordCountRe    = regexp.MustCompile(`(?im)^\s*word count:?\s*\d+\s*$`)
	bareNumberRe   = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	dialogueLineRe = regexp.MustCompile(`^\[[^\]]+\]:\s`)
	headerLineRe   = regexp.MustCompile(`^.+\(\d{1,2}:\d{2}(:\d{2})?\s*-\s*\d{1,2}:\d{2}(:\d{2})?,\s*Duration:\s*\d{1,2}:\d{2}(:\d{2})?\)$`)
)

// postProcess applies spec §4.8 step 3's cleanup rules: strip a leading
// meta-sentence, remove word-count trailers, collapse duplicate headers,
// and prepend [host_name]: to any dialogue-looking line missing its
// speaker tag.
func postProcess(body, hostName string) string {
	body = metaSentenceRe.ReplaceAllString(strings.TrimLeft(body, "\n"), "")
	body = wordCountRe.ReplaceAllString(body, "")
	body = bareNumberRe.ReplaceAllString(body, "")

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	seenHeader := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if headerLineRe.MatchString(trimmed) {
			if seenHeader {
				continue
			}
			seenHeader = true
			out = append(out, trimmed)
			continue
		}
		if !dialogueLineRe.MatchString(trimmed) && looksLikeDialogue(trimmed) {
			trimmed = fmt.Sprintf("[%s]: %s", displayHost(hostName), trimmed)
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

func looksLikeDialogue(line string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, `"`) || strings.HasPrefix(line, "“") {
		return true
	}
	r := line[0]
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func stripHeaderLine(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for _, l := range lines {
		if headerLineRe.MatchString(strings.TrimSpace(l)) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func staticGuidelinesBlock(seg domain.Segment) string {
	return fmt.Sprintf(`Output rules (apply to every response in this script generation run):
- The first line must be exactly the segment header as given.
- Every subsequent non-blank line must match ^\[NAME\]:\s (a speaker tag
  followed by dialogue).
- No meta-commentary, no "Word count: N" trailers, no bare numbers.
- Replace any channel-specific phrase from the style template with
  [HOST_NAME] or the supplied host name.`)
}

func segmentSystemPrompt(seg domain.Segment, hostName string) string {
	return fmt.Sprintf(`You write one segment of a long-form YouTube script, writing in the
voice described by the supplied Writing Style Analysis.

Segment: %s
Strict output rules:
- First line is exactly: %s
- Every other non-blank line matches ^\[NAME\]:\s — no exceptions.
- Never include meta-commentary, apologies, or word counts.
- Use %q wherever the style template references a host or channel name.`,
		seg.Name, segmentHeader(seg), displayHost(hostName))
}

func segmentUserPrompt(title string, seg domain.Segment, outline *domain.PlotOutline, breakdown *domain.ScriptBreakdown, characters []Character, hostName, sponsored string, chunkIdx, chunkTotal int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video title: %s\n\n", title)
	b.WriteString("Full plot outline:\n")
	for _, s := range outline.Segments {
		fmt.Fprintf(&b, "- %s (%ds)\n", s.Name, s.DurationSec)
		for _, kp := range s.KeyPoints {
			fmt.Fprintf(&b, "  * %s\n", kp)
		}
	}
	if breakdown != nil {
		fmt.Fprintf(&b, "\nWriting Style Analysis:\n%s\n", breakdown.WritingStyleAnalysis)
	}
	if len(characters) > 0 {
		b.WriteString("\nCharacters:\n")
		for _, c := range characters {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
		}
	}
	if sponsored != "" {
		fmt.Fprintf(&b, "\nSponsored segment instructions (integrate after the hook, before the main content):\n%s\n", sponsored)
	}
	if chunkTotal > 1 {
		fmt.Fprintf(&b, "\nThis is chunk %d of %d for this segment; write only this chunk's portion, continuing naturally from the previous chunk.\n", chunkIdx, chunkTotal)
	}
	fmt.Fprintf(&b, "\nWrite this segment now.")
	return b.String()
}
