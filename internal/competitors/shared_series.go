package competitors

import (
	"context"
	"fmt"
	"strings"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

type sharedSeriesResponse struct {
	MatchingTitles []string `json:"matchingTitles"`
}

// CheckShared asks the LLM which of a candidate's recent titles match a
// series' example titles, falling back to substring matching on LLM
// failure (spec §4.4 "check_shared"). A series is eligible iff at least
// domain.MinSharedSeriesMatches titles match.
func (d *Discoverer) CheckShared(ctx context.Context, seriesName string, exampleTitles, candidateTitles []string) (*domain.MatchingSeries, bool) {
	matches, err := d.checkSharedViaLLM(ctx, exampleTitles, candidateTitles)
	if err != nil {
		matches = checkSharedBySubstring(exampleTitles, candidateTitles)
	}
	if len(matches) < domain.MinSharedSeriesMatches {
		return nil, false
	}
	return &domain.MatchingSeries{SeriesName: seriesName, MatchingTitles: matches}, true
}

func (d *Discoverer) checkSharedViaLLM(ctx context.Context, exampleTitles, candidateTitles []string) ([]string, error) {
	system := `You compare a candidate channel's recent video titles against a series'
example titles to find an exact-matching subset: titles that clearly
belong to the same recurring series structure, not just topically
similar. Respond with JSON only: {"matchingTitles": ["..."]}`
	user := fmt.Sprintf("Series example titles:\n%s\n\nCandidate's recent titles:\n%s",
		bulletList(exampleTitles), bulletList(candidateTitles))

	var out sharedSeriesResponse
	_, err := d.llm.StructuredCall(ctx, llm.Request{
		Model:     d.model,
		System:    system,
		User:      []llm.Part{{Text: user}},
		MaxTokens: 1024,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.MatchingTitles, nil
}

// checkSharedBySubstring is the fallback: a candidate title matches if it
// contains any example title (or vice versa) as a case-insensitive
// substring.
func checkSharedBySubstring(exampleTitles, candidateTitles []string) []string {
	var matches []string
	for _, candidate := range candidateTitles {
		lowerCandidate := strings.ToLower(candidate)
		for _, example := range exampleTitles {
			lowerExample := strings.ToLower(example)
			if strings.Contains(lowerCandidate, lowerExample) || strings.Contains(lowerExample, lowerCandidate) {
				matches = append(matches, candidate)
				break
			}
		}
	}
	return matches
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}
