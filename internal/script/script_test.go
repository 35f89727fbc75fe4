package script

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

var lineShapeRe = regexp.MustCompile(`^\[[^\]]+\]:\s`)

type fakeDoer struct {
	responses []*http.Response
	calls     int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	r := f.responses[f.calls%len(f.responses)]
	f.calls++
	return r, nil
}

func jsonResp(body string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString(body)), Header: make(http.Header)}
}

func chatBody(content string) string {
	esc := strings.ReplaceAll(content, `"`, `\"`)
	esc = strings.ReplaceAll(esc, "\n", `\n`)
	return fmt.Sprintf(`{"choices":[{"finish_reason":"stop","message":{"content":"%s"}}],"usage":{"prompt_tokens":100,"completion_tokens":50}}`, esc)
}

func TestFormatHMS_PadsAndHandlesHours(t *testing.T) {
	assert.Equal(t, "00:00:20", formatHMS(20))
	assert.Equal(t, "01:02:03", formatHMS(3723))
}

func TestPostProcess_StripsMetaSentenceAndWordCountAndDedupesHeader(t *testing.T) {
	body := "Here is the segment you asked for\n" +
		"Intro (00:00:00 - 00:00:20, Duration: 00:00:20)\n" +
		"Intro (00:00:00 - 00:00:20, Duration: 00:00:20)\n" +
		"[Host]: Let's get started.\n" +
		"Word count: 120\n" +
		"This line is missing its speaker tag.\n"
	out := postProcess(body, "Host")
	lines := strings.Split(out, "\n")
	headerCount := 0
	for _, l := range lines {
		if strings.Contains(l, "Intro (") {
			headerCount++
		}
	}
	assert.Equal(t, 1, headerCount)
	assert.NotContains(t, out, "Word count")
	assert.Contains(t, out, "[Host]: This line is missing its speaker tag.")
	assert.NotContains(t, strings.ToLower(out), "here is the segment")
}

func TestGenerate_ShortSegmentProducesShapeCompliantScript(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(chatBody("Intro (00:00:00 - 00:00:20, Duration: 00:00:20)\n[Host]: Welcome back everyone.")),
	}}
	client := llm.New("key", "https://example.test", llm.WithHTTPClient(doer))
	gen := New(client, "test-model")

	outline := &domain.PlotOutline{
		Segments: []domain.Segment{{Name: "Intro", StartSec: 0, EndSec: 20, DurationSec: 20}},
	}
	full, report, notes := gen.Generate(context.Background(), "My Video", outline, nil, nil, "Host", "")
	require.Empty(t, notes)
	require.Len(t, full.Segments, 1)

	lines := strings.Split(full.Segments[0].Body, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, full.Segments[0].Header, lines[0], "body must start with the canonical segment header")
	headerCount := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line == full.Segments[0].Header {
			headerCount++
			continue
		}
		assert.Regexp(t, lineShapeRe, line)
	}
	assert.Equal(t, 1, headerCount, "header must appear exactly once")
	assert.Greater(t, report.TotalInputTokens, 0)
	assert.InDelta(t, report.TotalCostUSD, report.Segments[0].CostUSD, 1e-9)
}

func TestGenerate_LongSegmentChunks(t *testing.T) {
	chunkBody := chatBody("Body Chunk (00:00:00 - 00:45:00, Duration: 00:45:00)\n[Host]: Lots of dialogue here.")
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(chunkBody), jsonResp(chunkBody), jsonResp(chunkBody), jsonResp(chunkBody),
	}}
	client := llm.New("key", "https://example.test", llm.WithHTTPClient(doer))
	gen := New(client, "test-model")

	outline := &domain.PlotOutline{
		Segments: []domain.Segment{{Name: "Body Chunk", StartSec: 0, EndSec: 2700, DurationSec: 2700}},
	}
	_, _, notes := gen.Generate(context.Background(), "Long Video", outline, nil, nil, "Host", "")
	require.Empty(t, notes)
	// 2700s = 45min; minWords = 45*160 = 7200 > 1600 threshold -> ceil(7200/2000) = 4 chunks.
	assert.Equal(t, 4, doer.calls)
}

func TestGenerate_PlaceholderOnExhaustedRetries(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		{StatusCode: 500, Body: io.NopCloser(bytes.NewBufferString("boom")), Header: make(http.Header)},
	}}
	client := llm.New("key", "https://example.test", llm.WithHTTPClient(doer), llm.WithMaxAttempts(1))
	gen := New(client, "test-model")

	outline := &domain.PlotOutline{
		Segments: []domain.Segment{{Name: "Intro", StartSec: 0, EndSec: 20, DurationSec: 20}},
	}
	full, _, notes := gen.Generate(context.Background(), "My Video", outline, nil, nil, "Host", "")
	require.Len(t, notes, 1)
	assert.Contains(t, full.Segments[0].Body, "Error generating content for this segment")
}
