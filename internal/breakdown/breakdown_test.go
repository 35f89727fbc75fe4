package breakdown

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/llm"
)

type fakeDoer struct {
	responses []*http.Response
	calls     int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func jsonResp(body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func chatResp(content string) *http.Response {
	quoted, _ := json.Marshal(content)
	return jsonResp(`{"choices":[{"finish_reason":"stop","message":{"content":` + string(quoted) + `}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`)
}

func TestBreakdown_RejectsEmptyInputs(t *testing.T) {
	a := New(llm.New("key", "https://example.test"), "m")
	_, err := a.Breakdown(context.Background(), "proj-1", "Mysteries", "Unsolved", nil)
	require.Error(t, err)
}

func TestBreakdown_SingleTranscriptSkipsMerge(t *testing.T) {
	analysis := `{"structure":"intro then body","segmentTemplates":["hook"],"transitionTechniques":["cut"],"recurringElements":["catchphrase"],"writingStyleAnalysis":"punchy","isClipReactive":false}`
	doer := &fakeDoer{responses: []*http.Response{chatResp(analysis)}}
	a := New(llm.New("key", "https://example.test", llm.WithHTTPClient(doer)), "m")

	bd, err := a.Breakdown(context.Background(), "proj-1", "Mysteries", "Unsolved", []TranscriptInput{
		{Title: "Ep 1", Transcript: "once upon a time", DurationSec: 600},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doer.calls)
	assert.Equal(t, "proj-1", bd.ProjectID)
	assert.Equal(t, "Mysteries", bd.SeriesName)
	assert.Equal(t, "Unsolved", bd.ThemeName)
	assert.Contains(t, bd.ScriptBreakdownText, "## Video Structure")
	assert.Contains(t, bd.ScriptBreakdownText, "intro then body")
}

func TestBreakdown_MultipleTranscriptsMerges(t *testing.T) {
	analysisOne := `{"structure":"a","segmentTemplates":["s1"],"transitionTechniques":["t1"],"recurringElements":["r1"],"writingStyleAnalysis":"w1","isClipReactive":false}`
	analysisTwo := `{"structure":"b","segmentTemplates":["s2"],"transitionTechniques":["t2"],"recurringElements":["r2"],"writingStyleAnalysis":"w2","isClipReactive":true}`
	merged := `{"structure":"merged","segmentTemplates":["s1","s2"],"transitionTechniques":["t1","t2"],"recurringElements":["r1","r2"],"writingStyleAnalysis":"merged-style","isClipReactive":true}`
	doer := &fakeDoer{responses: []*http.Response{chatResp(analysisOne), chatResp(analysisTwo), chatResp(merged)}}
	a := New(llm.New("key", "https://example.test", llm.WithHTTPClient(doer)), "m")

	bd, err := a.Breakdown(context.Background(), "proj-1", "Mysteries", "Unsolved", []TranscriptInput{
		{Title: "Ep 1", Transcript: "first video", DurationSec: 600},
		{Title: "Ep 2", Transcript: "second video", DurationSec: 700},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, doer.calls)
	assert.Equal(t, "merged", bd.Structure)
	assert.True(t, bd.IsClipReactive)
}
