package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func jsonResp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestStructuredCall_RepairsCodeFencedJSON(t *testing.T) {
	body := `{"choices":[{"finish_reason":"stop","message":{"content":"` +
		"```json\\n{\\\"name\\\":\\\"hi\\\"}\\n```" + `"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`
	doer := &fakeDoer{responses: []*http.Response{jsonResp(200, body)}}
	c := New("key", "https://example.test", WithHTTPClient(doer))

	var out struct {
		Name string `json:"name"`
	}
	_, err := c.StructuredCall(context.Background(), Request{Model: "m", System: "s", User: []Part{{Text: "u"}}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Name)
}

func TestCall_RefusalNotRetried(t *testing.T) {
	body := `{"choices":[{"finish_reason":"refusal","message":{"content":"cannot help"}}]}`
	doer := &fakeDoer{responses: []*http.Response{jsonResp(200, body)}}
	c := New("key", "https://example.test", WithHTTPClient(doer))

	_, err := c.Call(context.Background(), Request{Model: "m", System: "s", User: []Part{{Text: "u"}}})
	require.Error(t, err)
	var refusal *RefusalError
	require.ErrorAs(t, err, &refusal)
	assert.Equal(t, 1, doer.calls)
}

func TestCall_TransientRetriesThenSucceeds(t *testing.T) {
	okBody := `{"choices":[{"finish_reason":"stop","message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`
	doer := &fakeDoer{responses: []*http.Response{
		jsonResp(500, "boom"),
		jsonResp(200, okBody),
	}}
	c := New("key", "https://example.test", WithHTTPClient(doer), WithMaxAttempts(3))

	resp, err := c.Call(context.Background(), Request{Model: "m", System: "s", User: []Part{{Text: "u"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, doer.calls)
}

func TestRepairJSON_StripsLeadingProse(t *testing.T) {
	in := `Sure thing! Here is the result: {"a": 1, "b": [1,2,3]} -- hope that helps`
	out := repairJSON(in)
	assert.Equal(t, `{"a": 1, "b": [1,2,3]}`, out)
}
