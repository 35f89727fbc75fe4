// Package llm provides a typed wrapper over a chat-completion model with
// prompt caching, structured-output parsing, retries, and token accounting
// (spec §4.1). It follows the HTTP-client shape of the teacher's
// internal/service/ai_script.go (OpenAI-compatible POST to
// /chat/completions, Bearer auth, JSON body) generalized into a single
// client instead of two hardcoded provider functions, with caching and
// refusal handling layered on top the way
// _examples/other_examples/9bcf6af6_digitallysavvy-go-ai's Anthropic
// language model shows (stop-reason inspection, cache_control blocks).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// StopReason mirrors the chat-completion API's terminal reason.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopRefusal   StopReason = "refusal"
)

// Usage reports token accounting for a single call.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// Part is one piece of a multi-part message; CacheEphemeral marks a static
// prefix as cacheable (spec §4.1 "Prompt caching").
type Part struct {
	Text           string
	CacheEphemeral bool
}

// Request is the input to a single chat-completion call.
type Request struct {
	Model        string
	System       string
	User         []Part
	MaxTokens    int
	Temperature  float64
}

// Response is the result of a free call.
type Response struct {
	Text       string
	StopReason StopReason
	Usage      Usage
}

// RefusalError is returned when the model declines to answer; callers
// never retry blindly (spec §4.1, §7 UpstreamRefusal).
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string { return "llm refusal: " + e.Message }

// ParseError is returned when structured output cannot be extracted after
// local repair and one retry (spec §4.1, §7).
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("llm parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Doer is the minimal HTTP surface the client needs; satisfied by
// *http.Client, allows tests to substitute a fake transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a chat-completion endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  Doer
	maxAttempts int
	cache       *PromptCache
}

// Option configures a Client.
type Option func(*Client)

func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

func WithPromptCache(cache *PromptCache) Option {
	return func(c *Client) { c.cache = cache }
}

// New creates a Client for the OpenAI-compatible chat-completions
// endpoint shape the teacher's ai_script.go already speaks, rooted at
// baseURL (e.g. https://api.anthropic.com/v1 or a proxy in front of it).
// baseURL is used as given; New applies no default.
func New(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxAttempts: 5,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequestBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponseBody struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		CachedTokens     int `json:"cached_tokens"`
	} `json:"usage"`
}

// Call performs a free call: it returns the raw response text.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	userText := joinParts(req.User)
	cacheKey := c.cache.Key(req.Model, req.System, staticPrefix(req.User))

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			return &Response{Text: cached, StopReason: StopEndTurn, Usage: Usage{CacheReadTokens: len(cached) / 4}}, nil
		}
	}

	body := chatRequestBody{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: userText},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp *chatResponseBody
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		r, transient, err := c.doOnce(ctx, body)
		if err == nil {
			resp = r
			lastErr = nil
			break
		}
		lastErr = err
		if !transient {
			return nil, err
		}
	}
	if resp == nil {
		return nil, domainTransient(lastErr)
	}
	if len(resp.Choices) == 0 {
		return nil, domainTransient(fmt.Errorf("empty choices"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" || choice.FinishReason == "refusal" {
		return nil, &RefusalError{Message: choice.Message.Content}
	}

	out := &Response{
		Text:       choice.Message.Content,
		StopReason: StopEndTurn,
		Usage: Usage{
			InputTokens:     resp.Usage.PromptTokens,
			OutputTokens:    resp.Usage.CompletionTokens,
			CacheReadTokens: resp.Usage.CachedTokens,
		},
	}
	if choice.FinishReason == "length" {
		out.StopReason = StopMaxTokens
	}

	if c.cache != nil && hasEphemeral(req.User) {
		c.cache.Set(cacheKey, out.Text)
	}
	return out, nil
}

func (c *Client) doOnce(ctx context.Context, body chatRequestBody) (*chatResponseBody, bool, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("llm upstream %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("llm upstream %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponseBody
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("decode llm response: %w", err)
	}
	return &out, false, nil
}

// StructuredCall performs a structured call: the caller describes the
// expected JSON in its own prompt, and the reply is parsed into out. If
// the reply does not parse, it strips common wrappers and parses again;
// if that also fails, it makes one more full call and repeats both
// steps, returning a ParseError if the second reply cannot be parsed
// either (spec §4.1, §7).
func (c *Client) StructuredCall(ctx context.Context, req Request, out interface{}) (*Response, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if perr := parseJSONInto(resp.Text, out); perr != nil {
		repaired := repairJSON(resp.Text)
		if perr2 := parseJSONInto(repaired, out); perr2 != nil {
			// one full retry
			resp2, err2 := c.Call(ctx, req)
			if err2 != nil {
				return nil, err2
			}
			if perr3 := parseJSONInto(resp2.Text, out); perr3 != nil {
				repaired2 := repairJSON(resp2.Text)
				if perr4 := parseJSONInto(repaired2, out); perr4 != nil {
					return nil, &ParseError{Raw: resp2.Text, Err: perr4}
				}
			}
			return resp2, nil
		}
	}
	return resp, nil
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// repairJSON strips common wrappers (code fences, leading prose) and
// extracts the first balanced {...} or [...] block.
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := -1
	var open, close byte
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			open = byte(r)
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

func parseJSONInto(s string, out interface{}) error {
	return json.Unmarshal([]byte(s), out)
}

func joinParts(parts []Part) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n\n")
}

func staticPrefix(parts []Part) string {
	for _, p := range parts {
		if p.CacheEphemeral {
			return p.Text
		}
	}
	return ""
}

func hasEphemeral(parts []Part) bool {
	for _, p := range parts {
		if p.CacheEphemeral {
			return true
		}
	}
	return false
}

func domainTransient(err error) error {
	return fmt.Errorf("llm upstream transient: %w", err)
}

// sleepBackoff implements exponential backoff with jitter, bounded by
// ctx cancellation (spec §4.1, §7).
func sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	select {
	case <-time.After(base + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
