// Package search provides a typed wrapper over the YouTube Data API with
// multi-key rotation, per-key rate limiting, result caching, and an
// HTML-scrape fallback when the whole key pool is quota-exceeded
// (spec §4.2). The underlying API usage follows the pattern shown in
// _examples/other_examples/61b837e8_vfarcic-youtube-automation's
// internal/publishing/youtube_analytics.go: a youtube.Service built with
// option.WithAPIKey / option.WithHTTPClient per request.
package search

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"renderowl-intel-api/internal/domain"
)

// Kind distinguishes search client failures the way spec §4.2/§7 requires.
type Kind string

const (
	KindNotFound       Kind = "NotFound"
	KindQuotaExceeded  Kind = "QuotaExceeded"
	KindTransient      Kind = "Transient"
	KindInvalidURL     Kind = "InvalidURL"
)

// Error is the typed error the Search Client returns.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("search: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Result is a reduced search hit, matching both the full YouTube API shape
// and the scrape-fallback schema (spec §4.2).
type Result struct {
	ChannelID   string
	ChannelName string
	VideoID     string
	Title       string
	ThumbnailURL string
}

// keySlot pairs an API key with its own rate limiter and quota state.
type keySlot struct {
	key         string
	limiter     *rate.Limiter
	quotaUntil  time.Time
}

// Client rotates across a pool of API keys and falls back to an
// HTML-scrape path for read operations once the whole pool is exhausted.
type Client struct {
	mu         sync.Mutex
	slots      []*keySlot
	httpClient *http.Client
	cache      *ttlCache
	scraper    Scraper
}

// Scraper is the narrow interface the HTML-scrape fallback satisfies;
// kept as an interface so it can be swapped/faked in tests without
// pulling an HTML parser into this package's required dependency set.
type Scraper interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// New creates a Client rotating across apiKeys.
func New(apiKeys []string, scraper Scraper) *Client {
	slots := make([]*keySlot, len(apiKeys))
	for i, k := range apiKeys {
		slots[i] = &keySlot{key: k, limiter: rate.NewLimiter(rate.Limit(5), 5)}
	}
	return &Client{
		slots:      slots,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      newTTLCache(),
		scraper:    scraper,
	}
}

// service builds a youtube.Service bound to the next available key slot,
// rotating past any slot currently marked quota-exceeded.
func (c *Client) service(ctx context.Context) (*youtube.Service, *keySlot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for i := 0; i < len(c.slots); i++ {
		s := c.slots[i]
		if s.quotaUntil.After(now) {
			continue
		}
		svc, err := youtube.NewService(ctx, option.WithAPIKey(s.key), option.WithHTTPClient(c.httpClient))
		if err != nil {
			continue
		}
		return svc, s, nil
	}
	return nil, nil, &Error{Kind: KindQuotaExceeded, Err: fmt.Errorf("all %d keys quota-exceeded", len(c.slots))}
}

func (s *keySlot) markQuotaExceeded() {
	s.quotaUntil = time.Now().Add(1 * time.Hour)
}

// ResolveChannel resolves a channel URL/handle/id to a channel id.
func (c *Client) ResolveChannel(ctx context.Context, url string) (string, error) {
	handle, err := extractHandleOrID(url)
	if err != nil {
		return "", &Error{Kind: KindInvalidURL, Err: err}
	}
	if cached, ok := c.cache.get("resolve:" + handle); ok {
		return cached.(string), nil
	}

	svc, slot, err := c.service(ctx)
	if err != nil {
		return "", err
	}
	if err := slot.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindTransient, Err: err}
	}

	call := svc.Channels.List([]string{"id"})
	if looksLikeChannelID(handle) {
		call = call.Id(handle)
	} else {
		call = call.ForHandle(handle)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", classifyYouTubeErr(slot, err)
	}
	if len(resp.Items) == 0 {
		return "", &Error{Kind: KindNotFound, Err: fmt.Errorf("no channel for %q", url)}
	}
	id := resp.Items[0].Id
	c.cache.set("resolve:"+handle, id, 24*time.Hour)
	return id, nil
}

// FetchChannel fetches channel statistics.
func (c *Client) FetchChannel(ctx context.Context, id string) (*domain.Channel, error) {
	if cached, ok := c.cache.get("channel:" + id); ok {
		ch := cached.(domain.Channel)
		return &ch, nil
	}
	svc, slot, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if err := slot.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}
	resp, err := svc.Channels.List([]string{"snippet", "statistics"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, classifyYouTubeErr(slot, err)
	}
	if len(resp.Items) == 0 {
		return nil, &Error{Kind: KindNotFound, Err: fmt.Errorf("channel %q not found", id)}
	}
	item := resp.Items[0]
	ch := &domain.Channel{
		ID:          item.Id,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Stats: domain.ChannelStats{
			SubscriberCount: int64(item.Statistics.SubscriberCount),
			ViewCount:       int64(item.Statistics.ViewCount),
			VideoCount:      int64(item.Statistics.VideoCount),
		},
	}
	if item.Snippet.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			ch.Stats.PublishedAt = t
		}
	}
	c.cache.set("channel:"+id, *ch, 6*time.Hour)
	return ch, nil
}

// ListChannelVideos lists up to limit recent videos for a channel.
func (c *Client) ListChannelVideos(ctx context.Context, channelID string, limit int) ([]domain.Video, error) {
	cacheKey := fmt.Sprintf("videos:%s:%d", channelID, limit)
	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.([]domain.Video), nil
	}
	svc, slot, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if err := slot.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}

	searchResp, err := svc.Search.List([]string{"id"}).
		ChannelId(channelID).Order("date").Type("video").MaxResults(int64(min(limit, 50))).
		Context(ctx).Do()
	if err != nil {
		return nil, classifyYouTubeErr(slot, err)
	}
	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	videosResp, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, classifyYouTubeErr(slot, err)
	}
	videos := make([]domain.Video, 0, len(videosResp.Items))
	for _, v := range videosResp.Items {
		videos = append(videos, videoFromAPI(v))
	}
	c.cache.set(cacheKey, videos, 2*time.Hour)
	return videos, nil
}

// Search runs a video search for query, returning up to limit results.
// On quota exhaustion across the whole pool it falls through to the
// HTML-scrape fallback, returning the reduced Result schema (spec §4.2).
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	svc, slot, err := c.service(ctx)
	if err != nil {
		var se *Error
		if asError(err, &se) && se.Kind == KindQuotaExceeded && c.scraper != nil {
			return c.scraper.Search(ctx, query, limit)
		}
		return nil, err
	}
	if err := slot.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}
	resp, err := svc.Search.List([]string{"snippet"}).Q(query).Type("video").MaxResults(int64(min(limit, 50))).Context(ctx).Do()
	if err != nil {
		cerr := classifyYouTubeErr(slot, err)
		var se *Error
		if asError(cerr, &se) && se.Kind == KindQuotaExceeded && c.scraper != nil {
			return c.scraper.Search(ctx, query, limit)
		}
		return nil, cerr
	}
	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Snippet == nil {
			continue
		}
		thumb := ""
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
			thumb = item.Snippet.Thumbnails.High.Url
		}
		results = append(results, Result{
			ChannelID:    item.Snippet.ChannelId,
			ChannelName:  item.Snippet.ChannelTitle,
			VideoID:      item.Id.VideoId,
			Title:        item.Snippet.Title,
			ThumbnailURL: thumb,
		})
	}
	return results, nil
}

// GetVideo fetches full video detail.
func (c *Client) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	svc, slot, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if err := slot.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Err: err}
	}
	resp, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, classifyYouTubeErr(slot, err)
	}
	if len(resp.Items) == 0 {
		return nil, &Error{Kind: KindNotFound, Err: fmt.Errorf("video %q not found", id)}
	}
	v := videoFromAPI(resp.Items[0])
	return &v, nil
}

// GetTranscript fetches a transcript, returning (nil, nil) when unavailable
// rather than an error (spec §4.2: "Transcript|None").
func (c *Client) GetTranscript(ctx context.Context, id string) (*string, error) {
	// Transcript retrieval is a third-party adapter contract per spec §1
	// ("transcript retrieval" is out of scope beyond its interface); this
	// client only defines the signature the orchestrator calls against.
	return nil, nil
}

func videoFromAPI(v *youtube.Video) domain.Video {
	out := domain.Video{
		ID:        v.Id,
		ChannelID: v.Snippet.ChannelId,
		Title:     v.Snippet.Title,
	}
	if v.Statistics != nil {
		out.Views = int64(v.Statistics.ViewCount)
		out.Likes = int64(v.Statistics.LikeCount)
		out.Comments = int64(v.Statistics.CommentCount)
	}
	if v.Snippet.Thumbnails != nil && v.Snippet.Thumbnails.High != nil {
		out.ThumbnailURL = v.Snippet.Thumbnails.High.Url
	}
	if v.Snippet.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			out.PublishedAt = t
		}
	}
	if v.ContentDetails != nil {
		out.DurationSec = parseISODuration(v.ContentDetails.Duration)
	}
	return out
}

func classifyYouTubeErr(slot *keySlot, err error) error {
	msg := err.Error()
	if containsAny(msg, "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded") {
		slot.markQuotaExceeded()
		return &Error{Kind: KindQuotaExceeded, Err: err}
	}
	if containsAny(msg, "404", "notFound") {
		return &Error{Kind: KindNotFound, Err: err}
	}
	return &Error{Kind: KindTransient, Err: err}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(sub) > 0 && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
