package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ttlCache is a small in-process cache for search results, distinct from
// the Redis-backed llm.PromptCache: these entries are short-lived and
// scoped to a single process, matching spec §4.2's "idempotent/cacheable
// with a TTL per operation type" without requiring a shared store.
type ttlCache struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
}

type ttlEntry struct {
	value   interface{}
	expires time.Time
}

func newTTLCache() *ttlCache {
	return &ttlCache{entries: make(map[string]ttlEntry)}
}

func (c *ttlCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *ttlCache) set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry{value: value, expires: time.Now().Add(ttl)}
}

var (
	channelIDRe = regexp.MustCompile(`^UC[\w-]{22}$`)
	urlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/channel/([\w-]+)`),
		regexp.MustCompile(`youtube\.com/@([\w.-]+)`),
		regexp.MustCompile(`youtube\.com/c/([\w.-]+)`),
		regexp.MustCompile(`youtube\.com/user/([\w.-]+)`),
	}
	isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
)

// extractHandleOrID pulls a channel id or handle out of a full URL, a bare
// @handle, or a raw channel id, rejecting anything else as InvalidURL.
func extractHandleOrID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty channel reference")
	}
	if looksLikeChannelID(s) {
		return s, nil
	}
	if strings.HasPrefix(s, "@") {
		return strings.TrimPrefix(s, "@"), nil
	}
	for _, re := range urlPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimPrefix(m[1], "@"), nil
		}
	}
	if !strings.Contains(s, " ") && !strings.Contains(s, "://") {
		return s, nil
	}
	return "", fmt.Errorf("unrecognized channel reference %q", input)
}

func looksLikeChannelID(s string) bool {
	return channelIDRe.MatchString(s)
}

// parseISODuration parses an ISO-8601 duration (e.g. "PT1H2M10S") into
// whole seconds, returning 0 for anything unparseable.
func parseISODuration(s string) int {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return h*3600 + min*60 + sec
}
