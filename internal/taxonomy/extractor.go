// Package taxonomy implements the Taxonomy Extractor (spec §4.3):
// classifying a channel's videos into a Series > Theme > Topic hierarchy
// via batched LLM calls with cross-batch merge and a coverage-check
// fallback. The batching/merge shape follows the teacher's
// internal/service/ideation.go batching idiom (deleted; see DESIGN.md),
// generalized from single-shot ideation prompts to a running-hierarchy
// carry-forward across batches.
package taxonomy

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
)

const (
	maxVideos   = 9000
	batchSize   = 80
	maxRetries  = 5
)

// Extractor classifies a channel's videos into a TaxonomyTree.
type Extractor struct {
	llm   *llm.Client
	model string
}

// New creates an Extractor using client for batch calls.
func New(client *llm.Client, model string) *Extractor {
	return &Extractor{llm: client, model: model}
}

type batchResult struct {
	Series []seriesJSON `json:"series"`
}

type seriesJSON struct {
	Name   string      `json:"name"`
	Themes []themeJSON `json:"themes"`
}

type themeJSON struct {
	Name   string      `json:"name"`
	Topics []topicJSON `json:"topics"`
}

type topicJSON struct {
	Name         string `json:"name"`
	ExampleTitle string `json:"exampleTitle"`
}

// Classify builds a TaxonomyTree from videos (spec §4.3).
func (e *Extractor) Classify(ctx context.Context, videos []domain.Video, channelTitle string) (domain.TaxonomyTree, error) {
	if len(videos) == 0 {
		return domain.TaxonomyTree{}, domain.Validationf("no video titles")
	}
	if len(videos) > maxVideos {
		videos = videos[:maxVideos]
	}

	batches := chunkVideos(videos, batchSize)
	tree := domain.TaxonomyTree{}

	for i, batch := range batches {
		var result *batchResult
		var err error
		if i == 0 {
			result, err = e.classifyFirstBatch(ctx, batch, channelTitle)
		} else {
			result, err = e.classifyNextBatch(ctx, batch, tree, channelTitle)
		}
		if err != nil {
			log.Printf("taxonomy: batch %d failed after retries, skipping: %v", i, err)
			continue
		}
		mergeBatchIntoTree(&tree, result)
	}

	enrichTopics(&tree, videos)
	resortByAvgViews(&tree)
	applyCoverageCheck(&tree, videos)
	return tree, nil
}

// enrichTopics fills in the per-video metadata (views, id, thumbnail,
// publish date) the LLM response doesn't carry, looked up by the exact
// title match each topic's ExampleTitle guarantees (spec §4.3 step 2).
func enrichTopics(tree *domain.TaxonomyTree, videos []domain.Video) {
	idx := videoIndex(videos)
	for si := range tree.Series {
		for ti := range tree.Series[si].Themes {
			topics := tree.Series[si].Themes[ti].Topics
			for pi := range topics {
				v, ok := idx[topics[pi].ExampleTitle]
				if !ok {
					continue
				}
				topics[pi].Views = v.Views
				topics[pi].VideoID = v.ID
				topics[pi].ChannelID = v.ChannelID
				topics[pi].ThumbnailURL = v.ThumbnailURL
				topics[pi].PublishedAt = v.PublishedAt
			}
		}
	}
}

func (e *Extractor) classifyFirstBatch(ctx context.Context, batch []domain.Video, channelTitle string) (*batchResult, error) {
	system := firstBatchSystemPrompt(channelTitle)
	user := renderTitles(batch)
	return e.callWithRetry(ctx, system, user)
}

func (e *Extractor) classifyNextBatch(ctx context.Context, batch []domain.Video, running domain.TaxonomyTree, channelTitle string) (*batchResult, error) {
	system := nextBatchSystemPrompt(channelTitle)
	user := renderRunningHierarchy(running) + "\n\nNew titles to classify:\n" + renderTitles(batch)
	return e.callWithRetry(ctx, system, user)
}

func (e *Extractor) callWithRetry(ctx context.Context, system, user string) (*batchResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var out batchResult
		_, err := e.llm.StructuredCall(ctx, llm.Request{
			Model:     e.model,
			System:    system,
			User:      []llm.Part{{Text: user}},
			MaxTokens: 4096,
		}, &out)
		if err == nil {
			return &out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func firstBatchSystemPrompt(channelTitle string) string {
	return fmt.Sprintf(`You are classifying YouTube video titles from the channel %q into a
three-level hierarchy: Series (a recurring title structure), Theme (a
generalization within a series, distinct from sibling themes), Topic (one
specific video).

Rules:
- Every input title must appear as exactly one topic's exampleTitle. If a
  title is duplicated in the input, preserve the duplicate as a separate
  topic entry.
- Series names must describe a recurring structural pattern across
  multiple titles, not a one-off label.
- Each topic's "name" must be an exact contiguous phrase copied from its
  title, not a paraphrase.
- Respond with JSON only: {"series": [{"name": "...", "themes": [{"name":
  "...", "topics": [{"name": "...", "exampleTitle": "..."}]}]}]}`, channelTitle)
}

func nextBatchSystemPrompt(channelTitle string) string {
	return fmt.Sprintf(`You are continuing to classify YouTube video titles from the channel %q.
You will be given the full running hierarchy built so far, followed by a
new batch of titles.

Rules:
- Prefer merging new topics into an existing series/theme over creating a
  new one: check for an exact name match first, then a similar/close
  match, and only create a new series or theme when neither applies.
- Every new title must appear as exactly one topic's exampleTitle,
  duplicates preserved.
- Respond with JSON containing only the NEW entries to add, same shape as
  before: {"series": [{"name": "...", "themes": [{"name": "...", "topics":
  [{"name": "...", "exampleTitle": "..."}]}]}]}. Use the exact existing
  series/theme name when merging so the caller can fold it in.`, channelTitle)
}

func renderTitles(videos []domain.Video) string {
	lines := make([]string, len(videos))
	for i, v := range videos {
		lines[i] = fmt.Sprintf("- %s", v.Title)
	}
	return strings.Join(lines, "\n")
}

func renderRunningHierarchy(tree domain.TaxonomyTree) string {
	var b strings.Builder
	b.WriteString("Running hierarchy:\n")
	for _, s := range tree.Series {
		fmt.Fprintf(&b, "Series: %s\n", s.Name)
		for _, t := range s.Themes {
			fmt.Fprintf(&b, "  Theme: %s\n", t.Name)
			for _, topic := range t.Topics {
				fmt.Fprintf(&b, "    Topic: %s (%s)\n", topic.Name, topic.ExampleTitle)
			}
		}
	}
	return b.String()
}

func chunkVideos(videos []domain.Video, size int) [][]domain.Video {
	var out [][]domain.Video
	for i := 0; i < len(videos); i += size {
		end := i + size
		if end > len(videos) {
			end = len(videos)
		}
		out = append(out, videos[i:end])
	}
	return out
}

// videoIndex builds a title -> video lookup for views/thumbnail/id fields
// that the LLM's JSON response doesn't carry.
func videoIndex(videos []domain.Video) map[string]domain.Video {
	idx := make(map[string]domain.Video, len(videos))
	for _, v := range videos {
		idx[v.Title] = v
	}
	return idx
}

// mergeBatchIntoTree folds one batch's result into the running tree,
// keyed by normalized series/theme name; topics are appended without
// deduplication (spec §4.3 step 4).
func mergeBatchIntoTree(tree *domain.TaxonomyTree, batch *batchResult) {
	for _, sj := range batch.Series {
		series := findOrCreateSeries(tree, sj.Name)
		for _, tj := range sj.Themes {
			theme := findOrCreateTheme(series, tj.Name)
			for _, tpj := range tj.Topics {
				theme.Topics = append(theme.Topics, domain.Topic{
					Name:         tpj.Name,
					ExampleTitle: tpj.ExampleTitle,
				})
			}
		}
	}
}

func normalizeName(s string) string {
	return strings.TrimSpace(s)
}

func findOrCreateSeries(tree *domain.TaxonomyTree, name string) *domain.Series {
	key := normalizeName(name)
	for i := range tree.Series {
		if tree.Series[i].Name == key {
			return &tree.Series[i]
		}
	}
	tree.Series = append(tree.Series, domain.Series{Name: key, ChannelsWithSeries: map[string]bool{}})
	return &tree.Series[len(tree.Series)-1]
}

func findOrCreateTheme(series *domain.Series, name string) *domain.Theme {
	key := normalizeName(name)
	for i := range series.Themes {
		if series.Themes[i].Name == key {
			return &series.Themes[i]
		}
	}
	series.Themes = append(series.Themes, domain.Theme{Name: key})
	return &series.Themes[len(series.Themes)-1]
}

// applyCoverageCheck appends any title not present as an example_title
// anywhere in the tree to a "Miscellaneous" theme under the first series
// (spec §4.3 step 5). If the tree is empty (every batch failed), a
// fallback "General" series/"Miscellaneous" theme is created so the
// project still has a usable taxonomy (SPEC_FULL §12.6).
func applyCoverageCheck(tree *domain.TaxonomyTree, videos []domain.Video) {
	covered := make(map[string]int) // title -> count already present
	for _, s := range tree.Series {
		for _, t := range s.Themes {
			for _, tp := range t.Topics {
				covered[tp.ExampleTitle]++
			}
		}
	}

	seen := make(map[string]int) // title -> count consumed so far while scanning videos
	var missing []domain.Video
	for _, v := range videos {
		if seen[v.Title] < covered[v.Title] {
			seen[v.Title]++
			continue
		}
		missing = append(missing, v)
	}
	if len(missing) == 0 {
		return
	}

	if len(tree.Series) == 0 {
		tree.Series = append(tree.Series, domain.Series{Name: "General", ChannelsWithSeries: map[string]bool{}})
	}
	series := &tree.Series[0]

	var misc *domain.Theme
	for i := range series.Themes {
		if series.Themes[i].Name == "Miscellaneous" {
			misc = &series.Themes[i]
			break
		}
	}
	if misc == nil {
		series.Themes = append(series.Themes, domain.Theme{Name: "Miscellaneous"})
		misc = &series.Themes[len(series.Themes)-1]
	}

	idx := videoIndex(videos)
	for _, v := range missing {
		topicName := firstNWords(v.Title, 3)
		misc.Topics = append(misc.Topics, domain.Topic{
			Name:         topicName,
			ExampleTitle: v.Title,
			Views:        idx[v.Title].Views,
			VideoID:      idx[v.Title].ID,
			ChannelID:    idx[v.Title].ChannelID,
			ThumbnailURL: idx[v.Title].ThumbnailURL,
			PublishedAt:  idx[v.Title].PublishedAt,
		})
	}
}

func firstNWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// resortByAvgViews recomputes aggregate view stats and resorts series and
// themes by descending avg_views (spec §4.3 step 4, §8 invariant).
func resortByAvgViews(tree *domain.TaxonomyTree) {
	for si := range tree.Series {
		s := &tree.Series[si]
		var seriesViews int64
		var seriesCount int
		for ti := range s.Themes {
			t := &s.Themes[ti]
			var views int64
			for _, tp := range t.Topics {
				views += tp.Views
			}
			t.TotalViews = views
			t.VideoCount = len(t.Topics)
			if t.VideoCount > 0 {
				t.AvgViews = float64(views) / float64(t.VideoCount)
			}
			seriesViews += views
			seriesCount += t.VideoCount
		}
		s.TotalViews = seriesViews
		s.VideoCount = seriesCount
		if seriesCount > 0 {
			s.AvgViews = float64(seriesViews) / float64(seriesCount)
		}
		sort.SliceStable(s.Themes, func(i, j int) bool {
			return s.Themes[i].AvgViews > s.Themes[j].AvgViews
		})
	}
	sort.SliceStable(tree.Series, func(i, j int) bool {
		return tree.Series[i].AvgViews > tree.Series[j].AvgViews
	})
}
