package competitors

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
	"renderowl-intel-api/internal/search"
)

// failingDoer always errors, forcing CheckShared's LLM path to fail so
// its substring fallback runs.
type failingDoer struct{}

func (failingDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

type fakeSearchEngine struct {
	results       map[string][]search.Result
	channels      map[string]*domain.Channel
	channelVideos map[string][]domain.Video
}

func (f *fakeSearchEngine) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return f.results[query], nil
}

func (f *fakeSearchEngine) FetchChannel(ctx context.Context, id string) (*domain.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, domain.NotFoundf("channel %q not found", id)
	}
	return ch, nil
}

func (f *fakeSearchEngine) ListChannelVideos(ctx context.Context, channelID string, limit int) ([]domain.Video, error) {
	return f.channelVideos[channelID], nil
}

func TestDiscover_GroupsBySeriesAndDedupsSeedChannel(t *testing.T) {
	taxonomy := domain.TaxonomyTree{Series: []domain.Series{
		{Name: "Mysteries", Themes: []domain.Theme{
			{Name: "Unsolved", Topics: []domain.Topic{
				{Name: "disappearance", ExampleTitle: "The Vanishing"},
			}},
		}},
	}}

	engine := &fakeSearchEngine{
		results: map[string][]search.Result{
			"The Vanishing": {
				{ChannelID: "seed", ChannelName: "Seed Channel"},
				{ChannelID: "c1", ChannelName: "Competitor One"},
				{ChannelID: "c1", ChannelName: "Competitor One"},
				{ChannelID: "c2", ChannelName: "Competitor Two"},
			},
		},
		channels: map[string]*domain.Channel{
			"c1": {ID: "c1", Title: "Competitor One", Stats: domain.ChannelStats{SubscriberCount: 1000}},
		},
	}

	d := New(engine, nil, "")
	out := d.Discover(context.Background(), "seed", taxonomy)

	candidates := out["Mysteries"]
	require.Len(t, candidates, 2)
	assert.Equal(t, "c1", candidates[0].ChannelID)
	assert.Equal(t, int64(1000), candidates[0].Stats.SubscriberCount)
	assert.Equal(t, "c2", candidates[1].ChannelID)
}

func TestAddCompetitor_ComputesDerivedMetrics(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	videos := []domain.Video{
		{ID: "v1", Views: 1000, Likes: 50, Comments: 10, DurationSec: 600, PublishedAt: now.AddDate(0, -2, 0)},
		{ID: "v2", Views: 3000, Likes: 150, Comments: 30, DurationSec: 900, PublishedAt: now},
	}
	engine := &fakeSearchEngine{
		channels: map[string]*domain.Channel{
			"c1": {ID: "c1", Title: "Competitor One", Stats: domain.ChannelStats{SubscriberCount: 10000, PublishedAt: now.AddDate(-1, 0, 0)}},
		},
		channelVideos: map[string][]domain.Video{
			"c1": videos,
		},
	}

	d := New(engine, nil, "")
	c, err := d.AddCompetitor(context.Background(), "c1", []domain.MatchingSeries{{SeriesName: "Mysteries", MatchingTitles: []string{"v1"}}})
	require.NoError(t, err)

	assert.Equal(t, "c1", c.ChannelID)
	assert.Equal(t, "Competitor One", c.Title)
	assert.Len(t, c.Videos, 2)
	assert.Greater(t, c.UploadFrequency, 0.0)
	assert.Greater(t, c.MonthlyViews, 0.0)
	assert.Greater(t, c.MonthlySubGrowth, 0.0)
	assert.Greater(t, c.GrowthScore, 0.0)
	assert.Equal(t, 750.0, c.AvgVideoDuration)
	assert.Greater(t, c.EngagementRate, 0.0)
}

func TestCheckShared_FallsBackToSubstringMatchOnLLMFailure(t *testing.T) {
	client := llm.New("key", "https://example.test", llm.WithHTTPClient(failingDoer{}), llm.WithMaxAttempts(1))
	d := New(&fakeSearchEngine{}, client, "m")

	examples := []string{"The Vanishing of Flight 19", "The Bermuda Loop", "Ghosts of the Depths"}
	candidates := []string{
		"The Vanishing of Flight 19 Explained",
		"The Bermuda Loop Revisited",
		"Ghosts of the Depths Part 2",
		"Unrelated Video",
	}

	match, ok := d.CheckShared(context.Background(), "Mysteries", examples, candidates)
	require.True(t, ok)
	assert.Equal(t, "Mysteries", match.SeriesName)
	assert.ElementsMatch(t, candidates[:3], match.MatchingTitles)
}

func TestCheckShared_RejectsBelowMinimumMatches(t *testing.T) {
	client := llm.New("key", "https://example.test", llm.WithHTTPClient(failingDoer{}), llm.WithMaxAttempts(1))
	d := New(&fakeSearchEngine{}, client, "m")

	_, ok := d.CheckShared(context.Background(), "Mysteries",
		[]string{"The Vanishing of Flight 19"},
		[]string{"Completely Different Title"},
	)
	assert.False(t, ok)
}
