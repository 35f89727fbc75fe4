// Package competitors implements Competitor Discovery & Matching (spec
// §4.4): fanning search queries out over a taxonomy's topics, enriching
// candidates with channel stats, and computing the derived growth
// metrics used to rank finalized competitors. The metric formulas are
// grounded verbatim on original_source/dashboard/web_analysis_service.go
// (calculate_upload_frequency / estimate_monthly_views /
// estimate_monthly_subscriber_growth / calculate_growth_score), ported
// from Python to Go rather than re-derived.
package competitors

import (
	"context"
	"log"
	"math"
	"time"

	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/llm"
	"renderowl-intel-api/internal/search"
)

const maxCandidatesPerSeries = 10

// SearchEngine is the narrow search surface this package depends on,
// satisfied by *search.Client.
type SearchEngine interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
	FetchChannel(ctx context.Context, id string) (*domain.Channel, error)
	ListChannelVideos(ctx context.Context, channelID string, limit int) ([]domain.Video, error)
}

// Discoverer runs discovery and add/match operations against a search
// engine and (for shared-series detection) an LLM client.
type Discoverer struct {
	search SearchEngine
	llm    *llm.Client
	model  string
}

// New creates a Discoverer.
func New(searchEngine SearchEngine, client *llm.Client, model string) *Discoverer {
	return &Discoverer{search: searchEngine, llm: client, model: model}
}

// Discover fans out search queries over every topic in taxonomy and
// returns candidates grouped by series name (spec §4.4 "discover").
func (d *Discoverer) Discover(ctx context.Context, seedChannelID string, taxonomy domain.TaxonomyTree) map[string][]domain.CandidateChannel {
	out := make(map[string][]domain.CandidateChannel)
	seen := make(map[string]map[string]bool) // series -> channel_id -> true

	for _, series := range taxonomy.Series {
		seen[series.Name] = map[string]bool{}
		for _, theme := range series.Themes {
			for _, topic := range theme.Topics {
				if len(out[series.Name]) >= maxCandidatesPerSeries {
					break
				}
				results, err := d.search.Search(ctx, topic.ExampleTitle, 50)
				if err != nil {
					log.Printf("competitors: discovery search %q failed: %v", topic.ExampleTitle, err)
					continue
				}
				for _, r := range results {
					if len(out[series.Name]) >= maxCandidatesPerSeries {
						break
					}
					if r.ChannelID == "" || r.ChannelID == seedChannelID {
						continue
					}
					if seen[series.Name][r.ChannelID] {
						continue
					}
					seen[series.Name][r.ChannelID] = true

					cand := domain.CandidateChannel{
						ChannelID: r.ChannelID,
						Title:     r.ChannelName,
						FoundVia:  topic.ExampleTitle,
					}
					if ch, err := d.search.FetchChannel(ctx, r.ChannelID); err == nil {
						cand.Stats = ch.Stats
					}
					out[series.Name] = append(out[series.Name], cand)
				}
			}
		}
	}
	return out
}

// AddCompetitor fetches a candidate's recent videos and computes its
// derived metrics, returning a CompetitorChannel ready to append to the
// project (spec §4.4 "add_competitor").
func (d *Discoverer) AddCompetitor(ctx context.Context, channelID string, matching []domain.MatchingSeries) (*domain.CompetitorChannel, error) {
	channel, err := d.search.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	videos, err := d.search.ListChannelVideos(ctx, channelID, 50)
	if err != nil {
		return nil, err
	}

	c := &domain.CompetitorChannel{
		ChannelID:      channelID,
		Title:          channel.Title,
		Stats:          channel.Stats,
		Videos:         videos,
		MatchingSeries: matching,
	}
	c.UploadFrequency = uploadFrequency(videos)
	c.MonthlyViews = monthlyViews(videos)
	c.MonthlySubGrowth = monthlySubGrowth(channel.Stats)
	c.GrowthScore = growthScore(c.MonthlyViews, c.MonthlySubGrowth, c.UploadFrequency)
	c.AvgVideoDuration = avgDuration(videos)
	c.EngagementRate = engagementRate(videos)
	return c, nil
}

// uploadFrequency = videos / max(1, months between oldest and newest
// publish). Ported from calculate_upload_frequency.
func uploadFrequency(videos []domain.Video) float64 {
	if len(videos) == 0 {
		return 0
	}
	oldest, newest := publishSpan(videos)
	days := math.Max(newest.Sub(oldest).Hours()/24, 1)
	months := days / 30.44
	return round2(float64(len(videos)) / months)
}

// monthlyViews = total views / months_active. Ported from
// estimate_monthly_views.
func monthlyViews(videos []domain.Video) float64 {
	if len(videos) == 0 {
		return 0
	}
	var totalViews int64
	for _, v := range videos {
		totalViews += v.Views
	}
	oldest, newest := publishSpan(videos)
	monthsActive := math.Max(newest.Sub(oldest).Hours()/24/30.44, 1)
	return math.Floor(float64(totalViews) / monthsActive)
}

// monthlySubGrowth = subscriber_count / (channel_age_days / 30.44); if
// age unknown, 1% of sub count. Ported from
// estimate_monthly_subscriber_growth.
func monthlySubGrowth(stats domain.ChannelStats) float64 {
	if stats.PublishedAt.IsZero() {
		return float64(stats.SubscriberCount) * 0.01
	}
	ageDays := time.Since(stats.PublishedAt).Hours() / 24
	months := ageDays / 30.44
	if months == 0 {
		return 0
	}
	return float64(stats.SubscriberCount) / months
}

// growthScore = monthly_views/1000 + monthly_sub_growth*10 +
// upload_frequency*5. Ported from calculate_growth_score.
func growthScore(monthlyViews, monthlySubGrowth, uploadFrequency float64) float64 {
	return round2(monthlyViews/1000 + monthlySubGrowth*10 + uploadFrequency*5)
}

func avgDuration(videos []domain.Video) float64 {
	if len(videos) == 0 {
		return 0
	}
	var total int
	for _, v := range videos {
		total += v.DurationSec
	}
	return float64(total) / float64(len(videos))
}

// engagementRate = (likes+comments) / views, averaged across videos with
// nonzero views.
func engagementRate(videos []domain.Video) float64 {
	var sum float64
	var count int
	for _, v := range videos {
		if v.Views == 0 {
			continue
		}
		sum += float64(v.Likes+v.Comments) / float64(v.Views)
		count++
	}
	if count == 0 {
		return 0
	}
	return round2(sum / float64(count))
}

func publishSpan(videos []domain.Video) (oldest, newest time.Time) {
	oldest, newest = videos[0].PublishedAt, videos[0].PublishedAt
	for _, v := range videos[1:] {
		if v.PublishedAt.Before(oldest) {
			oldest = v.PublishedAt
		}
		if v.PublishedAt.After(newest) {
			newest = v.PublishedAt
		}
	}
	return oldest, newest
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
