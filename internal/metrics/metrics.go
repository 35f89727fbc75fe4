// Package metrics implements the Metrics Engine (spec §4.5): simple
// per-project competitor averages, per-theme outlier scoring against a
// channel baseline, and a pure-function revenue estimator. The averaging
// and comparative-analysis shape is ported directly from
// original_source/dashboard/web_analysis_service.go's
// calculate_group_performance_metrics / generate_comparative_analysis
// (SPEC_FULL §12.4), kept as plain functions the way the teacher's
// internal/service packages favor small, directly-testable helpers over
// stateful objects for pure computation.
package metrics

import (
	"strings"
	"time"

	"renderowl-intel-api/internal/domain"
)

// GroupMetrics computes the simple per-project competitor averages
// (spec §4.5 group_metrics).
func GroupMetrics(competitors []domain.CompetitorChannel) domain.GroupMetrics {
	if len(competitors) == 0 {
		return domain.GroupMetrics{}
	}
	var views, subs, freq float64
	for _, c := range competitors {
		views += c.MonthlyViews
		subs += c.MonthlySubGrowth
		freq += c.UploadFrequency
	}
	n := float64(len(competitors))
	return domain.GroupMetrics{
		AvgMonthlyViews:    views / n,
		AvgMonthlySubs:     subs / n,
		AvgUploadFrequency: freq / n,
	}
}

// ChannelAvgViews is the project's channel-baseline average views per
// video across its whole taxonomy (spec §4.5 "channel_avg_views").
func ChannelAvgViews(tree domain.TaxonomyTree) float64 {
	var totalViews int64
	var totalVideos int
	for _, s := range tree.Series {
		totalViews += s.TotalViews
		totalVideos += s.VideoCount
	}
	if totalVideos == 0 {
		return 0
	}
	return float64(totalViews) / float64(totalVideos)
}

// Outliers computes the per-theme outlier score and tier for every theme
// in tree against channelAvgViews (spec §4.5, §8 "Outlier law").
func Outliers(tree domain.TaxonomyTree, channelAvgViews float64) []domain.ThemeOutlier {
	var out []domain.ThemeOutlier
	for _, s := range tree.Series {
		for _, t := range s.Themes {
			var score float64
			if channelAvgViews > 0 {
				score = t.AvgViews / channelAvgViews
			}
			out = append(out, domain.ThemeOutlier{
				SeriesName:   s.Name,
				ThemeName:    t.Name,
				AvgViews:     t.AvgViews,
				OutlierScore: score,
				Tier:         tier(score),
			})
		}
	}
	return out
}

// tier classifies an outlier score per spec §4.5/§8's fixed thresholds.
func tier(score float64) domain.OutlierTier {
	switch {
	case score >= 3.0:
		return domain.TierExtreme
	case score >= 2.0:
		return domain.TierHigh
	case score >= 1.5:
		return domain.TierModerate
	default:
		return domain.TierStandard
	}
}

// CanonicalKey derives the single storage key used anywhere a
// (series, theme) pair must be turned into a lookup key — e.g. a
// ScriptBreakdown/PlotOutline index. It is the only place this
// derivation happens (SPEC_FULL §13 "check-resources key derivation"
// open-question decision); API responses always carry the original
// display names, never this key.
func CanonicalKey(series, theme string) string {
	key := strings.ToLower(strings.TrimSpace(series) + "::" + strings.TrimSpace(theme))
	return whitespaceDotRe.ReplaceAllString(key, "_")
}

// GenerateComparativeAnalysis ranks the project's seed channel against
// its finalized competitors on the same three metrics Group Metrics
// already tracks (SPEC_FULL §12.4, grounded on
// generate_comparative_analysis in original_source).
func GenerateComparativeAnalysis(seedMonthlyViews, seedMonthlySubs, seedUploadFreq float64, competitors []domain.CompetitorChannel) domain.ComparativeAnalysis {
	ranking := make([]domain.ComparativeRanking, 0, len(competitors))
	for _, c := range competitors {
		ranking = append(ranking, domain.ComparativeRanking{
			ChannelID:    c.ChannelID,
			Title:        c.Title,
			MonthlyViews: c.MonthlyViews,
			MonthlySubs:  c.MonthlySubGrowth,
			UploadFreq:   c.UploadFrequency,
			BeatsSeed:    c.MonthlyViews > seedMonthlyViews,
		})
	}
	return domain.ComparativeAnalysis{
		SeedChannelMonthlyViews:    seedMonthlyViews,
		SeedChannelMonthlySubs:     seedMonthlySubs,
		SeedChannelUploadFrequency: seedUploadFreq,
		Ranking:                    ranking,
		GeneratedAt:                time.Now().UTC(),
	}
}
