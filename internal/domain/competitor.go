package domain

// MatchingSeries records which of a candidate channel's recent titles
// match a given series' example titles (spec §3, §4.4).
type MatchingSeries struct {
	SeriesName     string   `json:"seriesName"`
	MatchingTitles []string `json:"matchingTitles"`
}

// CompetitorChannel is a finalized competitor with derived metrics.
type CompetitorChannel struct {
	ChannelID     string           `json:"channelId"`
	Title         string           `json:"title"`
	Stats         ChannelStats     `json:"stats"`
	Videos        []Video          `json:"videos"`
	MatchingSeries []MatchingSeries `json:"matchingSeries"`

	UploadFrequency   float64 `json:"uploadFrequency"`
	MonthlyViews      float64 `json:"monthlyViews"`
	MonthlySubGrowth  float64 `json:"monthlySubGrowth"`
	GrowthScore       float64 `json:"growthScore"`
	AvgVideoDuration  float64 `json:"avgVideoDuration"`
	EngagementRate    float64 `json:"engagementRate"`
}

// MinSharedSeriesMatches is the minimum number of matching titles for a
// series to be considered "shared" with a candidate channel (spec §4.4, §8).
const MinSharedSeriesMatches = 3
