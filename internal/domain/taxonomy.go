package domain

import "time"

// TaxonomyTree is an ordered sequence of Series (spec §3).
type TaxonomyTree struct {
	Series []Series `json:"series"`
}

// Series is a cluster of videos sharing a recurring title structure.
type Series struct {
	Name                string          `json:"name"`
	Themes              []Theme         `json:"themes"`
	TotalViews          int64           `json:"totalViews"`
	VideoCount          int             `json:"videoCount"`
	AvgViews            float64         `json:"avgViews"`
	ChannelsWithSeries  map[string]bool `json:"channelsWithSeries"`
}

// Theme is a subcategory within a Series grouping topically similar videos.
type Theme struct {
	Name       string  `json:"name"`
	Topics     []Topic `json:"topics"`
	TotalViews int64   `json:"totalViews"`
	VideoCount int     `json:"videoCount"`
	AvgViews   float64 `json:"avgViews"`
}

// Topic is one video standing in a theme; its canonical identifier is the
// exact example title.
type Topic struct {
	Name         string    `json:"name"`
	ExampleTitle string    `json:"exampleTitle"`
	Views        int64     `json:"views"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
	VideoID      string    `json:"videoId"`
	ChannelID    string    `json:"channelId"`
}

// OutlierTier classifies how far a theme's performance exceeds the
// channel baseline (spec §4.5, §8).
type OutlierTier string

const (
	TierExtreme  OutlierTier = "extreme"
	TierHigh     OutlierTier = "high"
	TierModerate OutlierTier = "moderate"
	TierStandard OutlierTier = "standard"
)

// ThemeOutlier is one row of the outlier report.
type ThemeOutlier struct {
	SeriesName   string      `json:"seriesName"`
	ThemeName    string      `json:"themeName"`
	AvgViews     float64     `json:"avgViews"`
	OutlierScore float64     `json:"outlierScore"`
	Tier         OutlierTier `json:"tier"`
}
