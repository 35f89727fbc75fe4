package domain

// ScriptBreakdown is a transcript-derived template capturing both
// structure and writing-voice traits of an existing video series (spec §3,
// §4.6). At most one exists per (series, theme) on a Project.
type ScriptBreakdown struct {
	ProjectID     string `json:"projectId"`
	SeriesName    string `json:"seriesName"`
	ThemeName     string `json:"themeName"`
	IsClipReactive bool  `json:"isClipReactive"`

	Structure            string   `json:"structure"`
	SegmentTemplates      []string `json:"segmentTemplates"`
	TransitionTechniques  []string `json:"transitionTechniques"`
	RecurringElements     []string `json:"recurringElements"`
	WritingStyleAnalysis  string   `json:"writingStyleAnalysis"`

	// ScriptBreakdownText is the full rendered breakdown text persisted
	// alongside the structured fields, wrapped per spec §4.6 step 4.
	ScriptBreakdownText string `json:"scriptBreakdownText"`
}

// PlotOutline is a duration-budgeted, timestamped list of renamed
// segments for a single video (spec §3, §4.7).
type PlotOutline struct {
	Title            string    `json:"title"`
	TotalDurationSec int       `json:"totalDurationSec"`
	Segments         []Segment `json:"segments"`
}

// Segment is one entry of a PlotOutline.
type Segment struct {
	Name        string   `json:"name"`
	StartSec    int      `json:"startSec"`
	EndSec      int      `json:"endSec"`
	DurationSec int      `json:"durationSec"`
	KeyPoints   []string `json:"keyPoints"`
}

// MaxSegmentDurationSec is the hard per-segment cap (spec §3, §8).
const MaxSegmentDurationSec = 600

// MaxIntroDurationSec is the cap on the first (introduction) segment.
const MaxIntroDurationSec = 20

// RenderedSegment is one rendered segment of a FullScript.
type RenderedSegment struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

// FullScript is an ordered sequence of rendered segments (spec §3, §4.8).
type FullScript struct {
	ProjectID string            `json:"projectId"`
	Title     string            `json:"title"`
	Segments  []RenderedSegment `json:"segments"`
	Text      string            `json:"text"`
	Cost      CostReport        `json:"cost"`
}

// SegmentCost is the per-segment token/cost breakdown.
type SegmentCost struct {
	SegmentName      string  `json:"segmentName"`
	InputTokens      int     `json:"inputTokens"`
	OutputTokens     int     `json:"outputTokens"`
	CacheReadTokens  int     `json:"cacheReadTokens"`
	CostUSD          float64 `json:"costUsd"`
}

// CostReport accumulates token usage and cost across an entire generation
// run (spec §4.8 step 6, §8 token-accounting invariant).
type CostReport struct {
	TotalInputTokens     int           `json:"totalInputTokens"`
	TotalOutputTokens    int           `json:"totalOutputTokens"`
	TotalCacheReadTokens int           `json:"totalCacheReadTokens"`
	TotalCostUSD         float64       `json:"totalCostUsd"`
	Segments             []SegmentCost `json:"segments"`
}

// Add folds a segment's cost into the report total.
func (c *CostReport) Add(sc SegmentCost) {
	c.TotalInputTokens += sc.InputTokens
	c.TotalOutputTokens += sc.OutputTokens
	c.TotalCacheReadTokens += sc.CacheReadTokens
	c.TotalCostUSD += sc.CostUSD
	c.Segments = append(c.Segments, sc)
}

// ThumbnailAssets is the result of the thumbnail pipeline for a project
// (spec §3, §4.9).
type ThumbnailAssets struct {
	ProjectID          string   `json:"projectId"`
	GuidelinesJSON     string   `json:"guidelinesJson"`
	TrainedModelVersion string  `json:"trainedModelVersion,omitempty"`
	TriggerWord        string   `json:"triggerWord,omitempty"`
	Concepts           []string `json:"concepts"`
	RenderedURLs       []string `json:"renderedUrls"`
}
