package domain

import "time"

// UserContext identifies the authenticated caller. Carried from the auth
// middleware into every service call that needs to scope data to a user.
type UserContext struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProjectStatus is the lifecycle stage of a competitor group.
type ProjectStatus string

const (
	ProjectStatusInitial    ProjectStatus = "initial"
	ProjectStatusDiscovered ProjectStatus = "discovered"
	ProjectStatusFinalized  ProjectStatus = "finalized"
)

// ChannelStats is the subset of platform channel statistics the pipeline
// cares about; populated by the Search Client.
type ChannelStats struct {
	SubscriberCount int64     `json:"subscriberCount"`
	ViewCount       int64     `json:"viewCount"`
	VideoCount      int64     `json:"videoCount"`
	PublishedAt     time.Time `json:"publishedAt"`
}

// Channel is a minimal channel summary (seed channel or discovered one).
type Channel struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Stats       ChannelStats `json:"stats"`
	Thumbnails  []string     `json:"thumbnails,omitempty"`
}

// Video is a summary of a single video as returned by the Search Client.
type Video struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channelId"`
	Title        string    `json:"title"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
	DurationSec  int       `json:"durationSec"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// Project is a "competitor group" — the top-level aggregate owned
// exclusively by the user(s) who can see it.
type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	OwnerID      string   `json:"ownerId"`
	AllowedUsers []string `json:"allowedUsers"`

	SeedChannel Channel `json:"seedChannel"`
	SeedVideos  []Video `json:"seedVideos"`

	Taxonomy TaxonomyTree `json:"taxonomy"`

	// PotentialCompetitors maps series name -> ordered candidate list.
	PotentialCompetitors map[string][]CandidateChannel `json:"potentialCompetitors"`
	Competitors          []CompetitorChannel            `json:"competitors"`

	ScriptBreakdowns []ScriptBreakdown `json:"scriptBreakdowns,omitempty"`
	PlotOutlines     []PlotOutline     `json:"plotOutlines,omitempty"`
	FullScripts      []FullScript      `json:"fullScripts,omitempty"`
	ThumbnailAssets  []ThumbnailAssets `json:"thumbnailAssets,omitempty"`

	PerformanceMetrics   *GroupMetrics         `json:"performanceMetrics,omitempty"`
	ComparativeAnalysis  *ComparativeAnalysis  `json:"comparativeAnalysis,omitempty"`

	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// CandidateChannel is a not-yet-added competitor surfaced by discovery.
type CandidateChannel struct {
	ChannelID string       `json:"channelId"`
	Title     string       `json:"title"`
	Stats     ChannelStats `json:"stats"`
	FoundVia  string       `json:"foundVia"` // the query/topic that surfaced it
}

// GroupMetrics are the simple per-project competitor averages (§4.5).
type GroupMetrics struct {
	AvgMonthlyViews     float64 `json:"avgMonthlyViews"`
	AvgMonthlySubs      float64 `json:"avgMonthlySubs"`
	AvgUploadFrequency  float64 `json:"avgUploadFrequency"`
}

// ComparativeAnalysis ranks the project's own channel against its
// finalized competitors on the same three metrics (SPEC_FULL §12.4).
type ComparativeAnalysis struct {
	SeedChannelMonthlyViews    float64              `json:"seedChannelMonthlyViews"`
	SeedChannelMonthlySubs     float64              `json:"seedChannelMonthlySubs"`
	SeedChannelUploadFrequency float64              `json:"seedChannelUploadFrequency"`
	Ranking                    []ComparativeRanking `json:"ranking"`
	GeneratedAt                time.Time            `json:"generatedAt"`
}

// ComparativeRanking is one row of the comparative analysis table.
type ComparativeRanking struct {
	ChannelID      string  `json:"channelId"`
	Title          string  `json:"title"`
	MonthlyViews   float64 `json:"monthlyViews"`
	MonthlySubs    float64 `json:"monthlySubs"`
	UploadFreq     float64 `json:"uploadFrequency"`
	BeatsSeed      bool    `json:"beatsSeed"`
}

// ProjectRepository is the Store's contract for Project documents.
type ProjectRepository interface {
	Create(p *Project) error
	Get(id string) (*Project, error)
	Update(p *Project) error
	Delete(id string) error
	List(ownerID string, limit, offset int) ([]*Project, error)
	// WithLock runs fn while holding the project's per-project write lock
	// (spec §5: "All writes to the Project document are serialized via a
	// per-project lock").
	WithLock(id string, fn func() error) error
}
