package domain

import "time"

// JobKind enumerates the background job types the orchestrator runs
// (spec §4.10).
type JobKind string

const (
	JobCreateProject       JobKind = "create_project"
	JobFinalizeCompetitors JobKind = "finalize_competitors"
	JobAnalyzeCompetitors  JobKind = "analyze_competitors"
	JobPrepareResources    JobKind = "prepare_resources"
	JobDiscoverChannels    JobKind = "discover_channels"
	JobGeneratePlot        JobKind = "generate_plot"
	JobGenerateScript      JobKind = "generate_script"
	JobGenerateThumbnails  JobKind = "generate_thumbnails"
)

// JobState is the lifecycle state of a Job.
type JobState string

const (
	JobStateRunning  JobState = "running"
	JobStateComplete JobState = "complete"
	JobStateError    JobState = "error"
)

// Job tracks a long-running background operation (spec §3, §4.10).
type Job struct {
	ID        string   `json:"id"`
	Kind      JobKind  `json:"kind"`
	UserID    string   `json:"userId"`
	ProjectID string   `json:"projectId,omitempty"`
	State     JobState `json:"state"`
	Progress  int      `json:"progress"` // 0-100
	Step      string   `json:"step"`
	ResultRef string   `json:"resultRef,omitempty"`
	Error     string   `json:"error,omitempty"`
	// ErrorLog records non-fatal per-item failures (e.g. Full Script
	// placeholder segments) surfaced alongside a successful terminal
	// state (spec §7).
	ErrorLog  []string  `json:"errorLog,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobRepository is the Store's contract for Job documents.
type JobRepository interface {
	Create(j *Job) error
	Get(id string) (*Job, error)
	Update(j *Job) error
	List(userID string, limit, offset int) ([]*Job, error)
}

// UserSecrets is a per-user mapping of service name to API key
// (spec §3). Stored under collection user_secrets keyed by (user_id,
// service).
type UserSecrets interface {
	// Get returns the user's key for service, or ("", false) if absent.
	Get(userID, service string) (string, bool)
	// Set stores or replaces the user's key for service.
	Set(userID, service, key string) error
	// Delete removes the user's key for service.
	Delete(userID, service string) error
	// RequireAll returns domain.ErrValidation("MissingSecret") listing the
	// first missing service, or nil if every service in services has a key.
	RequireAll(userID string, services []string) error
}
