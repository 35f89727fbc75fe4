// Package jobs implements the Job Orchestrator (spec §4.10): Jobs are
// created synchronously and return their id immediately; a worker runs
// cooperatively via asynq, threading a per-job cancellation context
// through every blocking call and checkpointing progress into the Job
// document so HTTP clients can poll it (spec §5, §7). Grounded on the
// teacher's internal/service/batch.go (asynq.Client/Inspector wiring,
// BatchProgress-style checkpointing) generalized from whole-video batch
// jobs to this pipeline's eight job kinds.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"renderowl-intel-api/internal/breakdown"
	"renderowl-intel-api/internal/competitors"
	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/outline"
	"renderowl-intel-api/internal/script"
	"renderowl-intel-api/internal/search"
	"renderowl-intel-api/internal/taxonomy"
	"renderowl-intel-api/internal/thumbnail"
)

// Orchestrator wires every pipeline component to the persistent Store
// and the asynq queue that executes Job work.
type Orchestrator struct {
	Projects domain.ProjectRepository
	Jobs     domain.JobRepository
	Secrets  domain.UserSecrets

	Search     *search.Client
	Extractor  *taxonomy.Extractor
	Discoverer *competitors.Discoverer
	Breakdown  *breakdown.Analyzer
	Outline    *outline.Planner
	Scripts    *script.Generator
	Thumbnails *thumbnail.Pipeline

	Queue *asynq.Client

	// MaxProjectsPerUser enforces the per-user project quota
	// (SPEC_FULL §12.3). 0 disables the check.
	MaxProjectsPerUser int

	cancels *cancelRegistry
}

// New creates an Orchestrator.
func New(
	projects domain.ProjectRepository,
	jobRepo domain.JobRepository,
	secrets domain.UserSecrets,
	searchClient *search.Client,
	extractor *taxonomy.Extractor,
	discoverer *competitors.Discoverer,
	analyzer *breakdown.Analyzer,
	planner *outline.Planner,
	scripts *script.Generator,
	thumbnails *thumbnail.Pipeline,
	queue *asynq.Client,
	maxProjectsPerUser int,
) *Orchestrator {
	return &Orchestrator{
		Projects:           projects,
		Jobs:               jobRepo,
		Secrets:            secrets,
		Search:             searchClient,
		Extractor:          extractor,
		Discoverer:         discoverer,
		Breakdown:          analyzer,
		Outline:            planner,
		Scripts:            scripts,
		Thumbnails:         thumbnails,
		Queue:              queue,
		MaxProjectsPerUser: maxProjectsPerUser,
		cancels:            newCancelRegistry(),
	}
}

// newJobID allocates a Job id up front so it can be embedded in the
// task payload the worker receives (the Job document itself is only
// created once the id is known).
func newJobID() string { return uuid.New().String() }

// createJob persists a new running Job for kind under jobID and
// enqueues payload under taskType, returning the Job synchronously.
// payload must already have its JobID field set to jobID.
func (o *Orchestrator) createJob(jobID string, kind domain.JobKind, userID, projectID, step string, taskType string, payload []byte) (*domain.Job, error) {
	job := &domain.Job{
		ID:        jobID,
		Kind:      kind,
		UserID:    userID,
		ProjectID: projectID,
		State:     domain.JobStateRunning,
		Step:      step,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := o.Jobs.Create(job); err != nil {
		return nil, err
	}
	task := asynq.NewTask(taskType, payload)
	_, err := o.Queue.Enqueue(task,
		asynq.Queue("intel"),
		asynq.MaxRetry(1),
		asynq.Timeout(55*time.Minute),
		asynq.Retention(48*time.Hour),
	)
	if err != nil {
		job.State = domain.JobStateError
		job.Error = fmt.Sprintf("failed to enqueue: %v", err)
		_ = o.Jobs.Update(job)
		return job, domain.NewError(domain.ErrInternal, "failed to enqueue job", err)
	}
	return job, nil
}

// checkOwnership returns the project if user may act on it, else
// domain.ErrNotFound (owner) so presence/absence isn't leaked to
// non-members.
func (o *Orchestrator) checkOwnership(user *domain.UserContext, projectID string) (*domain.Project, error) {
	p, err := o.Projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID == user.ID {
		return p, nil
	}
	for _, id := range p.AllowedUsers {
		if id == user.ID {
			return p, nil
		}
	}
	return nil, domain.NotFoundf("project %q not found", projectID)
}

// GetProject returns a Project the caller may see.
func (o *Orchestrator) GetProject(ctx context.Context, user *domain.UserContext, projectID string) (*domain.Project, error) {
	return o.checkOwnership(user, projectID)
}

// ListProjects returns every Project the caller owns.
func (o *Orchestrator) ListProjects(ctx context.Context, user *domain.UserContext) ([]*domain.Project, error) {
	return o.Projects.List(user.ID, 0, 0)
}

// CreateProject creates a Project in status "initial" and spawns the
// create_project Job that resolves the seed channel, classifies its
// taxonomy, and runs initial competitor discovery (spec §4.10, §6 "POST
// /projects"). Checks the API-key precondition and the per-user project
// quota before creating anything (SPEC_FULL §12.2, §12.3).
func (o *Orchestrator) CreateProject(ctx context.Context, user *domain.UserContext, name, seedChannelURL string) (*domain.Project, *domain.Job, error) {
	if name == "" {
		return nil, nil, domain.Validationf("name is required")
	}
	if seedChannelURL == "" {
		return nil, nil, domain.Validationf("seed_channel_url is required")
	}
	if err := o.Secrets.RequireAll(user.ID, []string{"llm"}); err != nil {
		return nil, nil, err
	}
	if o.MaxProjectsPerUser > 0 {
		existing, err := o.Projects.List(user.ID, 0, 0)
		if err != nil {
			return nil, nil, err
		}
		if len(existing) >= o.MaxProjectsPerUser {
			return nil, nil, domain.Validationf("project limit reached (%d)", o.MaxProjectsPerUser)
		}
	}

	project := &domain.Project{
		ID:                   uuid.New().String(),
		Name:                 name,
		OwnerID:              user.ID,
		AllowedUsers:         []string{user.ID},
		PotentialCompetitors: map[string][]domain.CandidateChannel{},
		Status:               domain.ProjectStatusInitial,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	if err := o.Projects.Create(project); err != nil {
		return nil, nil, err
	}

	jobID := newJobID()
	payload := mustMarshal(createProjectPayload{JobID: jobID, ProjectID: project.ID, SeedChannelURL: seedChannelURL})
	job, err := o.createJob(jobID, domain.JobCreateProject, user.ID, project.ID, "resolving seed channel", TypeCreateProject, payload)
	if err != nil {
		return project, job, err
	}
	return project, job, nil
}

// DiscoverChannels spawns a discover_channels Job for an existing
// Project (spec §4.4 "discover").
func (o *Orchestrator) DiscoverChannels(ctx context.Context, user *domain.UserContext, projectID string) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	jobID := newJobID()
	payload := mustMarshal(discoverChannelsPayload{JobID: jobID, ProjectID: projectID})
	return o.createJob(jobID, domain.JobDiscoverChannels, user.ID, projectID, "discovering competitor channels", TypeDiscoverChannels, payload)
}

// Finalize spawns a finalize_competitors Job for the user's selected
// candidate channels (spec §6 "POST /projects/{id}/finalize").
func (o *Orchestrator) Finalize(ctx context.Context, user *domain.UserContext, projectID string, selectedChannelIDs []string) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	if len(selectedChannelIDs) == 0 {
		return nil, domain.Validationf("selected_channel_ids is required")
	}
	jobID := newJobID()
	payload := mustMarshal(finalizeCompetitorsPayload{JobID: jobID, ProjectID: projectID, SelectedChannelIDs: selectedChannelIDs})
	return o.createJob(jobID, domain.JobFinalizeCompetitors, user.ID, projectID, "finalizing competitors", TypeFinalizeCompetitors, payload)
}

// AnalyzeCompetitors spawns an analyze_competitors Job recomputing group
// metrics and the comparative analysis (spec §6 "POST
// /projects/{id}/analyze").
func (o *Orchestrator) AnalyzeCompetitors(ctx context.Context, user *domain.UserContext, projectID string) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	jobID := newJobID()
	payload := mustMarshal(analyzeCompetitorsPayload{JobID: jobID, ProjectID: projectID})
	return o.createJob(jobID, domain.JobAnalyzeCompetitors, user.ID, projectID, "analyzing competitors", TypeAnalyzeCompetitors, payload)
}

// PrepareResources spawns a prepare_resources Job: fetching transcripts
// for the selected (series, theme) videos and running the Script
// Breakdown analysis (spec §4.6, §9 control flow "on user action (theme
// selected)").
func (o *Orchestrator) PrepareResources(ctx context.Context, user *domain.UserContext, projectID string, req PrepareResourcesRequest) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	if req.SeriesName == "" || req.ThemeName == "" {
		return nil, domain.Validationf("series and theme are required")
	}
	jobID := newJobID()
	payload := mustMarshal(prepareResourcesPayload{JobID: jobID, ProjectID: projectID, Req: req})
	return o.createJob(jobID, domain.JobPrepareResources, user.ID, projectID, "preparing script resources", TypePrepareResources, payload)
}

// GeneratePlot spawns a generate_plot Job (spec §4.7).
func (o *Orchestrator) GeneratePlot(ctx context.Context, user *domain.UserContext, projectID string, req PlotRequest) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	if req.Title == "" || req.VideoLengthMin <= 0 {
		return nil, domain.Validationf("title and video_length_min are required")
	}
	jobID := newJobID()
	payload := mustMarshal(generatePlotPayload{JobID: jobID, ProjectID: projectID, Req: req})
	return o.createJob(jobID, domain.JobGeneratePlot, user.ID, projectID, "generating plot outline", TypeGeneratePlot, payload)
}

// GenerateScript spawns a generate_script Job (spec §6 "POST
// /projects/{id}/scripts").
func (o *Orchestrator) GenerateScript(ctx context.Context, user *domain.UserContext, projectID string, req ScriptRequest) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, domain.Validationf("title is required")
	}
	jobID := newJobID()
	payload := mustMarshal(generateScriptPayload{JobID: jobID, ProjectID: projectID, Req: req})
	return o.createJob(jobID, domain.JobGenerateScript, user.ID, projectID, "generating full script", TypeGenerateScript, payload)
}

// GenerateThumbnails spawns a generate_thumbnails Job (spec §4.9).
func (o *Orchestrator) GenerateThumbnails(ctx context.Context, user *domain.UserContext, projectID string, req ThumbnailRequest) (*domain.Job, error) {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return nil, err
	}
	if len(req.ReferenceURLs) == 0 {
		return nil, domain.Validationf("reference_urls is required")
	}
	jobID := newJobID()
	payload := mustMarshal(generateThumbnailsPayload{JobID: jobID, ProjectID: projectID, Req: req})
	return o.createJob(jobID, domain.JobGenerateThumbnails, user.ID, projectID, "analyzing thumbnail references", TypeGenerateThumbnails, payload)
}

// Cancel transitions a running Job to error with reason "cancelled"
// (spec §5 "Cancelling a Job"), aborting its in-flight external calls
// if the worker is still observing ctx.
func (o *Orchestrator) Cancel(ctx context.Context, user *domain.UserContext, jobID string) error {
	job, err := o.Jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.UserID != user.ID {
		return domain.NotFoundf("job %q not found", jobID)
	}
	if job.State != domain.JobStateRunning {
		return domain.Validationf("job %q is not running", jobID)
	}
	o.cancels.cancel(jobID)
	job.State = domain.JobStateError
	job.Error = "cancelled"
	job.UpdatedAt = time.Now().UTC()
	return o.Jobs.Update(job)
}

// DeleteProject deletes a Project and all of its owned sub-documents
// (spec §3 Ownership). Deletion is allowed even while a Job references
// the project; the running worker discovers this at its next
// checkpoint and transitions its Job to error (spec §7).
func (o *Orchestrator) DeleteProject(ctx context.Context, user *domain.UserContext, projectID string) error {
	if _, err := o.checkOwnership(user, projectID); err != nil {
		return err
	}
	return o.Projects.Delete(projectID)
}
