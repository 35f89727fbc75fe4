package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hibiken/asynq"

	"renderowl-intel-api/internal/breakdown"
	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/metrics"
	"renderowl-intel-api/internal/script"
)

// seedVideoLimit bounds how many of the seed/candidate channel's recent
// videos feed the Taxonomy Extractor (spec §4.1 "channel's video
// titles").
const seedVideoLimit = 500

// Mux builds the asynq.ServeMux wiring every job kind to its handler
// (grounded on the teacher's internal/service/batch.go worker
// registration pattern).
func (o *Orchestrator) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCreateProject, o.handleCreateProject)
	mux.HandleFunc(TypeDiscoverChannels, o.handleDiscoverChannels)
	mux.HandleFunc(TypeFinalizeCompetitors, o.handleFinalizeCompetitors)
	mux.HandleFunc(TypeAnalyzeCompetitors, o.handleAnalyzeCompetitors)
	mux.HandleFunc(TypePrepareResources, o.handlePrepareResources)
	mux.HandleFunc(TypeGeneratePlot, o.handleGeneratePlot)
	mux.HandleFunc(TypeGenerateScript, o.handleGenerateScript)
	mux.HandleFunc(TypeGenerateThumbnails, o.handleGenerateThumbnails)
	return mux
}

// step loads jobID, applies progress/message, and persists it. Worker
// handlers call this between pipeline stages so polling clients observe
// incremental progress (spec §5 "Polling a Job").
func (o *Orchestrator) step(jobID string, progress int, message string) {
	job, err := o.Jobs.Get(jobID)
	if err != nil {
		log.Printf("jobs: step: load %s: %v", jobID, err)
		return
	}
	job.Progress = progress
	job.Step = message
	job.UpdatedAt = time.Now().UTC()
	if err := o.Jobs.Update(job); err != nil {
		log.Printf("jobs: step: update %s: %v", jobID, err)
	}
}

// finish transitions jobID to complete or error depending on runErr.
func (o *Orchestrator) finish(jobID, resultRef string, runErr error) error {
	job, err := o.Jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.State != domain.JobStateRunning {
		// Already cancelled: keep the cancellation as the job's outcome.
		return nil
	}
	job.UpdatedAt = time.Now().UTC()
	if runErr != nil {
		job.State = domain.JobStateError
		job.Error = runErr.Error()
		_ = o.Jobs.Update(job)
		// asynq treats a returned error as retryable up to MaxRetry; the
		// Job document above is already the source of truth for clients,
		// so swallow it here rather than let asynq retry a pipeline step
		// that has already reported its own failure.
		return nil
	}
	job.State = domain.JobStateComplete
	job.Progress = 100
	job.ResultRef = resultRef
	return o.Jobs.Update(job)
}

func decodePayload(task *asynq.Task, v interface{}) error {
	return json.Unmarshal(task.Payload(), v)
}

// handleCreateProject resolves the seed channel, classifies its
// taxonomy, and runs initial competitor discovery (spec §4.1-§4.4).
func (o *Orchestrator) handleCreateProject(ctx context.Context, task *asynq.Task) error {
	var p createProjectPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	o.step(p.JobID, 5, "resolving seed channel")
	channelID, err := o.Search.ResolveChannel(jobCtx, p.SeedChannelURL)
	if err != nil {
		runErr = err
		return nil
	}
	channel, err := o.Search.FetchChannel(jobCtx, channelID)
	if err != nil {
		runErr = err
		return nil
	}

	o.step(p.JobID, 20, "fetching recent videos")
	videos, err := o.Search.ListChannelVideos(jobCtx, channelID, seedVideoLimit)
	if err != nil {
		runErr = err
		return nil
	}

	o.step(p.JobID, 45, "classifying taxonomy")
	tree, err := o.Extractor.Classify(jobCtx, videos, channel.Title)
	if err != nil {
		runErr = err
		return nil
	}

	o.step(p.JobID, 75, "discovering competitor channels")
	candidates := o.Discoverer.Discover(jobCtx, channelID, tree)

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.SeedChannel = *channel
		project.SeedVideos = videos
		project.Taxonomy = tree
		project.PotentialCompetitors = candidates
		project.Status = domain.ProjectStatusDiscovered
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

// handleDiscoverChannels re-runs candidate discovery against the
// project's current taxonomy (spec §4.4 "discover").
func (o *Orchestrator) handleDiscoverChannels(ctx context.Context, task *asynq.Task) error {
	var p discoverChannelsPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	project, err := o.Projects.Get(p.ProjectID)
	if err != nil {
		runErr = err
		return nil
	}

	o.step(p.JobID, 30, "discovering competitor channels")
	candidates := o.Discoverer.Discover(jobCtx, project.SeedChannel.ID, project.Taxonomy)

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.PotentialCompetitors = candidates
		project.Status = domain.ProjectStatusDiscovered
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

// handleFinalizeCompetitors fetches each selected channel's metrics,
// tags it with the payload's matching series, and merges it into
// Competitors (spec §4.3, §6 "finalize"). PotentialCompetitors is left
// unchanged.
func (o *Orchestrator) handleFinalizeCompetitors(ctx context.Context, task *asynq.Task) error {
	var p finalizeCompetitorsPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	added := make([]domain.CompetitorChannel, 0, len(p.SelectedChannelIDs))
	total := len(p.SelectedChannelIDs)
	for i, channelID := range p.SelectedChannelIDs {
		o.step(p.JobID, 10+int(float64(i)/float64(total)*80), fmt.Sprintf("analyzing competitor %d/%d", i+1, total))
		var matching []domain.MatchingSeries
		if p.MatchingBySeries != nil {
			for series, titles := range p.MatchingBySeries {
				matching = append(matching, domain.MatchingSeries{SeriesName: series, MatchingTitles: titles})
			}
		}
		competitor, err := o.Discoverer.AddCompetitor(jobCtx, channelID, matching)
		if err != nil {
			runErr = err
			return nil
		}
		added = append(added, *competitor)
	}

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.Competitors = mergeCompetitors(project.Competitors, added)
		project.Status = domain.ProjectStatusFinalized
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

// mergeCompetitors appends added to existing, skipping any channel id
// already present in existing or earlier in added, so that finalizing
// the same channel id twice (a client retry, a re-submitted selection)
// yields exactly one entry (spec §8 "Idempotent add").
func mergeCompetitors(existing, added []domain.CompetitorChannel) []domain.CompetitorChannel {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.ChannelID] = true
	}
	merged := existing
	for _, c := range added {
		if seen[c.ChannelID] {
			continue
		}
		seen[c.ChannelID] = true
		merged = append(merged, c)
	}
	return merged
}

// handleAnalyzeCompetitors recomputes group metrics and the comparative
// analysis against the finalized competitor set (spec §4.5, §12.4).
func (o *Orchestrator) handleAnalyzeCompetitors(ctx context.Context, task *asynq.Task) error {
	var p analyzeCompetitorsPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	o.step(p.JobID, 20, "aggregating competitor metrics")
	project, err := o.Projects.Get(p.ProjectID)
	if err != nil {
		runErr = err
		return nil
	}

	group := metrics.GroupMetrics(project.Competitors)

	o.step(p.JobID, 60, "computing comparative analysis")
	seedMonthlyViews := monthlyViewsForProject(project.SeedVideos)
	seedUploadFreq := uploadFrequencyForProject(project.SeedVideos)
	seedStats := project.SeedChannel.Stats
	seedMonthlySubs := float64(seedStats.SubscriberCount) * 0.01
	if !seedStats.PublishedAt.IsZero() {
		seedMonthlySubs = 0
		if months := time.Since(seedStats.PublishedAt).Hours() / 24 / 30.44; months > 0 {
			seedMonthlySubs = float64(seedStats.SubscriberCount) / months
		}
	}
	comparative := metrics.GenerateComparativeAnalysis(seedMonthlyViews, seedMonthlySubs, seedUploadFreq, project.Competitors)

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.PerformanceMetrics = &group
		project.ComparativeAnalysis = &comparative
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

// monthlyViewsForProject and uploadFrequencyForProject apply the seed
// channel's own recent videos to the same formulas the Discoverer uses
// for competitor channels (ported from
// original_source/dashboard/web_analysis_service.py, spec §4.5), so the
// comparative analysis ranks the seed channel on identical terms.
func monthlyViewsForProject(videos []domain.Video) float64 {
	if len(videos) == 0 {
		return 0
	}
	var total int64
	for _, v := range videos {
		total += v.Views
	}
	oldest, newest := publishSpanOf(videos)
	months := math.Max(newest.Sub(oldest).Hours()/24/30.44, 1)
	return math.Floor(float64(total) / months)
}

func uploadFrequencyForProject(videos []domain.Video) float64 {
	if len(videos) == 0 {
		return 0
	}
	oldest, newest := publishSpanOf(videos)
	days := math.Max(newest.Sub(oldest).Hours()/24, 1)
	months := days / 30.44
	return math.Round(float64(len(videos))/months*100) / 100
}

func publishSpanOf(videos []domain.Video) (oldest, newest time.Time) {
	oldest, newest = videos[0].PublishedAt, videos[0].PublishedAt
	for _, v := range videos {
		if v.PublishedAt.Before(oldest) {
			oldest = v.PublishedAt
		}
		if v.PublishedAt.After(newest) {
			newest = v.PublishedAt
		}
	}
	return oldest, newest
}

// handlePrepareResources fetches transcripts for the selected videos and
// runs the Script Breakdown analysis (spec §4.6).
func (o *Orchestrator) handlePrepareResources(ctx context.Context, task *asynq.Task) error {
	var p prepareResourcesPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	o.step(p.JobID, 10, "fetching transcripts")
	inputs := make([]breakdown.TranscriptInput, 0, len(p.Req.VideoIDs))
	for _, videoID := range p.Req.VideoIDs {
		video, err := o.Search.GetVideo(jobCtx, videoID)
		if err != nil {
			runErr = err
			return nil
		}
		transcript, err := o.Search.GetTranscript(jobCtx, videoID)
		if err != nil {
			runErr = err
			return nil
		}
		text := ""
		if transcript != nil {
			text = *transcript
		}
		inputs = append(inputs, breakdown.TranscriptInput{
			Title:       video.Title,
			Transcript:  text,
			DurationSec: video.DurationSec,
		})
	}

	o.step(p.JobID, 50, "analyzing script style")
	result, err := o.Breakdown.Breakdown(jobCtx, p.ProjectID, p.Req.SeriesName, p.Req.ThemeName, inputs)
	if err != nil {
		runErr = err
		return nil
	}

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.ScriptBreakdowns = append(project.ScriptBreakdowns, *result)
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

// handleGeneratePlot runs the Plot Outline Planner against the series'
// Script Breakdown (spec §4.7).
func (o *Orchestrator) handleGeneratePlot(ctx context.Context, task *asynq.Task) error {
	var p generatePlotPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	project, err := o.Projects.Get(p.ProjectID)
	if err != nil {
		runErr = err
		return nil
	}
	bd := findBreakdown(project, p.Req.SeriesName, p.Req.ThemeName)
	if bd == nil {
		runErr = domain.NotFoundf("no script breakdown for series %q theme %q: run prepare_resources first", p.Req.SeriesName, p.Req.ThemeName)
		return nil
	}

	o.step(p.JobID, 30, "planning video structure")
	plot, err := o.Outline.Outline(jobCtx, p.Req.Title, bd, p.Req.SeriesName, p.Req.ThemeName, p.Req.VideoLengthMin)
	if err != nil {
		runErr = err
		return nil
	}

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.PlotOutlines = append(project.PlotOutlines, *plot)
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}

func findBreakdown(project *domain.Project, seriesName, themeName string) *domain.ScriptBreakdown {
	key := metrics.CanonicalKey(seriesName, themeName)
	for i := range project.ScriptBreakdowns {
		bd := &project.ScriptBreakdowns[i]
		if metrics.CanonicalKey(bd.SeriesName, bd.ThemeName) == key {
			return bd
		}
	}
	return nil
}

func findPlotOutline(project *domain.Project, title string) *domain.PlotOutline {
	for i := range project.PlotOutlines {
		if project.PlotOutlines[i].Title == title {
			return &project.PlotOutlines[i]
		}
	}
	return nil
}

// handleGenerateScript turns a validated Plot Outline into a Full Script
// (spec §4.8).
func (o *Orchestrator) handleGenerateScript(ctx context.Context, task *asynq.Task) error {
	var p generateScriptPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	project, err := o.Projects.Get(p.ProjectID)
	if err != nil {
		runErr = err
		return nil
	}
	plot := findPlotOutline(project, p.Req.Title)
	if plot == nil {
		runErr = domain.NotFoundf("no plot outline titled %q: run generate_plot first", p.Req.Title)
		return nil
	}
	bd := findBreakdown(project, p.Req.SeriesName, p.Req.ThemeName)
	if bd == nil {
		runErr = domain.NotFoundf("no script breakdown for series %q theme %q", p.Req.SeriesName, p.Req.ThemeName)
		return nil
	}

	characters := make([]script.Character, 0, len(p.Req.Characters))
	for _, c := range p.Req.Characters {
		characters = append(characters, script.Character{Name: c.Name, Description: c.Description})
	}

	o.step(p.JobID, 15, "generating script segments")
	full, _, errorLog := o.Scripts.Generate(jobCtx, p.Req.Title, plot, bd, characters, p.Req.HostName, p.Req.SponsoredInstructions)
	full.ProjectID = p.ProjectID

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.FullScripts = append(project.FullScripts, *full)
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	if runErr == nil && len(errorLog) > 0 {
		job, err := o.Jobs.Get(p.JobID)
		if err == nil {
			job.ErrorLog = errorLog
			_ = o.Jobs.Update(job)
		}
	}
	return nil
}

// handleGenerateThumbnails runs the Thumbnail Pipeline's analysis and
// (if a trained model is supplied) generation stage (spec §4.9).
func (o *Orchestrator) handleGenerateThumbnails(ctx context.Context, task *asynq.Task) error {
	var p generateThumbnailsPayload
	if err := decodePayload(task, &p); err != nil {
		return err
	}
	jobCtx := o.cancels.register(ctx, p.JobID)
	defer o.cancels.release(p.JobID)

	var runErr error
	defer func() { _ = o.finish(p.JobID, p.ProjectID, runErr) }()

	o.step(p.JobID, 20, "analyzing reference thumbnails")
	assets, err := o.Thumbnails.Run(jobCtx, p.ProjectID, p.Req.SeriesName, p.Req.ReferenceURLs, p.Req.TrainedModelVersion, p.Req.TriggerWord, p.Req.Concepts)
	if err != nil {
		runErr = err
		return nil
	}

	runErr = o.Projects.WithLock(p.ProjectID, func() error {
		project, err := o.Projects.Get(p.ProjectID)
		if err != nil {
			return err
		}
		project.ThumbnailAssets = append(project.ThumbnailAssets, *assets)
		project.UpdatedAt = time.Now().UTC()
		return o.Projects.Update(project)
	})
	return nil
}
