package jobs

import (
	"encoding/json"

	"renderowl-intel-api/internal/domain"
)

// mustMarshal panics on a marshal failure of one of this package's own
// payload structs, which can only happen from a programmer error (an
// unsupported field type), never from caller input.
func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Task type strings are exactly the domain.JobKind enum (spec §4.10):
// the asynq task is the execution vehicle, the Job document (domain.Job)
// is the durable, pollable record (SPEC_FULL §10.5).
const (
	TypeCreateProject       = string(domain.JobCreateProject)
	TypeFinalizeCompetitors = string(domain.JobFinalizeCompetitors)
	TypeAnalyzeCompetitors  = string(domain.JobAnalyzeCompetitors)
	TypePrepareResources    = string(domain.JobPrepareResources)
	TypeDiscoverChannels    = string(domain.JobDiscoverChannels)
	TypeGeneratePlot        = string(domain.JobGeneratePlot)
	TypeGenerateScript      = string(domain.JobGenerateScript)
	TypeGenerateThumbnails  = string(domain.JobGenerateThumbnails)
)

type createProjectPayload struct {
	JobID          string `json:"jobId"`
	ProjectID      string `json:"projectId"`
	SeedChannelURL string `json:"seedChannelUrl"`
}

type discoverChannelsPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
}

type finalizeCompetitorsPayload struct {
	JobID             string                        `json:"jobId"`
	ProjectID         string                        `json:"projectId"`
	SelectedChannelIDs []string                     `json:"selectedChannelIds"`
	MatchingBySeries  map[string][]string            `json:"matchingBySeries,omitempty"`
}

type analyzeCompetitorsPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
}

// PrepareResourcesRequest is the per-(series,theme) Script Breakdown
// trigger (spec §4.6, SPEC_FULL §2 control flow "on user action (theme
// selected)...").
type PrepareResourcesRequest struct {
	SeriesName string `json:"seriesName"`
	ThemeName  string `json:"themeName"`
	VideoIDs   []string `json:"videoIds"`
}

type prepareResourcesPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	Req       PrepareResourcesRequest `json:"req"`
}

// PlotRequest is the input to a generate_plot job.
type PlotRequest struct {
	SeriesName     string `json:"seriesName"`
	ThemeName      string `json:"themeName"`
	Title          string `json:"title"`
	VideoLengthMin int    `json:"videoLengthMin"`
}

type generatePlotPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	Req       PlotRequest `json:"req"`
}

// ScriptRequest is the input to a generate_script job (spec §6 "POST
// /projects/{id}/scripts").
type ScriptRequest struct {
	SeriesName            string             `json:"seriesName"`
	ThemeName             string             `json:"themeName"`
	Title                 string             `json:"title"`
	DurationMin           int                `json:"durationMin"`
	Characters            []ScriptCharacter  `json:"characters,omitempty"`
	HostName              string             `json:"hostName,omitempty"`
	SponsoredInstructions string             `json:"sponsoredInstructions,omitempty"`
}

// ScriptCharacter mirrors internal/script.Character for the wire payload.
type ScriptCharacter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type generateScriptPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	Req       ScriptRequest `json:"req"`
}

// ThumbnailRequest is the input to a generate_thumbnails job.
type ThumbnailRequest struct {
	SeriesName          string   `json:"seriesName"`
	ReferenceURLs       []string `json:"referenceUrls"`
	TrainedModelVersion string   `json:"trainedModelVersion,omitempty"`
	TriggerWord         string   `json:"triggerWord,omitempty"`
	Concepts            []string `json:"concepts"`
}

type generateThumbnailsPayload struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	Req       ThumbnailRequest `json:"req"`
}
