package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/competitors"
	"renderowl-intel-api/internal/domain"
	"renderowl-intel-api/internal/search"
)

type fakeSearchEngine struct {
	channels      map[string]*domain.Channel
	channelVideos map[string][]domain.Video
}

func (f *fakeSearchEngine) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return nil, nil
}

func (f *fakeSearchEngine) FetchChannel(ctx context.Context, id string) (*domain.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, domain.NotFoundf("channel %q not found", id)
	}
	return ch, nil
}

func (f *fakeSearchEngine) ListChannelVideos(ctx context.Context, channelID string, limit int) ([]domain.Video, error) {
	return f.channelVideos[channelID], nil
}

func finalizeTask(t *testing.T, jobID, projectID string, channelIDs []string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(finalizeCompetitorsPayload{
		JobID:              jobID,
		ProjectID:          projectID,
		SelectedChannelIDs: channelIDs,
	})
	require.NoError(t, err)
	return asynq.NewTask(TypeFinalizeCompetitors, payload)
}

func TestHandleFinalizeCompetitors_IdempotentAcrossCalls(t *testing.T) {
	projects := newFakeProjects()
	projects.byID["p1"] = &domain.Project{ID: "p1"}
	jobsRepo := newFakeJobs()
	jobsRepo.byID["j1"] = &domain.Job{ID: "j1", State: domain.JobStateRunning}
	jobsRepo.byID["j2"] = &domain.Job{ID: "j2", State: domain.JobStateRunning}

	engine := &fakeSearchEngine{
		channels: map[string]*domain.Channel{
			"c1": {ID: "c1", Title: "Competitor One"},
			"c2": {ID: "c2", Title: "Competitor Two"},
		},
	}
	o := New(projects, jobsRepo, &fakeSecrets{}, nil, nil, competitors.New(engine, nil, ""), nil, nil, nil, nil, nil, 0)

	// First finalize selects c1 and c2.
	err := o.handleFinalizeCompetitors(context.Background(), finalizeTask(t, "j1", "p1", []string{"c1", "c2"}))
	require.NoError(t, err)

	project, err := projects.Get("p1")
	require.NoError(t, err)
	require.Len(t, project.Competitors, 2)

	// A retried/re-submitted finalize of c1 must not duplicate c1's entry.
	err = o.handleFinalizeCompetitors(context.Background(), finalizeTask(t, "j2", "p1", []string{"c1"}))
	require.NoError(t, err)

	project, err = projects.Get("p1")
	require.NoError(t, err)
	assert.Len(t, project.Competitors, 2)

	ids := make([]string, 0, len(project.Competitors))
	for _, c := range project.Competitors {
		ids = append(ids, c.ChannelID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestMergeCompetitors_DedupsWithinSingleBatch(t *testing.T) {
	added := []domain.CompetitorChannel{
		{ChannelID: "c1"},
		{ChannelID: "c1"},
		{ChannelID: "c2"},
	}
	merged := mergeCompetitors(nil, added)

	ids := make([]string, 0, len(merged))
	for _, c := range merged {
		ids = append(ids, c.ChannelID)
	}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestMergeCompetitors_SkipsAlreadyPresent(t *testing.T) {
	existing := []domain.CompetitorChannel{{ChannelID: "c1", Title: "original"}}
	added := []domain.CompetitorChannel{{ChannelID: "c1", Title: "duplicate"}, {ChannelID: "c2"}}

	merged := mergeCompetitors(existing, added)
	require.Len(t, merged, 2)
	assert.Equal(t, "original", merged[0].Title)
}
