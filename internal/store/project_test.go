package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
)

func TestProjectModelRoundTrip(t *testing.T) {
	p := &domain.Project{
		ID:           "proj-1",
		Name:         "Mr Beast Competitors",
		OwnerID:      "user-1",
		AllowedUsers: []string{"user-1", "user-2"},
		SeedChannel:  domain.Channel{ID: "UCabc", Title: "Seed Channel"},
		Taxonomy: domain.TaxonomyTree{
			Series: []domain.Series{{Name: "Challenges", AvgViews: 1.2e6}},
		},
		PotentialCompetitors: map[string][]domain.CandidateChannel{
			"Challenges": {{ChannelID: "UCdef", Title: "Candidate"}},
		},
		Competitors: []domain.CompetitorChannel{{ChannelID: "UCxyz", Title: "Rival"}},
		Status:      domain.ProjectStatusDiscovered,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	model, err := projectToModel(p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, model.ID)
	assert.Contains(t, model.AllowedUsers, "user-2")

	got, err := modelToProject(model)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.AllowedUsers, got.AllowedUsers)
	assert.Equal(t, p.SeedChannel.ID, got.SeedChannel.ID)
	assert.Len(t, got.Taxonomy.Series, 1)
	assert.Equal(t, "Challenges", got.Taxonomy.Series[0].Name)
	assert.Len(t, got.PotentialCompetitors["Challenges"], 1)
	assert.Len(t, got.Competitors, 1)
	assert.Equal(t, domain.ProjectStatusDiscovered, got.Status)
}

func TestProjectRepository_WithLock_Serializes(t *testing.T) {
	repo := &ProjectRepository{}
	var counter int
	done := make(chan struct{})
	go func() {
		_ = repo.WithLock("proj-1", func() error {
			counter++
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		done <- struct{}{}
	}()
	time.Sleep(2 * time.Millisecond)
	_ = repo.WithLock("proj-1", func() error {
		counter++
		return nil
	})
	<-done
	assert.Equal(t, 2, counter)
}
