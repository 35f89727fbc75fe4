package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
)

func TestJobModelRoundTrip(t *testing.T) {
	j := &domain.Job{
		ID:        "job-1",
		Kind:      domain.JobGenerateScript,
		UserID:    "user-1",
		ProjectID: "proj-1",
		State:     domain.JobStateError,
		Progress:  80,
		Step:      "rendering segment 4",
		ErrorLog:  []string{"segment 2: placeholder inserted after 5 retries"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	model, err := jobToModel(j)
	require.NoError(t, err)
	assert.Equal(t, string(domain.JobGenerateScript), model.Kind)

	got, err := modelToJob(model)
	require.NoError(t, err)
	assert.Equal(t, j.Kind, got.Kind)
	assert.Equal(t, j.State, got.State)
	assert.Equal(t, j.ErrorLog, got.ErrorLog)
}
