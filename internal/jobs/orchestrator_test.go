package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderowl-intel-api/internal/domain"
)

type fakeProjects struct {
	byID map[string]*domain.Project
}

func newFakeProjects() *fakeProjects { return &fakeProjects{byID: map[string]*domain.Project{}} }

func (f *fakeProjects) Create(p *domain.Project) error { f.byID[p.ID] = p; return nil }
func (f *fakeProjects) Get(id string) (*domain.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFoundf("project %q not found", id)
	}
	return p, nil
}
func (f *fakeProjects) Update(p *domain.Project) error { f.byID[p.ID] = p; return nil }
func (f *fakeProjects) Delete(id string) error         { delete(f.byID, id); return nil }
func (f *fakeProjects) List(ownerID string, limit, offset int) ([]*domain.Project, error) {
	var out []*domain.Project
	for _, p := range f.byID {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeProjects) WithLock(id string, fn func() error) error { return fn() }

type fakeJobs struct {
	byID map[string]*domain.Job
}

func newFakeJobs() *fakeJobs { return &fakeJobs{byID: map[string]*domain.Job{}} }

func (f *fakeJobs) Create(j *domain.Job) error { f.byID[j.ID] = j; return nil }
func (f *fakeJobs) Get(id string) (*domain.Job, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFoundf("job %q not found", id)
	}
	return j, nil
}
func (f *fakeJobs) Update(j *domain.Job) error { f.byID[j.ID] = j; return nil }
func (f *fakeJobs) List(userID string, limit, offset int) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range f.byID {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeSecrets struct {
	have map[string]bool
}

func (f *fakeSecrets) Get(userID, service string) (string, bool) { return "", f.have[userID+":"+service] }
func (f *fakeSecrets) Set(userID, service, key string) error {
	if f.have == nil {
		f.have = map[string]bool{}
	}
	f.have[userID+":"+service] = true
	return nil
}
func (f *fakeSecrets) Delete(userID, service string) error {
	delete(f.have, userID+":"+service)
	return nil
}
func (f *fakeSecrets) RequireAll(userID string, services []string) error {
	for _, svc := range services {
		if !f.have[userID+":"+svc] {
			return domain.Validationf("missing required secret %q", svc)
		}
	}
	return nil
}

func TestCreateProject_MissingSecretRejected(t *testing.T) {
	o := New(newFakeProjects(), newFakeJobs(), &fakeSecrets{}, nil, nil, nil, nil, nil, nil, nil, nil, 0)
	user := &domain.UserContext{ID: "u1"}

	_, _, err := o.CreateProject(context.Background(), user, "My Project", "https://youtube.com/@someone")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrValidation, derr.Kind)
}

func TestCreateProject_OverQuotaRejected(t *testing.T) {
	projects := newFakeProjects()
	secrets := &fakeSecrets{}
	user := &domain.UserContext{ID: "u1"}
	_ = secrets.Set(user.ID, "llm", "key")
	projects.byID["existing"] = &domain.Project{ID: "existing", OwnerID: user.ID}

	o := New(projects, newFakeJobs(), secrets, nil, nil, nil, nil, nil, nil, nil, nil, 1)

	_, _, err := o.CreateProject(context.Background(), user, "Second Project", "https://youtube.com/@someone")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrValidation, derr.Kind)
}

func TestCancel_UnknownJobNotFound(t *testing.T) {
	o := New(newFakeProjects(), newFakeJobs(), &fakeSecrets{}, nil, nil, nil, nil, nil, nil, nil, nil, 0)
	err := o.Cancel(context.Background(), &domain.UserContext{ID: "u1"}, "missing")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrNotFound, derr.Kind)
}

func TestCancel_TransitionsRunningJobToError(t *testing.T) {
	jobsRepo := newFakeJobs()
	jobsRepo.byID["j1"] = &domain.Job{ID: "j1", UserID: "u1", State: domain.JobStateRunning}
	o := New(newFakeProjects(), jobsRepo, &fakeSecrets{}, nil, nil, nil, nil, nil, nil, nil, nil, 0)

	err := o.Cancel(context.Background(), &domain.UserContext{ID: "u1"}, "j1")
	require.NoError(t, err)

	job, _ := jobsRepo.Get("j1")
	assert.Equal(t, domain.JobStateError, job.State)
	assert.Equal(t, "cancelled", job.Error)
}

func TestCancelRegistry_RegisterCancelRelease(t *testing.T) {
	r := newCancelRegistry()
	ctx := r.register(context.Background(), "job-1")

	assert.True(t, r.cancel("job-1"))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected context to be cancelled")
	}

	r.release("job-1")
	assert.False(t, r.cancel("job-1"))
}

func TestDeleteProject_DeniesNonMember(t *testing.T) {
	projects := newFakeProjects()
	projects.byID["p1"] = &domain.Project{ID: "p1", OwnerID: "owner"}
	o := New(projects, newFakeJobs(), &fakeSecrets{}, nil, nil, nil, nil, nil, nil, nil, nil, 0)

	err := o.DeleteProject(context.Background(), &domain.UserContext{ID: "someone-else"}, "p1")

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrNotFound, derr.Kind)
}
