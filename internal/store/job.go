package store

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"renderowl-intel-api/internal/domain"
)

// JobModel is the database model for a background job.
type JobModel struct {
	ID            string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Kind          string `gorm:"not null"`
	UserID        string `gorm:"index;not null"`
	ProjectID     string `gorm:"index"`
	State         string `gorm:"not null;default:'running'"`
	Progress      int    `gorm:"default:0"`
	Step          string
	ResultRef     string
	Error         string
	ErrorLogJSON  string `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name.
func (JobModel) TableName() string { return "jobs" }

// JobRepository implements domain.JobRepository over Postgres.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(j *domain.Job) error {
	model, err := jobToModel(j)
	if err != nil {
		return err
	}
	return r.db.Create(model).Error
}

func (r *JobRepository) Get(id string) (*domain.Job, error) {
	var model JobModel
	if err := r.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("job %q not found", id)
		}
		return nil, err
	}
	return modelToJob(&model)
}

func (r *JobRepository) Update(j *domain.Job) error {
	model, err := jobToModel(j)
	if err != nil {
		return err
	}
	return r.db.Save(model).Error
}

func (r *JobRepository) List(userID string, limit, offset int) ([]*domain.Job, error) {
	var models []JobModel
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]*domain.Job, 0, len(models))
	for i := range models {
		j, err := modelToJob(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func jobToModel(j *domain.Job) (*JobModel, error) {
	errorLog, err := json.Marshal(j.ErrorLog)
	if err != nil {
		return nil, err
	}
	return &JobModel{
		ID:           j.ID,
		Kind:         string(j.Kind),
		UserID:       j.UserID,
		ProjectID:    j.ProjectID,
		State:        string(j.State),
		Progress:     j.Progress,
		Step:         j.Step,
		ResultRef:    j.ResultRef,
		Error:        j.Error,
		ErrorLogJSON: string(errorLog),
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}, nil
}

func modelToJob(m *JobModel) (*domain.Job, error) {
	j := &domain.Job{
		ID:        m.ID,
		Kind:      domain.JobKind(m.Kind),
		UserID:    m.UserID,
		ProjectID: m.ProjectID,
		State:     domain.JobState(m.State),
		Progress:  m.Progress,
		Step:      m.Step,
		ResultRef: m.ResultRef,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := unmarshalIfPresent(m.ErrorLogJSON, &j.ErrorLog); err != nil {
		return nil, err
	}
	return j, nil
}

var _ domain.JobRepository = (*JobRepository)(nil)
