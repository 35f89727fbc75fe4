// Package store implements domain.ProjectRepository, domain.JobRepository,
// and domain.UserSecrets over Postgres via GORM, following the column
// layout the teacher's internal/repository/batch.go uses for nested
// structures: JSON-marshaled string columns typed jsonb in Postgres,
// converted to/from the domain type at the repository boundary.
package store

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"renderowl-intel-api/internal/domain"
)

// ProjectModel is the database model for a project (competitor group).
type ProjectModel struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name         string `gorm:"not null"`
	OwnerID      string `gorm:"index;not null"`
	AllowedUsers string `gorm:"type:jsonb"`

	SeedChannelJSON string `gorm:"type:jsonb"`
	SeedVideosJSON  string `gorm:"type:jsonb"`
	TaxonomyJSON    string `gorm:"type:jsonb"`

	PotentialCompetitorsJSON string `gorm:"type:jsonb"`
	CompetitorsJSON          string `gorm:"type:jsonb"`

	ScriptBreakdownsJSON string `gorm:"type:jsonb"`
	PlotOutlinesJSON     string `gorm:"type:jsonb"`
	FullScriptsJSON      string `gorm:"type:jsonb"`
	ThumbnailAssetsJSON  string `gorm:"type:jsonb"`

	PerformanceMetricsJSON  string `gorm:"type:jsonb"`
	ComparativeAnalysisJSON string `gorm:"type:jsonb"`

	Status    string `gorm:"not null;default:'initial'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name.
func (ProjectModel) TableName() string { return "projects" }

// ProjectRepository implements domain.ProjectRepository over Postgres.
type ProjectRepository struct {
	db *gorm.DB

	// locks holds one *sync.Mutex per project id, created lazily, to
	// serialize writes to a single Project document (spec §5). Grounded
	// on the teacher's per-resource guard pattern in
	// internal/service/batch.go's progress bookkeeping, generalized here
	// from an in-memory struct field to a process-wide keyed lock since
	// the store (not the service) now owns the Project document.
	locks sync.Map // map[string]*sync.Mutex
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(p *domain.Project) error {
	model, err := projectToModel(p)
	if err != nil {
		return err
	}
	return r.db.Create(model).Error
}

func (r *ProjectRepository) Get(id string) (*domain.Project, error) {
	var model ProjectModel
	if err := r.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("project %q not found", id)
		}
		return nil, err
	}
	return modelToProject(&model)
}

func (r *ProjectRepository) Update(p *domain.Project) error {
	model, err := projectToModel(p)
	if err != nil {
		return err
	}
	return r.db.Save(model).Error
}

func (r *ProjectRepository) Delete(id string) error {
	return r.db.Delete(&ProjectModel{}, "id = ?", id).Error
}

func (r *ProjectRepository) List(ownerID string, limit, offset int) ([]*domain.Project, error) {
	var models []ProjectModel
	q := r.db.Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ? OR allowed_users LIKE ?", ownerID, "%\""+ownerID+"\"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	projects := make([]*domain.Project, 0, len(models))
	for i := range models {
		p, err := modelToProject(&models[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// WithLock serializes all writes to a single project id (spec §5).
func (r *ProjectRepository) WithLock(id string, fn func() error) error {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func projectToModel(p *domain.Project) (*ProjectModel, error) {
	allowedUsers, err := json.Marshal(p.AllowedUsers)
	if err != nil {
		return nil, err
	}
	seedChannel, err := json.Marshal(p.SeedChannel)
	if err != nil {
		return nil, err
	}
	seedVideos, err := json.Marshal(p.SeedVideos)
	if err != nil {
		return nil, err
	}
	taxonomy, err := json.Marshal(p.Taxonomy)
	if err != nil {
		return nil, err
	}
	potentialCompetitors, err := json.Marshal(p.PotentialCompetitors)
	if err != nil {
		return nil, err
	}
	competitors, err := json.Marshal(p.Competitors)
	if err != nil {
		return nil, err
	}
	scriptBreakdowns, err := json.Marshal(p.ScriptBreakdowns)
	if err != nil {
		return nil, err
	}
	plotOutlines, err := json.Marshal(p.PlotOutlines)
	if err != nil {
		return nil, err
	}
	fullScripts, err := json.Marshal(p.FullScripts)
	if err != nil {
		return nil, err
	}
	thumbnailAssets, err := json.Marshal(p.ThumbnailAssets)
	if err != nil {
		return nil, err
	}
	var performanceMetrics, comparativeAnalysis []byte
	if p.PerformanceMetrics != nil {
		if performanceMetrics, err = json.Marshal(p.PerformanceMetrics); err != nil {
			return nil, err
		}
	}
	if p.ComparativeAnalysis != nil {
		if comparativeAnalysis, err = json.Marshal(p.ComparativeAnalysis); err != nil {
			return nil, err
		}
	}

	return &ProjectModel{
		ID:                       p.ID,
		Name:                     p.Name,
		OwnerID:                  p.OwnerID,
		AllowedUsers:             string(allowedUsers),
		SeedChannelJSON:          string(seedChannel),
		SeedVideosJSON:           string(seedVideos),
		TaxonomyJSON:             string(taxonomy),
		PotentialCompetitorsJSON: string(potentialCompetitors),
		CompetitorsJSON:          string(competitors),
		ScriptBreakdownsJSON:     string(scriptBreakdowns),
		PlotOutlinesJSON:         string(plotOutlines),
		FullScriptsJSON:          string(fullScripts),
		ThumbnailAssetsJSON:      string(thumbnailAssets),
		PerformanceMetricsJSON:   string(performanceMetrics),
		ComparativeAnalysisJSON:  string(comparativeAnalysis),
		Status:                   string(p.Status),
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}, nil
}

func modelToProject(m *ProjectModel) (*domain.Project, error) {
	p := &domain.Project{
		ID:        m.ID,
		Name:      m.Name,
		OwnerID:   m.OwnerID,
		Status:    domain.ProjectStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := unmarshalIfPresent(m.AllowedUsers, &p.AllowedUsers); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.SeedChannelJSON, &p.SeedChannel); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.SeedVideosJSON, &p.SeedVideos); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.TaxonomyJSON, &p.Taxonomy); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.PotentialCompetitorsJSON, &p.PotentialCompetitors); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.CompetitorsJSON, &p.Competitors); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.ScriptBreakdownsJSON, &p.ScriptBreakdowns); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.PlotOutlinesJSON, &p.PlotOutlines); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.FullScriptsJSON, &p.FullScripts); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(m.ThumbnailAssetsJSON, &p.ThumbnailAssets); err != nil {
		return nil, err
	}
	if m.PerformanceMetricsJSON != "" {
		var pm domain.GroupMetrics
		if err := json.Unmarshal([]byte(m.PerformanceMetricsJSON), &pm); err != nil {
			return nil, err
		}
		p.PerformanceMetrics = &pm
	}
	if m.ComparativeAnalysisJSON != "" {
		var ca domain.ComparativeAnalysis
		if err := json.Unmarshal([]byte(m.ComparativeAnalysisJSON), &ca); err != nil {
			return nil, err
		}
		p.ComparativeAnalysis = &ca
	}
	return p, nil
}

func unmarshalIfPresent(raw string, out interface{}) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

var _ domain.ProjectRepository = (*ProjectRepository)(nil)
