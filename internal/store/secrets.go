package store

import (
	"time"

	"gorm.io/gorm"

	"renderowl-intel-api/internal/domain"
)

// UserSecretModel is the database model for one (user, service) API key.
type UserSecretModel struct {
	UserID    string `gorm:"primaryKey"`
	Service   string `gorm:"primaryKey"`
	Key       string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name.
func (UserSecretModel) TableName() string { return "user_secrets" }

// UserSecretRepository implements domain.UserSecrets over Postgres.
type UserSecretRepository struct {
	db *gorm.DB
}

// NewUserSecretRepository creates a new user secret repository.
func NewUserSecretRepository(db *gorm.DB) *UserSecretRepository {
	return &UserSecretRepository{db: db}
}

func (r *UserSecretRepository) Get(userID, service string) (string, bool) {
	var model UserSecretModel
	if err := r.db.First(&model, "user_id = ? AND service = ?", userID, service).Error; err != nil {
		return "", false
	}
	return model.Key, true
}

func (r *UserSecretRepository) Set(userID, service, key string) error {
	model := UserSecretModel{UserID: userID, Service: service, Key: key, UpdatedAt: time.Now()}
	return r.db.Save(&model).Error
}

func (r *UserSecretRepository) Delete(userID, service string) error {
	return r.db.Delete(&UserSecretModel{}, "user_id = ? AND service = ?", userID, service).Error
}

// RequireAll returns domain.ErrValidation listing the first missing
// service, matching SPEC_FULL §12.2's API-key precondition check.
func (r *UserSecretRepository) RequireAll(userID string, services []string) error {
	for _, svc := range services {
		if _, ok := r.Get(userID, svc); !ok {
			return domain.Validationf("missing required secret %q", svc)
		}
	}
	return nil
}

var _ domain.UserSecrets = (*UserSecretRepository)(nil)
