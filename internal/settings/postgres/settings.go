package postgres

import (
	"context"
	"errors"

	settingsDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) settings.RepositoryAPI {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (*settingsDatamodel.Settings, error) {
	var s settingsDatamodel.Settings
	err := r.db.WithContext(ctx).Where("id = ?", settingsDatamodel.SingletonID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save upserts the singleton row.
func (r *SettingsRepository) Save(ctx context.Context, s *settingsDatamodel.Settings) error {
	s.ID = settingsDatamodel.SingletonID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(s).Error
}
