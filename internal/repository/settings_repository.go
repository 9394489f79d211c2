package repository

import (
	"context"
	"errors"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row, falling back to defaults when it was never seeded
func (r *SettingsRepository) Get(ctx context.Context) (*model.PlatformSettings, error) {
	defer prometheus.TrackDBOperation("settings_get")()

	var settings model.PlatformSettings
	err := r.db.WithContext(ctx).First(&settings, model.PlatformSettingsID).Error
	if err != nil {
		err = translateError(err)
		if errors.Is(err, model.ErrNotFound) {
			defaults := model.DefaultPlatformSettings()
			return &defaults, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.PlatformSettings) error {
	defer prometheus.TrackDBOperation("settings_update")()

	settings.ID = model.PlatformSettingsID
	return translateError(r.db.WithContext(ctx).Save(settings).Error)
}

// Seed inserts the default row unless one exists
func (r *SettingsRepository) Seed(ctx context.Context) error {
	defaults := model.DefaultPlatformSettings()
	return translateError(r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error)
}
