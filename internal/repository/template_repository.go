package repository

import (
	"context"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) List(ctx context.Context, activeOnly bool) ([]model.Template, error) {
	defer prometheus.TrackDBOperation("template_list")()

	query := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	templates := []model.Template{}
	if err := query.Find(&templates).Error; err != nil {
		return nil, translateError(err)
	}
	return templates, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uint) (*model.Template, error) {
	defer prometheus.TrackDBOperation("template_get")()

	var tpl model.Template
	if err := r.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &tpl, nil
}

func (r *TemplateRepository) GetBySlug(ctx context.Context, slug string) (*model.Template, error) {
	defer prometheus.TrackDBOperation("template_get")()

	var tpl model.Template
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tpl).Error; err != nil {
		return nil, translateError(err)
	}
	return &tpl, nil
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.Template) error {
	defer prometheus.TrackDBOperation("template_create")()

	return translateError(r.db.WithContext(ctx).Create(tpl).Error)
}

func (r *TemplateRepository) Save(ctx context.Context, tpl *model.Template) error {
	defer prometheus.TrackDBOperation("template_update")()

	return translateError(r.db.WithContext(ctx).Save(tpl).Error)
}

// Upsert inserts tpl or overwrites the template with the same slug
func (r *TemplateRepository) Upsert(ctx context.Context, tpl *model.Template) error {
	defer prometheus.TrackDBOperation("template_upsert")()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "author", "version", "source_url", "preview_url",
			"pages", "defaults", "is_active", "updated_at",
		}),
	}).Create(tpl).Error
	if err != nil {
		return translateError(err)
	}
	if tpl.ID == 0 {
		existing, err := r.GetBySlug(ctx, tpl.Slug)
		if err != nil {
			return err
		}
		*tpl = *existing
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("template_delete")()

	result := r.db.WithContext(ctx).Delete(&model.Template{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
