package repository

import (
	"context"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// CreateWithAdmin inserts a tenant and its first admin user in one transaction
func (r *TenantRepository) CreateWithAdmin(ctx context.Context, tenant *model.Tenant, admin *model.User) error {
	defer prometheus.TrackDBOperation("tenant_create")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		admin.TenantID = &tenant.ID
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		return tx.Model(tenant).Update("owner_id", admin.ID).Error
	})
	if err != nil {
		return translateError(err)
	}
	tenant.OwnerID = &admin.ID
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id uint) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_get")()

	var tenant model.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_get")()

	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("subdomain = ?", strings.ToLower(subdomain)).First(&tenant).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) GetByCustomDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_get")()

	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("custom_domain = ?", strings.ToLower(domain)).First(&tenant).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

// SubdomainTaken checks soft-deleted rows too, the unique index still holds them
func (r *TenantRepository) SubdomainTaken(ctx context.Context, subdomain string) (bool, error) {
	defer prometheus.TrackDBOperation("tenant_query")()

	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Tenant{}).
		Where("subdomain = ?", strings.ToLower(subdomain)).Count(&count).Error
	return count > 0, translateError(err)
}

func (r *TenantRepository) List(ctx context.Context, filter model.TenantFilter) (*model.Page[model.Tenant], error) {
	defer prometheus.TrackDBOperation("tenant_list")()

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := r.db.WithContext(ctx).Model(&model.Tenant{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(business_name) LIKE ? OR subdomain LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err)
	}

	tenants := []model.Tenant{}
	if err := query.Order("created_at DESC").Scopes(paginate(page, pageSize)).Find(&tenants).Error; err != nil {
		return nil, translateError(err)
	}
	return &model.Page[model.Tenant]{Items: tenants, Page: page, PageSize: pageSize, Total: total}, nil
}

// ListAll returns every tenant created in [from, to), newest first; zero times are unbounded
func (r *TenantRepository) ListAll(ctx context.Context, from, to time.Time) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_list")()

	query := r.db.WithContext(ctx).Model(&model.Tenant{})
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}
	var tenants []model.Tenant
	if err := query.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, translateError(err)
	}
	return tenants, nil
}

func (r *TenantRepository) Save(ctx context.Context, tenant *model.Tenant) error {
	defer prometheus.TrackDBOperation("tenant_update")()

	return translateError(r.db.WithContext(ctx).Save(tenant).Error)
}

// CountByStatus returns tenant counts keyed by status plus the number of active tenants
func (r *TenantRepository) CountByStatus(ctx context.Context) (map[model.TenantStatus]int64, int64, error) {
	defer prometheus.TrackDBOperation("tenant_count")()

	var rows []struct {
		Status model.TenantStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Tenant{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}
	counts := make(map[model.TenantStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	var active int64
	if err := r.db.WithContext(ctx).Model(&model.Tenant{}).
		Where("is_active = ? AND status = ?", true, model.TenantStatusApproved).Count(&active).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return counts, active, nil
}

func (r *TenantRepository) CountUsingTemplate(ctx context.Context, templateID uint) (int64, error) {
	defer prometheus.TrackDBOperation("tenant_count")()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Tenant{}).Where("template_id = ?", templateID).Count(&count).Error
	return count, translateError(err)
}

// IDsUsingTemplate lists tenants that picked templateID. Zero lists tenants without a template.
func (r *TenantRepository) IDsUsingTemplate(ctx context.Context, templateID uint) ([]uint, error) {
	defer prometheus.TrackDBOperation("tenant_query")()

	query := r.db.WithContext(ctx).Model(&model.Tenant{})
	if templateID == 0 {
		query = query.Where("template_id IS NULL")
	} else {
		query = query.Where("template_id = ?", templateID)
	}
	var ids []uint
	err := query.Pluck("id", &ids).Error
	return ids, translateError(err)
}
