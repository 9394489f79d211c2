package repository

import (
	"context"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("user_create")()

	user.Email = strings.ToLower(user.Email)
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("user_get")()

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindByEmail looks a user up within a tenant. A nil tenant matches platform users only.
func (r *UserRepository) FindByEmail(ctx context.Context, email string, tenantID *uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("user_get")()

	query := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email))
	if tenantID == nil {
		query = query.Where("tenant_id IS NULL")
	} else {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var user model.User
	if err := query.First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// ListByRole pages through the users of one tenant holding role
func (r *UserRepository) ListByRole(ctx context.Context, tenantID uint, role string, page, pageSize int) (*model.Page[model.User], error) {
	defer prometheus.TrackDBOperation("user_list")()

	page, pageSize = normalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&model.User{}).Where("tenant_id = ? AND role = ?", tenantID, role)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateError(err)
	}
	users := []model.User{}
	if err := query.Order("created_at DESC").Scopes(paginate(page, pageSize)).Find(&users).Error; err != nil {
		return nil, translateError(err)
	}
	return &model.Page[model.User]{Items: users, Page: page, PageSize: pageSize, Total: total}, nil
}

// CountCreatedSince counts users of a tenant with role registered at or after since
func (r *UserRepository) CountCreatedSince(ctx context.Context, tenantID uint, role string, since time.Time) (int64, error) {
	defer prometheus.TrackDBOperation("user_count")()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("tenant_id = ? AND role = ? AND created_at >= ?", tenantID, role, since).
		Count(&count).Error
	return count, translateError(err)
}
