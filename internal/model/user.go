package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleSuperAdmin  = "SUPER_ADMIN"
	RoleTenantAdmin = "TENANT_ADMIN"
	RoleCustomer    = "CUSTOMER"
)

// User is a platform account. Super admins have no tenant.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Email        string         `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	Name         string         `json:"name" gorm:"type:varchar(100)"`
	Role         string         `json:"role" gorm:"type:varchar(20);index;not null"`
	TenantID     *uint          `json:"tenant_id,omitempty" gorm:"uniqueIndex:idx_users_tenant_email"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
