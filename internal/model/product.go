package model

import (
	"time"

	"gorm.io/gorm"
)

var StrainTypes = []string{"indica", "sativa", "hybrid", "cbd"}

// Product is a catalogue item of one tenant. Prices are integer cents.
type Product struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"not null;uniqueIndex:idx_products_tenant_slug"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Slug        string         `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex:idx_products_tenant_slug"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"type:varchar(100);index"`
	StrainType  string         `json:"strain_type" gorm:"type:varchar(20)"`
	THCPercent  float64        `json:"thc_percent"`
	CBDPercent  float64        `json:"cbd_percent"`
	PriceCents  int64          `json:"price_cents" gorm:"not null"`
	Stock       int            `json:"stock" gorm:"not null"`
	ImageURL    string         `json:"image_url" gorm:"type:varchar(500)"`
	Featured    bool           `json:"featured"`
	IsActive    bool           `json:"is_active" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// ProductFilter narrows catalogue listings
type ProductFilter struct {
	Category   string
	StrainType string
	Query      string
	Featured   *bool
	ActiveOnly bool
	Page       int
	PageSize   int
}

// Page is a paginated listing
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}
