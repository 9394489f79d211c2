package model

import (
	"time"

	"gorm.io/datatypes"
)

// Template is a swappable storefront: a page → component map plus default theme tokens
type Template struct {
	ID          uint                                  `json:"id" gorm:"primaryKey"`
	Slug        string                                `json:"slug" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name        string                                `json:"name" gorm:"type:varchar(100);not null"`
	Description string                                `json:"description" gorm:"type:text"`
	Author      string                                `json:"author" gorm:"type:varchar(100)"`
	Version     string                                `json:"version" gorm:"type:varchar(32)"`
	SourceURL   string                                `json:"source_url" gorm:"type:varchar(500)"`
	PreviewURL  string                                `json:"preview_url" gorm:"type:varchar(500)"`
	Pages       datatypes.JSONType[map[string]string] `json:"pages" gorm:"type:jsonb"`
	Defaults    datatypes.JSONType[map[string]string] `json:"defaults" gorm:"type:jsonb"`
	IsActive    bool                                  `json:"is_active"`
	CreatedAt   time.Time                             `json:"created_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`
}

// ResolvedTemplate is what a storefront renders: the chosen components and merged theme
type ResolvedTemplate struct {
	TemplateID   uint              `json:"template_id"`
	TemplateSlug string            `json:"template_slug"`
	Source       string            `json:"source"`
	Pages        map[string]string `json:"pages"`
	Theme        map[string]string `json:"theme"`
	CSSVariables string            `json:"css_variables"`
}
