package model

import "time"

// PlatformSettingsID is the primary key of the single settings row
const PlatformSettingsID = 1

// PlatformSettings holds platform-wide switches managed by super admins
type PlatformSettings struct {
	ID                uint      `json:"-" gorm:"primaryKey"`
	PlatformName      string    `json:"platform_name" gorm:"type:varchar(100);not null"`
	SupportEmail      string    `json:"support_email" gorm:"type:varchar(255)"`
	DefaultTemplateID *uint     `json:"default_template_id,omitempty"`
	RequireNFT        bool      `json:"require_nft"`
	AllowOnboarding   bool      `json:"allow_onboarding"`
	MaintenanceMode   bool      `json:"maintenance_mode"`
	DefaultTaxRateBps int       `json:"default_tax_rate_bps"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultPlatformSettings is seeded on first start
func DefaultPlatformSettings() PlatformSettings {
	return PlatformSettings{
		ID:              PlatformSettingsID,
		PlatformName:    "BudStack",
		AllowOnboarding: true,
	}
}
