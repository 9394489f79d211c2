package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TenantStatus string

const (
	TenantStatusPending  TenantStatus = "pending"
	TenantStatusApproved TenantStatus = "approved"
	TenantStatusRejected TenantStatus = "rejected"
)

// Tenant is a dispensary storefront on the shared platform
type Tenant struct {
	ID                    uint                                  `json:"id" gorm:"primaryKey"`
	BusinessName          string                                `json:"business_name" gorm:"type:varchar(100);not null"`
	Subdomain             string                                `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	CustomDomain          *string                               `json:"custom_domain,omitempty" gorm:"type:varchar(253);uniqueIndex"`
	LicenseNumber         string                                `json:"license_number" gorm:"type:varchar(100);not null"`
	ContactEmail          string                                `json:"contact_email" gorm:"type:varchar(255);not null"`
	ContactPhone          string                                `json:"contact_phone" gorm:"type:varchar(50)"`
	CountryCode           string                                `json:"country_code" gorm:"type:varchar(2)"`
	NFTTokenID            string                                `json:"nft_token_id,omitempty" gorm:"type:varchar(100)"`
	NFTVerified           bool                                  `json:"nft_verified"`
	Status                TenantStatus                          `json:"status" gorm:"type:varchar(20);index;not null"`
	IsActive              bool                                  `json:"is_active" gorm:"index"`
	TemplateID            *uint                                 `json:"template_id,omitempty" gorm:"index"`
	TemplateOverrides     datatypes.JSONType[map[string]string] `json:"template_overrides" gorm:"type:jsonb"`
	TaxRateBps            int                                   `json:"tax_rate_bps"`
	ShippingFeeCents      int64                                 `json:"shipping_fee_cents"`
	FreeShippingOverCents int64                                 `json:"free_shipping_over_cents"`
	OwnerID               *uint                                 `json:"owner_id,omitempty"`
	CreatedAt             time.Time                             `json:"created_at"`
	UpdatedAt             time.Time                             `json:"updated_at"`
	DeletedAt             gorm.DeletedAt                        `json:"-" gorm:"index"`
}

// IsLive reports whether the storefront may serve customers
func (t *Tenant) IsLive() bool {
	return t.IsActive && t.Status == TenantStatusApproved
}

// Overrides returns the tenant's theme overrides, never nil
func (t *Tenant) Overrides() map[string]string {
	data := t.TemplateOverrides.Data()
	if data == nil {
		return map[string]string{}
	}
	return data
}

// TenantFilter narrows the super admin tenant listing
type TenantFilter struct {
	Status   TenantStatus
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// PublicTenant is the storefront-facing subset of a tenant
type PublicTenant struct {
	ID           uint   `json:"id"`
	BusinessName string `json:"business_name"`
	Subdomain    string `json:"subdomain"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	CountryCode  string `json:"country_code"`
}

func (t *Tenant) Public() PublicTenant {
	return PublicTenant{
		ID:           t.ID,
		BusinessName: t.BusinessName,
		Subdomain:    t.Subdomain,
		ContactEmail: t.ContactEmail,
		ContactPhone: t.ContactPhone,
		CountryCode:  t.CountryCode,
	}
}
