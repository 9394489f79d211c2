package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budstack-service/internal/model"
	"budstack-service/pkg/nftclient"
	"budstack-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// NFTVerifier checks license tokens against the NFT API
type NFTVerifier interface {
	Verify(ctx context.Context, tokenID string) (*nftclient.Verification, error)
}

// AdminInput is the first administrator of a new store
type AdminInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OnboardingInput is a dispensary's application
type OnboardingInput struct {
	BusinessName  string     `json:"business_name"`
	Subdomain     string     `json:"subdomain"`
	ContactEmail  string     `json:"contact_email"`
	ContactPhone  string     `json:"contact_phone"`
	LicenseNumber string     `json:"license_number"`
	CountryCode   string     `json:"country_code"`
	NFTTokenID    string     `json:"nft_token_id"`
	TemplateID    *uint      `json:"template_id"`
	Admin         AdminInput `json:"admin"`
}

// Availability answers whether a subdomain can be claimed
type Availability struct {
	Subdomain string `json:"subdomain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type OnboardingService struct {
	tenants   TenantStore
	templates TemplateStore
	settings  SettingsStore
	nft       NFTVerifier
	logger    *zap.Logger
}

// NewOnboardingService builds the service. nft may be nil when verification is not configured.
func NewOnboardingService(tenants TenantStore, templates TemplateStore, settings SettingsStore, nft NFTVerifier, logger *zap.Logger) *OnboardingService {
	return &OnboardingService{
		tenants:   tenants,
		templates: templates,
		settings:  settings,
		nft:       nft,
		logger:    logger,
	}
}

func (s *OnboardingService) Availability(ctx context.Context, subdomain string) (*Availability, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	result := &Availability{Subdomain: subdomain}

	if err := ValidateSubdomain(subdomain); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			result.Reason = verr.Message
		}
		return result, nil
	}

	taken, err := s.tenants.SubdomainTaken(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if taken {
		result.Reason = "already taken"
		return result, nil
	}
	result.Available = true
	return result, nil
}

// Apply validates an application and creates the pending store with its admin account
func (s *OnboardingService) Apply(ctx context.Context, input OnboardingInput) (*model.Tenant, *model.User, error) {
	tenant, admin, err := s.apply(ctx, input)
	switch {
	case err == nil:
		prometheus.RecordOnboarding("accepted")
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrForbidden):
		prometheus.RecordOnboarding("rejected")
	default:
		prometheus.RecordOnboarding("error")
	}
	return tenant, admin, err
}

func (s *OnboardingService) apply(ctx context.Context, input OnboardingInput) (*model.Tenant, *model.User, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !settings.AllowOnboarding {
		return nil, nil, fmt.Errorf("onboarding is closed: %w", model.ErrForbidden)
	}

	normalizeOnboarding(&input)
	if err := validateOnboarding(input, settings.RequireNFT); err != nil {
		return nil, nil, err
	}

	taken, err := s.tenants.SubdomainTaken(ctx, input.Subdomain)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, fmt.Errorf("subdomain %s is already taken: %w", input.Subdomain, model.ErrConflict)
	}

	if input.TemplateID != nil {
		tpl, err := s.templates.GetByID(ctx, *input.TemplateID)
		if err != nil || !tpl.IsActive {
			return nil, nil, model.NewValidationError("template_id", "is not an available template")
		}
	}

	verified, err := s.verifyNFT(ctx, input.NFTTokenID, settings.RequireNFT)
	if err != nil {
		return nil, nil, err
	}

	hash, err := hashPassword(input.Admin.Password)
	if err != nil {
		return nil, nil, err
	}

	tenant := &model.Tenant{
		BusinessName:      input.BusinessName,
		Subdomain:         input.Subdomain,
		LicenseNumber:     input.LicenseNumber,
		ContactEmail:      input.ContactEmail,
		ContactPhone:      input.ContactPhone,
		CountryCode:       input.CountryCode,
		NFTTokenID:        input.NFTTokenID,
		NFTVerified:       verified,
		Status:            model.TenantStatusPending,
		IsActive:          false,
		TemplateID:        input.TemplateID,
		TemplateOverrides: datatypes.NewJSONType(map[string]string{}),
		TaxRateBps:        settings.DefaultTaxRateBps,
	}
	admin := &model.User{
		Email:        input.Admin.Email,
		PasswordHash: hash,
		Name:         input.Admin.Name,
		Role:         model.RoleTenantAdmin,
		IsActive:     true,
	}
	if err := s.tenants.CreateWithAdmin(ctx, tenant, admin); err != nil {
		return nil, nil, fmt.Errorf("create store %s: %w", tenant.Subdomain, err)
	}

	s.logger.Info("Store application received",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain),
		zap.Bool("nft_verified", verified))
	return tenant, admin, nil
}

// verifyNFT returns whether the token was verified. A missing or unreachable API only fails the
// application when the platform requires NFT licenses.
func (s *OnboardingService) verifyNFT(ctx context.Context, tokenID string, required bool) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	if s.nft == nil {
		if required {
			return false, fmt.Errorf("nft verification is not configured: %w", model.ErrUnavailable)
		}
		return false, nil
	}

	result, err := s.nft.Verify(ctx, tokenID)
	if err != nil {
		if required {
			return false, fmt.Errorf("verify nft license: %w", model.ErrUnavailable)
		}
		s.logger.Warn("NFT verification unavailable, accepting application unverified",
			zap.String("nft_token_id", tokenID), zap.Error(err))
		return false, nil
	}
	if !result.Valid {
		return false, model.NewValidationError("nft_token_id", "is not a valid license token")
	}
	return true, nil
}

func normalizeOnboarding(input *OnboardingInput) {
	input.BusinessName = strings.TrimSpace(input.BusinessName)
	input.Subdomain = strings.ToLower(strings.TrimSpace(input.Subdomain))
	input.ContactEmail = strings.ToLower(strings.TrimSpace(input.ContactEmail))
	input.ContactPhone = strings.TrimSpace(input.ContactPhone)
	input.LicenseNumber = strings.TrimSpace(input.LicenseNumber)
	input.CountryCode = strings.ToUpper(strings.TrimSpace(input.CountryCode))
	input.NFTTokenID = strings.TrimSpace(input.NFTTokenID)
	input.Admin.Name = strings.TrimSpace(input.Admin.Name)
	input.Admin.Email = strings.ToLower(strings.TrimSpace(input.Admin.Email))
}

func validateOnboarding(input OnboardingInput, requireNFT bool) error {
	if err := requireLength("business_name", input.BusinessName, 2, 100); err != nil {
		return err
	}
	if err := ValidateSubdomain(input.Subdomain); err != nil {
		return err
	}
	if err := requireEmail("contact_email", input.ContactEmail); err != nil {
		return err
	}
	if err := requireLength("license_number", input.LicenseNumber, 1, 100); err != nil {
		return err
	}
	if !countryPattern.MatchString(input.CountryCode) {
		return model.NewValidationError("country_code", "must be a two letter country code")
	}
	if requireNFT && input.NFTTokenID == "" {
		return model.NewValidationError("nft_token_id", "is required")
	}
	if err := requireLength("admin.name", input.Admin.Name, 1, 100); err != nil {
		return err
	}
	if err := requireEmail("admin.email", input.Admin.Email); err != nil {
		return err
	}
	if len(input.Admin.Password) < minPasswordLength {
		return model.NewValidationError("admin.password", "must be at least 8 characters")
	}
	return nil
}
