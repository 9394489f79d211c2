package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"budstack-service/internal/model"
	"budstack-service/pkg/cache"
	"budstack-service/pkg/github"
	"budstack-service/prometheus"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

const (
	BuiltinTemplateSlug = "classic"

	templateCachePrefix = "template:resolved:"

	SourceTenant          = "tenant"
	SourcePlatformDefault = "platform_default"
	SourceBuiltin         = "builtin"
)

// RequiredPages must be rendered by every storefront template
var RequiredPages = []string{"home", "products", "product_detail", "cart", "checkout", "about", "contact"}

// ThemeTokens are the theme settings a template defines and a tenant may override
var ThemeTokens = []string{
	"primary_color",
	"secondary_color",
	"accent_color",
	"background_color",
	"text_color",
	"font_heading",
	"font_body",
	"border_radius",
	"logo_url",
	"hero_image",
}

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// BuiltinTemplate is the fallback storefront used when nothing else resolves
func BuiltinTemplate() model.Template {
	return model.Template{
		Slug:        BuiltinTemplateSlug,
		Name:        "Classic",
		Description: "Clean catalogue-first storefront",
		Author:      "BudStack",
		Version:     "1.0.0",
		IsActive:    true,
		Pages: datatypes.NewJSONType(map[string]string{
			"home":           "classic/HomePage",
			"products":       "classic/ProductGrid",
			"product_detail": "classic/ProductDetail",
			"cart":           "classic/CartPage",
			"checkout":       "classic/CheckoutPage",
			"about":          "classic/AboutPage",
			"contact":        "classic/ContactPage",
		}),
		Defaults: datatypes.NewJSONType(map[string]string{
			"primary_color":    "#2f855a",
			"secondary_color":  "#1a202c",
			"accent_color":     "#d69e2e",
			"background_color": "#ffffff",
			"text_color":       "#1a202c",
			"font_heading":     "Poppins, sans-serif",
			"font_body":        "Inter, sans-serif",
			"border_radius":    "8px",
			"logo_url":         "",
			"hero_image":       "",
		}),
	}
}

// TemplateFetcher downloads template manifests from a git host
type TemplateFetcher interface {
	Fetch(ctx context.Context, repo, ref, path string) ([]byte, error)
}

// TemplateInput creates a template
type TemplateInput struct {
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Author      string            `json:"author"`
	Version     string            `json:"version"`
	PreviewURL  string            `json:"preview_url"`
	Pages       map[string]string `json:"pages"`
	Defaults    map[string]string `json:"defaults"`
	IsActive    *bool             `json:"is_active"`
}

// TemplateUpdate patches a template; nil fields are left unchanged
type TemplateUpdate struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	PreviewURL  *string           `json:"preview_url"`
	IsActive    *bool             `json:"is_active"`
	Pages       map[string]string `json:"pages"`
	Defaults    map[string]string `json:"defaults"`
}

// ImportRequest points at a template manifest in a GitHub repository
type ImportRequest struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref"`
	Path string `json:"path"`
}

type templateManifest struct {
	Slug        string            `yaml:"slug"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Author      string            `yaml:"author"`
	Version     string            `yaml:"version"`
	PreviewURL  string            `yaml:"preview_url"`
	Pages       map[string]string `yaml:"pages"`
	Defaults    map[string]string `yaml:"defaults"`
}

// TemplateService resolves storefront templates and manages the catalogue
type TemplateService struct {
	templates TemplateStore
	settings  SettingsStore
	tenants   TenantStore
	fetcher   TemplateFetcher
	cache     cache.KV
	ttl       time.Duration
	logger    *zap.Logger
}

func NewTemplateService(templates TemplateStore, settings SettingsStore, tenants TenantStore,
	fetcher TemplateFetcher, kv cache.KV, ttl time.Duration, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		templates: templates,
		settings:  settings,
		tenants:   tenants,
		fetcher:   fetcher,
		cache:     kv,
		ttl:       ttl,
		logger:    logger,
	}
}

// Resolve picks the tenant's template, else the platform default, else the built-in one, and
// merges theme tokens: built-in defaults < template defaults < tenant overrides.
func (s *TemplateService) Resolve(ctx context.Context, tenant *model.Tenant) (*model.ResolvedTemplate, error) {
	key := templateCacheKey(tenant.ID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var resolved model.ResolvedTemplate
		if err := json.Unmarshal([]byte(raw), &resolved); err == nil {
			prometheus.RecordTemplateResolution("cache")
			return &resolved, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Template cache read failed", zap.String("key", key), zap.Error(err))
	}

	tpl, source, err := s.choose(ctx, tenant)
	if err != nil {
		return nil, err
	}
	resolved := ResolveTemplate(tpl, source, tenant.Overrides())
	prometheus.RecordTemplateResolution(source)

	if raw, err := json.Marshal(resolved); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.logger.Warn("Template cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resolved, nil
}

func (s *TemplateService) choose(ctx context.Context, tenant *model.Tenant) (*model.Template, string, error) {
	if tenant.TemplateID != nil {
		tpl, err := s.templates.GetByID(ctx, *tenant.TemplateID)
		switch {
		case err == nil && tpl.IsActive:
			return tpl, SourceTenant, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return nil, "", err
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, "", err
	}
	if settings.DefaultTemplateID != nil {
		tpl, err := s.templates.GetByID(ctx, *settings.DefaultTemplateID)
		switch {
		case err == nil && tpl.IsActive:
			return tpl, SourcePlatformDefault, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return nil, "", err
		}
	}

	builtin := BuiltinTemplate()
	return &builtin, SourceBuiltin, nil
}

// ResolveTemplate merges tpl with the built-in fallback and the tenant overrides
func ResolveTemplate(tpl *model.Template, source string, overrides map[string]string) *model.ResolvedTemplate {
	builtin := BuiltinTemplate()

	pages := make(map[string]string)
	for page, component := range builtin.Pages.Data() {
		pages[page] = component
	}
	for page, component := range tpl.Pages.Data() {
		if component != "" {
			pages[page] = component
		}
	}

	theme := make(map[string]string)
	for token, value := range builtin.Defaults.Data() {
		theme[token] = value
	}
	for token, value := range tpl.Defaults.Data() {
		if isThemeToken(token) {
			theme[token] = value
		}
	}
	for token, value := range overrides {
		if isThemeToken(token) && value != "" {
			theme[token] = value
		}
	}

	return &model.ResolvedTemplate{
		TemplateID:   tpl.ID,
		TemplateSlug: tpl.Slug,
		Source:       source,
		Pages:        pages,
		Theme:        theme,
		CSSVariables: CSSVariables(theme),
	}
}

// CSSVariables renders theme tokens as sorted custom property declarations, skipping empty values
func CSSVariables(theme map[string]string) string {
	tokens := make([]string, 0, len(theme))
	for token := range theme {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	decls := make([]string, 0, len(tokens))
	for _, token := range tokens {
		value := theme[token]
		if value == "" {
			continue
		}
		decls = append(decls, "--"+strings.ReplaceAll(token, "_", "-")+": "+value+";")
	}
	return strings.Join(decls, " ")
}

// ValidateOverrides rejects unknown theme tokens and malformed colors
func ValidateOverrides(overrides map[string]string) error {
	for token, value := range overrides {
		if err := validateThemeValue(token, value); err != nil {
			return err
		}
	}
	return nil
}

func validateThemeValue(token, value string) error {
	if !isThemeToken(token) {
		return model.NewValidationError(token, "is not a theme setting")
	}
	if value == "" {
		return nil
	}
	if strings.HasSuffix(token, "_color") && !validColor(value) {
		return model.NewValidationError(token, "must be a #rgb or #rrggbb color")
	}
	if len(value) > 500 {
		return model.NewValidationError(token, "is too long")
	}
	return nil
}

func isThemeToken(token string) bool {
	for _, t := range ThemeTokens {
		if t == token {
			return true
		}
	}
	return false
}

// ValidateTemplate checks slug, name, pages and defaults of a catalogue template
func ValidateTemplate(tpl *model.Template) error {
	if !slugPattern.MatchString(tpl.Slug) || len(tpl.Slug) > 64 {
		return model.NewValidationError("slug", "must be lowercase words joined by hyphens")
	}
	if err := requireLength("name", tpl.Name, 1, 100); err != nil {
		return err
	}
	pages := tpl.Pages.Data()
	for _, page := range RequiredPages {
		if pages[page] == "" {
			return model.NewValidationError("pages", "missing component for page "+page)
		}
	}
	for token, value := range tpl.Defaults.Data() {
		if err := validateThemeValue(token, value); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops the cached resolution of the given tenants
func (s *TemplateService) Invalidate(ctx context.Context, tenantIDs ...uint) {
	if len(tenantIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		keys = append(keys, templateCacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Failed to invalidate template cache", zap.Int("tenants", len(keys)), zap.Error(err))
	}
}

// invalidateTemplate drops resolutions that may depend on the template: tenants that picked it
// and, when it is the platform default, tenants without a template of their own
func (s *TemplateService) invalidateTemplate(ctx context.Context, templateID uint) {
	ids, err := s.tenants.IDsUsingTemplate(ctx, templateID)
	if err != nil {
		s.logger.Warn("Failed to list tenants using template", zap.Uint("template_id", templateID), zap.Error(err))
	}
	if settings, err := s.settings.Get(ctx); err == nil && settings.DefaultTemplateID != nil && *settings.DefaultTemplateID == templateID {
		if more, err := s.tenants.IDsUsingTemplate(ctx, 0); err == nil {
			ids = append(ids, more...)
		}
	}
	s.Invalidate(ctx, ids...)
}

// InvalidateDefault drops resolutions of tenants that fall back to the platform default
func (s *TemplateService) InvalidateDefault(ctx context.Context) {
	ids, err := s.tenants.IDsUsingTemplate(ctx, 0)
	if err != nil {
		s.logger.Warn("Failed to list tenants without template", zap.Error(err))
		return
	}
	s.Invalidate(ctx, ids...)
}

func (s *TemplateService) List(ctx context.Context, activeOnly bool) ([]model.Template, error) {
	return s.templates.List(ctx, activeOnly)
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*model.Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *TemplateService) Create(ctx context.Context, input TemplateInput) (*model.Template, error) {
	tpl := &model.Template{
		Slug:        strings.TrimSpace(input.Slug),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Author:      input.Author,
		Version:     input.Version,
		PreviewURL:  input.PreviewURL,
		Pages:       datatypes.NewJSONType(input.Pages),
		Defaults:    datatypes.NewJSONType(input.Defaults),
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	if err := ValidateTemplate(tpl); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template %s: %w", tpl.Slug, err)
	}
	s.logger.Info("Template created", zap.Uint("template_id", tpl.ID), zap.String("slug", tpl.Slug))
	return tpl, nil
}

func (s *TemplateService) Update(ctx context.Context, id uint, update TemplateUpdate) (*model.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		tpl.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		tpl.Description = *update.Description
	}
	if update.PreviewURL != nil {
		tpl.PreviewURL = *update.PreviewURL
	}
	if update.IsActive != nil {
		tpl.IsActive = *update.IsActive
	}
	if update.Pages != nil {
		tpl.Pages = datatypes.NewJSONType(update.Pages)
	}
	if update.Defaults != nil {
		tpl.Defaults = datatypes.NewJSONType(update.Defaults)
	}
	if err := ValidateTemplate(tpl); err != nil {
		return nil, err
	}
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, fmt.Errorf("update template %d: %w", id, err)
	}
	s.invalidateTemplate(ctx, tpl.ID)
	return tpl, nil
}

// Delete removes a template nobody depends on
func (s *TemplateService) Delete(ctx context.Context, id uint) error {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tpl.Slug == BuiltinTemplateSlug {
		return fmt.Errorf("%w: the built-in template cannot be deleted", model.ErrConflict)
	}
	inUse, err := s.tenants.CountUsingTemplate(ctx, id)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("%w: template is used by %d stores", model.ErrConflict, inUse)
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if settings.DefaultTemplateID != nil && *settings.DefaultTemplateID == id {
		return fmt.Errorf("%w: template is the platform default", model.ErrConflict)
	}
	return s.templates.Delete(ctx, id)
}

// Import fetches a YAML manifest from GitHub and upserts the template by slug
func (s *TemplateService) Import(ctx context.Context, req ImportRequest) (*model.Template, error) {
	req.Repo = strings.TrimSpace(req.Repo)
	if !repoPattern.MatchString(req.Repo) {
		return nil, model.NewValidationError("repo", "must be owner/name")
	}
	if req.Ref == "" {
		req.Ref = "main"
	}
	if req.Path == "" {
		req.Path = "template.yaml"
	}
	if strings.Contains(req.Path, "..") || strings.Contains(req.Ref, "..") {
		return nil, model.NewValidationError("path", "must not contain ..")
	}

	body, err := s.fetcher.Fetch(ctx, req.Repo, req.Ref, req.Path)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, fmt.Errorf("template manifest %s: %w", req.Path, model.ErrNotFound)
		}
		s.logger.Error("Template import fetch failed", zap.String("repo", req.Repo), zap.Error(err))
		return nil, fmt.Errorf("fetch template manifest: %w", model.ErrUnavailable)
	}

	var manifest templateManifest
	if err := yaml.Unmarshal(body, &manifest); err != nil {
		return nil, model.NewValidationError("manifest", "invalid YAML: "+err.Error())
	}

	tpl := &model.Template{
		Slug:        strings.TrimSpace(manifest.Slug),
		Name:        strings.TrimSpace(manifest.Name),
		Description: manifest.Description,
		Author:      manifest.Author,
		Version:     manifest.Version,
		SourceURL:   "https://github.com/" + req.Repo + "/blob/" + req.Ref + "/" + strings.TrimLeft(req.Path, "/"),
		PreviewURL:  manifest.PreviewURL,
		Pages:       datatypes.NewJSONType(manifest.Pages),
		Defaults:    datatypes.NewJSONType(manifest.Defaults),
		IsActive:    true,
	}
	if tpl.Version == "" {
		tpl.Version = req.Ref
	}
	if err := ValidateTemplate(tpl); err != nil {
		return nil, err
	}
	if tpl.Slug == BuiltinTemplateSlug {
		return nil, model.NewValidationError("slug", "is reserved for the built-in template")
	}
	if err := s.templates.Upsert(ctx, tpl); err != nil {
		return nil, fmt.Errorf("store imported template %s: %w", tpl.Slug, err)
	}
	s.invalidateTemplate(ctx, tpl.ID)

	s.logger.Info("Template imported",
		zap.String("repo", req.Repo),
		zap.String("ref", req.Ref),
		zap.String("slug", tpl.Slug),
		zap.Uint("template_id", tpl.ID))
	return tpl, nil
}

func templateCacheKey(tenantID uint) string {
	return templateCachePrefix + strconv.FormatUint(uint64(tenantID), 10)
}
