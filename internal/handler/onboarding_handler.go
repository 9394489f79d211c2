package handler

import (
	"context"
	"net/http"

	"budstack-service/internal/model"
	"budstack-service/internal/service"
	"budstack-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Onboarder accepts dispensary applications
type Onboarder interface {
	Availability(ctx context.Context, subdomain string) (*service.Availability, error)
	Apply(ctx context.Context, input service.OnboardingInput) (*model.Tenant, *model.User, error)
}

// TemplateLister lists the template catalogue
type TemplateLister interface {
	List(ctx context.Context, activeOnly bool) ([]model.Template, error)
}

type OnboardingHandler struct {
	onboarding Onboarder
	templates  TemplateLister
}

func NewOnboardingHandler(onboarding Onboarder, templates TemplateLister) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, templates: templates}
}

// SubdomainAvailability answers GET /api/onboarding/subdomain-availability?subdomain=
func (h *OnboardingHandler) SubdomainAvailability(c echo.Context) error {
	availability, err := h.onboarding.Availability(c.Request().Context(), c.QueryParam("subdomain"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, availability)
}

// Templates lists the active templates a new store can start with
func (h *OnboardingHandler) Templates(c echo.Context) error {
	templates, err := h.templates.List(c.Request().Context(), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": templates})
}

// Apply submits the onboarding wizard
func (h *OnboardingHandler) Apply(c echo.Context) error {
	log := logger.FromEcho(c)

	var req service.OnboardingInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	tenant, admin, err := h.onboarding.Apply(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Store application received",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain))

	return c.JSON(http.StatusCreated, echo.Map{
		"tenant": tenant,
		"user":   admin,
	})
}
