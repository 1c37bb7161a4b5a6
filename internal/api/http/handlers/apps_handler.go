package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/app-platform/internal/api/dto"
	"github.com/spec-kit/app-platform/internal/auth"
	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/service"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

// AppsHandler exposes app lifecycle endpoints.
type AppsHandler struct {
	apps     *service.AppService
	accounts *service.AccountService
}

// NewAppsHandler constructs handler.
func NewAppsHandler(appService *service.AppService, accountService *service.AccountService) *AppsHandler {
	return &AppsHandler{apps: appService, accounts: accountService}
}

// List handles GET /apps.
func (h *AppsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	apps, err := h.apps.ListForUser(c.Context(), principal.User)
	if err != nil {
		return err
	}

	items := make([]dto.AppResponse, 0, len(apps))
	for i := range apps {
		items = append(items, dto.NewAppResponse(&apps[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /apps/:id.
func (h *AppsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	app, err := h.apps.GetForUser(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppResponse(app)})
}

// UpdateSettings handles PUT /apps/:id/settings.
func (h *AppsHandler) UpdateSettings(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.AppSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	app, err := h.apps.UpdateSettings(c.Context(), principal.User, c.Params("id"), service.AppSettingsInput{
		Name:   req.Name,
		Domain: req.Domain,
		Env:    req.Env,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppResponse(app)})
}

// VerifyDomain handles POST /apps/:id/verify-domain.
func (h *AppsHandler) VerifyDomain(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.apps.VerifyDomain(c.Context(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"verified": true}})
}

// Uninstall handles DELETE /apps/:id.
func (h *AppsHandler) Uninstall(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	app, err := h.apps.Uninstall(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppResponse(app)})
}

// Checkout handles POST /apps/checkout.
func (h *AppsHandler) Checkout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Template == "" {
		return fiber.NewError(http.StatusBadRequest, "template required")
	}

	url, err := h.accounts.CheckoutURL(c.Context(), principal.User, req.Template, req.AppName, req.Locale)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"url": url}})
}

// ListByState handles GET /admin/apps. Admin only; surfaces fleet state for
// operations (stuck PENDING installs, apps in ERROR).
func (h *AppsHandler) ListByState(c *fiber.Ctx) error {
	state := domain.AppState(c.Query("state", string(domain.AppStateError)))

	apps, err := h.apps.ListByState(c.Context(), state)
	if err != nil {
		return err
	}

	items := make([]dto.AppResponse, 0, len(apps))
	for i := range apps {
		items = append(items, dto.NewAppResponse(&apps[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Portal handles GET /billing/portal.
func (h *AppsHandler) Portal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	url, err := h.accounts.PortalURL(c.Context(), principal.User, c.Query("locale"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"url": url}})
}
