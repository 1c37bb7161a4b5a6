package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/app-platform/internal/api/dto"
	"github.com/spec-kit/app-platform/internal/service"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

const hookSecretHeader = "X-Hook-Secret"

// HooksHandler receives inbound webhooks from the billing provider and the
// provisioning system.
type HooksHandler struct {
	apps   *service.AppService
	secret string
}

// NewHooksHandler constructs handler.
func NewHooksHandler(appService *service.AppService, sharedSecret string) *HooksHandler {
	return &HooksHandler{apps: appService, secret: sharedSecret}
}

// Billing handles POST /hooks/billing: a completed checkout becomes a new
// PENDING app.
func (h *HooksHandler) Billing(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		return err
	}

	var req dto.BillingHookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Event != "checkout.completed" {
		// other billing events are not acted on here
		return c.JSON(fiber.Map{"data": fiber.Map{"ignored": true}})
	}
	if req.UserID == "" || req.Template == "" {
		return fiber.NewError(http.StatusBadRequest, "userId and template required")
	}

	app, err := h.apps.CreateFromCheckout(c.Context(), req.UserID, req.Template, req.AppName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAppResponse(app)})
}

// Provision handles POST /hooks/provision: running/error signals from the
// orchestrator, keyed by release name.
func (h *HooksHandler) Provision(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		return err
	}

	var req dto.ProvisionHookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.ReleaseName == "" || req.Status == "" {
		return fiber.NewError(http.StatusBadRequest, "releaseName and status required")
	}

	app, err := h.apps.ApplyProvisionSignal(c.Context(), req.ReleaseName, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppResponse(app)})
}

func (h *HooksHandler) authorize(c *fiber.Ctx) error {
	if h.secret == "" {
		return nil
	}
	provided := c.Get(hookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		return apperrors.NewUnauthorized("invalid hook secret")
	}
	return nil
}
