package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/app-platform/internal/repository"
)

// TemplatesHandler serves the installable template catalog.
type TemplatesHandler struct {
	templates repository.TemplateRepository
}

// NewTemplatesHandler constructs handler.
func NewTemplatesHandler(templates repository.TemplateRepository) *TemplatesHandler {
	return &TemplatesHandler{templates: templates}
}

// List handles GET /templates.
func (h *TemplatesHandler) List(c *fiber.Ctx) error {
	items, err := h.templates.ListActive(c.Context())
	if err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(items))
	for _, tpl := range items {
		data = append(data, fiber.Map{
			"name":        tpl.Name,
			"title":       tpl.Title,
			"description": tpl.Description,
			"price_cents": tpl.PriceCents,
		})
	}
	return c.JSON(fiber.Map{"data": data})
}
