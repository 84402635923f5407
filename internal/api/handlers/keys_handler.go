package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/storysync/internal/service"
)

type ApiKeyHandler struct {
	s service.ApiKeyService
}

func NewApiKeyHandler(service service.ApiKeyService) *ApiKeyHandler {
	return &ApiKeyHandler{s: service}
}

func (h *ApiKeyHandler) CreateApiKey(c *fiber.Ctx) error {
	operatorID := GetOperatorID(c)

	err := h.s.Create(c.Context(), operatorID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to create API key",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ApiKeyHandler) ListKeys(c *fiber.Ctx) error {
	operatorID := GetOperatorID(c)

	keys, err := h.s.List(c.Context(), operatorID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list API keys",
		})
	}

	return c.Status(fiber.StatusOK).JSON(keys)
}

func (h *ApiKeyHandler) RemoveAPIKey(c *fiber.Ctx) error {
	keyID := c.QueryInt("id", 0)

	err := h.s.RemoveAPIKey(c.Context(), int64(keyID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove API key",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
