package middleware

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/storysync/configs"
	"github.com/maheshrc27/storysync/internal/service"
	"github.com/maheshrc27/storysync/pkg/utils"
)

type AuthMiddleware struct {
	s   service.ApiKeyService
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config, service service.ApiKeyService) *AuthMiddleware {
	return &AuthMiddleware{s: service, cfg: cfg}
}

// AuthMiddleware accepts either an operator session cookie or an API
// key; keys exist for headless callers like external schedulers
// hitting the manual-trigger endpoint.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		apiKey := c.Query("api_key")

		if tokenString == "" && apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing keys or cookies",
			})
		}

		if apiKey != "" {
			operatorID, err := m.s.GetOperatorID(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			c.Locals("operator_id", fmt.Sprintf("%d", operatorID))
		} else if tokenString != "" {
			claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
			if err != nil {
				c.Cookie(&fiber.Cookie{
					Name:   m.cfg.CookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1, // Delete cookie
				})

				log.Printf("Token validation failed: %v", err)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid or expired token",
				})
			}

			c.Locals("operator_id", claims.OperatorID)
		}
		return c.Next()
	}
}
