package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func GetOperatorID(c *fiber.Ctx) int64 {
	operatorID, _ := strconv.Atoi(c.Locals("operator_id").(string))
	return int64(operatorID)
}
