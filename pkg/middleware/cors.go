package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORSHeaders are attached to every response, errors included.
var CORSHeaders = map[string]string{
	fiber.HeaderAccessControlAllowOrigin:  "*",
	fiber.HeaderAccessControlAllowMethods: "POST, OPTIONS",
	fiber.HeaderAccessControlAllowHeaders: "Content-Type",
}

// CORS sets CORSHeaders and answers preflight requests with 204 and no body.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		for name, value := range CORSHeaders {
			c.Set(name, value)
		}

		if c.Method() == fiber.MethodOptions {
			c.Status(fiber.StatusNoContent)
			return nil
		}

		return c.Next()
	}
}
