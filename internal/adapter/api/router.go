package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

type BuildInfo struct {
	Version string
	Env     string
}

func SetupRouter(app *fiber.App, handler *PromptHandler, info BuildInfo) {
	// Middleware
	app.Use(corsHeaders)
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	health := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": info.Version,
			"env":     info.Env,
		})
	}
	app.Get("/health", health)
	// The chat widget wakes a sleeping instance with GET /.
	app.Get("/", health)

	app.Options("/api/chat", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/api/chat", handler.HandlePrompt)
}

// corsHeaders stamps the same CORS headers on every response, including
// errors and requests without an Origin header.
func corsHeaders(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	return c.Next()
}
