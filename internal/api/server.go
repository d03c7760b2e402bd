package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/KTB-loadTest/Team9/internal/ratelimit"
	"github.com/KTB-loadTest/Team9/internal/service"
)

// NewServer wires the HTTP surface. Identity arrives in the
// X-User-Id header, injected by the gateway after authentication;
// this service never validates credentials itself.
func NewServer(chat *service.ChatService, loader *service.MessageLoader, limiter ratelimit.Limiter) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	h := NewHandlers(chat, loader)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")
	v1.Use(requireUser)
	v1.Use(rateLimitMiddleware(limiter))

	v1.Get("/rooms/:room_id/messages", h.loadPage)
	v1.Post("/rooms/:room_id/messages", h.recordMessage)
	v1.Post("/rooms/:room_id/messages/:msg_id/reactions", h.toggleReaction)
	v1.Post("/messages/read", h.recordRead)
	v1.Get("/files/:file_id/message", h.messageByFile)
	v1.Get("/archive/rooms/:room_id/messages", h.loadArchivePage)

	return app
}

func requireUser(c *fiber.Ctx) error {
	userID := c.Get("X-User-Id")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func rateLimitMiddleware(limiter ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		res := limiter.Check(userID)
		if !res.Allowed {
			c.Set("Retry-After", res.ResetAt.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
