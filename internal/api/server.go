package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/elliot-conan/mindwellness-chat/internal/auth"
	"github.com/elliot-conan/mindwellness-chat/internal/ws"
)

// NewServer assembles the fiber app: JWT-gated /v1 REST surface plus
// the websocket upgrade for the realtime room view.
func NewServer(h *Handlers, wsrv *ws.Server, jv *auth.JWTValidator) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	requireAuth := func(c *fiber.Ctx) error {
		token, err := auth.ParseBearer(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		profileID, err := jv.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("profile_id", profileID)
		return c.Next()
	}

	v1 := app.Group("/v1", requireAuth)

	v1.Get("/profiles/me", h.getMyProfile)
	v1.Put("/profiles/me", h.updateMyProfile)
	v1.Get("/profiles/:id", h.getProfile)

	v1.Get("/rooms", h.listRooms)
	v1.Get("/rooms/public", h.listPublicRooms)
	v1.Post("/rooms/group", h.createGroupRoom)
	v1.Post("/rooms/request", h.requestOneToOne)
	v1.Post("/rooms/:room_id/request", h.handleRequest)
	v1.Post("/rooms/:room_id/join", h.joinPublicRoom)
	v1.Post("/rooms/:room_id/invite", h.inviteToRoom)
	v1.Get("/rooms/:room_id/presence", h.roomPresence)

	v1.Get("/rooms/:room_id/messages", h.listMessages)
	v1.Post("/messages/:msg_id/delivered", h.markDelivered)
	v1.Post("/messages/:msg_id/read", h.markRead)

	v1.Get("/notifications", h.listNotifications)
	v1.Get("/notifications/unread-count", h.unreadCount)
	v1.Post("/notifications/:id/read", h.markNotificationRead)
	v1.Post("/notifications/read-all", h.markAllNotificationsRead)

	v1.Post("/messages/:msg_id/reactions", h.toggleReaction)
	v1.Get("/messages/:msg_id/reactions", h.listReactions)
	v1.Get("/reactions/common", h.commonReactions)

	v1.Get("/crisis/resources", h.crisisResources)

	// Websocket upgrade carries the token in the query string since
	// browsers cannot set headers on websocket connects.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		profileID, err := jv.Validate(c.Query("token"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("profile_id", profileID)
		return c.Next()
	})
	app.Get("/ws/rooms/:room_id", websocket.New(wsrv.HandleRoom))

	return app
}
