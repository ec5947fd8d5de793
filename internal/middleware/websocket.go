package middleware

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"tabletop-backend/internal/auth"
)

// WebSocketAuth authenticates a websocket upgrade. Browsers cannot set
// headers on the handshake, so the token may also come from ?token=.
// On success the stream finds userId, username, role and gameID in Locals.
func WebSocketAuth(jwtManager *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		auth.SetClaims(c, claims)
		c.Locals("userId", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)
		// Params alias the pooled request buffer, which is reused once the
		// upgrade returns; the stream outlives it.
		c.Locals("gameID", utils.CopyString(c.Params("id")))
		return c.Next()
	}
}
