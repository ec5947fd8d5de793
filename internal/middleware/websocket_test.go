package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"tabletop-backend/internal/auth"
)

func TestWebSocketAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("middleware-test-secret", time.Hour)
	token, err := jwtManager.GenerateToken("u1", "alice", "dm")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	foreign, err := auth.NewJWTManager("other-secret", time.Hour).GenerateToken("u1", "alice", "dm")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	tests := []struct {
		name    string
		upgrade bool
		query   string
		header  string
		status  int
		body    string
	}{
		{"plain request", false, "?token=" + token, "", fiber.StatusUpgradeRequired, "Upgrade Required"},
		{"no token", true, "", "", fiber.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"wrong key", true, "?token=" + foreign, "", fiber.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"query token", true, "?token=" + token, "", fiber.StatusOK, "g1 u1 alice dm"},
		{"header token", true, "", "Bearer " + token, fiber.StatusOK, "g1 u1 alice dm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ws/games/:id/sync", WebSocketAuth(jwtManager), func(c *fiber.Ctx) error {
				return c.SendString(c.Locals("gameID").(string) + " " +
					c.Locals("userId").(string) + " " +
					c.Locals("username").(string) + " " +
					c.Locals("role").(string))
			})

			req := httptest.NewRequest("GET", "/ws/games/g1/sync"+tt.query, nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status || string(raw) != tt.body {
				t.Fatalf("got %d %s, want %d %s", resp.StatusCode, raw, tt.status, tt.body)
			}
		})
	}
}
