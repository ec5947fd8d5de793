package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tabletop-backend/internal/database"
	"tabletop-backend/internal/presence"
)

// HealthHandler health endpoints
type HealthHandler struct {
	db       *gorm.DB
	presence presence.Tracker
}

// NewHealthHandler HealthHandler constructor. tracker may be nil.
func NewHealthHandler(db *gorm.DB, tracker presence.Tracker) *HealthHandler {
	return &HealthHandler{db: db, presence: tracker}
}

// ComponentCheck status of one dependency
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse GET /health body
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// Root GET /
func Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Tabletop API v1.0"})
}

// Check reports database and presence health. Only the database decides the status code.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	dbStart := time.Now()
	if err := database.Ping(h.db); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = ComponentCheck{
			Status: "unhealthy",
			Error:  "database ping failed",
		}
	} else {
		response.Checks["database"] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(dbStart).String(),
		}
	}

	if h.presence == nil {
		response.Checks["presence"] = ComponentCheck{Status: "not_configured"}
	} else {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		start := time.Now()
		if err := h.presence.Ping(ctx); err != nil {
			response.Checks["presence"] = ComponentCheck{
				Status: "degraded",
				Error:  "presence store unreachable",
			}
		} else {
			response.Checks["presence"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(start).String(),
			}
		}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(response)
}

// Liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness probe; ready once the database answers
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if err := database.Ping(h.db); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}
