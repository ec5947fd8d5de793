package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tabletop-backend/internal/auth"
	"tabletop-backend/internal/service"
)

// ErrorWriter renders service errors as {"error": msg} with a matching status.
type ErrorWriter struct {
	exposeDetails bool
	log           *zap.Logger
}

// NewErrorWriter ErrorWriter constructor. exposeDetails adds the underlying
// error text to 500 responses.
func NewErrorWriter(exposeDetails bool, log *zap.Logger) *ErrorWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorWriter{exposeDetails: exposeDetails, log: log}
}

// Status maps an error to an HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrGameFull):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// Write sends the error response.
func (w *ErrorWriter) Write(c *fiber.Ctx, err error) error {
	status := Status(err)
	if status != fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	w.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	body := fiber.Map{"error": "Internal server error"}
	if w.exposeDetails {
		body["details"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

// callerFrom builds the service caller from the verified token.
func callerFrom(c *fiber.Ctx) (service.Caller, error) {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return service.Caller{}, service.ErrUnauthorized
	}
	return service.Caller{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
