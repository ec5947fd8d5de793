package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"tabletop-backend/internal/service"
)

// AuthHandler account endpoints
type AuthHandler struct {
	svc  *service.AuthService
	errs *ErrorWriter
}

// NewAuthHandler AuthHandler constructor
func NewAuthHandler(svc *service.AuthService, errs *ErrorWriter) *AuthHandler {
	return &AuthHandler{svc: svc, errs: errs}
}

// LoginRequest login body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RoleRequest role selection body
type RoleRequest struct {
	Role string `json:"role"`
}

// GoogleLoginRequest Google sign-in body
type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

// Register POST /auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	sess, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(sess)
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	sess, err := h.svc.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(sess)
}

// GoogleLogin POST /auth/google
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	sess, err := h.svc.GoogleLogin(ctx, req.IDToken)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(sess)
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	user, err := h.svc.Me(c.UserContext(), caller)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// SetRole PUT /auth/role
func (h *AuthHandler) SetRole(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	sess, err := h.svc.SetRole(c.UserContext(), caller, req.Role)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(sess)
}
