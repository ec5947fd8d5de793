package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"tabletop-backend/internal/model"
	"tabletop-backend/internal/service"
)

// GameHandler game, board, chat, dice and action endpoints
type GameHandler struct {
	svc  *service.GameService
	errs *ErrorWriter
}

// NewGameHandler GameHandler constructor
func NewGameHandler(svc *service.GameService, errs *ErrorWriter) *GameHandler {
	return &GameHandler{svc: svc, errs: errs}
}

// TokensRequest PUT /games/:id/tokens body
type TokensRequest struct {
	Tokens []model.Token `json:"tokens"`
}

// ObstaclesRequest PUT /games/:id/obstacles body
type ObstaclesRequest struct {
	Obstacles []model.Obstacle `json:"obstacles"`
}

// FogRequest PUT /games/:id/fog body
type FogRequest struct {
	Fog []string `json:"fog"`
}

// ShareRequest PUT /games/:id/share body; a null shareScreen clears it
type ShareRequest struct {
	ShareScreen *model.ShareScreen `json:"shareScreen"`
}

// UploadRequest POST /games/:id/share/upload body
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// StatusRequest PUT /games/:id/status body
type StatusRequest struct {
	Status string `json:"status"`
}

// MessageRequest POST /games/:id/messages body
type MessageRequest struct {
	Content string `json:"content"`
}

// ActionRequest POST /games/:id/actions body
type ActionRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var success = fiber.Map{"success": true}

// List GET /games
func (h *GameHandler) List(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	games, err := h.svc.ListGames(c.UserContext(), caller)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"games": games})
}

// Create POST /games
func (h *GameHandler) Create(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req service.CreateGameInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	game, err := h.svc.CreateGame(c.UserContext(), caller, req)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"game": game})
}

// Get GET /games/:id
func (h *GameHandler) Get(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	game, err := h.svc.GetGame(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"game": game})
}

// Join POST /games/:id/join
func (h *GameHandler) Join(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	game, err := h.svc.Join(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"game": game})
}

// Leave POST /games/:id/leave
func (h *GameHandler) Leave(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	if err := h.svc.Leave(c.UserContext(), caller, c.Params("id")); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// SetStatus PUT /games/:id/status
func (h *GameHandler) SetStatus(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	game, err := h.svc.SetStatus(c.UserContext(), caller, c.Params("id"), req.Status)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"game": game})
}

// Delete DELETE /games/:id
func (h *GameHandler) Delete(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	if err := h.svc.DeleteGame(c.UserContext(), caller, c.Params("id")); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// UpdateTokens PUT /games/:id/tokens
func (h *GameHandler) UpdateTokens(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req TokensRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.svc.UpdateTokens(c.UserContext(), caller, c.Params("id"), req.Tokens); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// UpdateObstacles PUT /games/:id/obstacles
func (h *GameHandler) UpdateObstacles(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req ObstaclesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.svc.UpdateObstacles(c.UserContext(), caller, c.Params("id"), req.Obstacles); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// UpdateFog PUT /games/:id/fog
func (h *GameHandler) UpdateFog(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req FogRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.svc.UpdateFog(c.UserContext(), caller, c.Params("id"), req.Fog); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// UpdateShare PUT /games/:id/share
func (h *GameHandler) UpdateShare(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req ShareRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.svc.UpdateShareScreen(c.UserContext(), caller, c.Params("id"), req.ShareScreen); err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(success)
}

// RequestUpload POST /games/:id/share/upload
func (h *GameHandler) RequestUpload(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req UploadRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	up, err := h.svc.RequestShareUpload(c.UserContext(), caller, c.Params("id"), req.FileName, req.ContentType)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(up)
}

// Sync GET /games/:id/sync
func (h *GameHandler) Sync(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	snap, err := h.svc.Sync(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(snap)
}

// ListMessages GET /games/:id/messages
func (h *GameHandler) ListMessages(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	messages, err := h.svc.ListMessages(c.UserContext(), caller, c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// PostMessage POST /games/:id/messages
func (h *GameHandler) PostMessage(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	msg, err := h.svc.PostMessage(c.UserContext(), caller, c.Params("id"), req.Content)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// RollDice POST /games/:id/dice
func (h *GameHandler) RollDice(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req service.RollInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	roll, err := h.svc.RollDice(c.UserContext(), caller, c.Params("id"), req)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"roll": roll})
}

// ListActions GET /games/:id/actions
func (h *GameHandler) ListActions(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	actions, err := h.svc.ListActions(c.UserContext(), caller, c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"actions": actions})
}

// LogAction POST /games/:id/actions
func (h *GameHandler) LogAction(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return h.errs.Write(c, err)
	}

	var req ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	action, err := h.svc.LogAction(c.UserContext(), caller, c.Params("id"), req.Type, req.Data)
	if err != nil {
		return h.errs.Write(c, err)
	}
	return c.JSON(fiber.Map{"action": action})
}
