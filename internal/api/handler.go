package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/KTB-loadTest/Team9/internal/models"
	"github.com/KTB-loadTest/Team9/internal/service"
)

type Handlers struct {
	chat   *service.ChatService
	loader *service.MessageLoader
}

func NewHandlers(chat *service.ChatService, loader *service.MessageLoader) *Handlers {
	return &Handlers{chat: chat, loader: loader}
}

func pageParams(c *fiber.Ctx) (limit int, before time.Time) {
	limit = c.QueryInt("limit", 0)
	before = time.Now().UTC()
	if raw := c.Query("before"); raw != "" {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			before = time.UnixMilli(millis).UTC()
		}
	}
	return limit, before
}

func (h *Handlers) loadPage(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	userID := c.Locals("user_id").(string)
	limit, before := pageParams(c)

	resp, err := h.chat.LoadPage(c.Context(), roomID, limit, before, userID)
	if err != nil {
		// transient hot-path failure degrades to an empty page; chat
		// clients retry on scroll
		return c.JSON(&models.FetchMessagesResponse{
			Messages: []*models.MessageResponse{},
			HasMore:  false,
		})
	}
	return c.JSON(resp)
}

func (h *Handlers) loadArchivePage(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	userID := c.Locals("user_id").(string)
	limit, before := pageParams(c)
	return c.JSON(h.loader.LoadPage(c.Context(), roomID, limit, before, userID))
}

func (h *Handlers) recordMessage(c *fiber.Ctx) error {
	var req struct {
		Content  string         `json:"content"`
		Type     string         `json:"type"`
		FileID   string         `json:"fileId"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg := &models.Message{
		RoomID:   c.Params("room_id"),
		SenderID: c.Locals("user_id").(string),
		Content:  req.Content,
		Type:     req.Type,
		FileID:   req.FileID,
		Metadata: req.Metadata,
	}
	saved, err := h.chat.RecordMessage(c.Context(), msg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *Handlers) toggleReaction(c *fiber.Ctx) error {
	var req struct {
		Reaction string `json:"reaction"`
		Type     string `json:"type"` // add | remove
	}
	if err := c.BodyParser(&req); err != nil || req.Reaction == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	msg, err := h.chat.ToggleReaction(
		c.Context(),
		c.Params("room_id"),
		c.Params("msg_id"),
		req.Reaction,
		req.Type,
		c.Locals("user_id").(string),
	)
	if errors.Is(err, service.ErrBadDirection) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if errors.Is(err, service.ErrMessageNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"messageId": msg.ID, "reactions": msg.Reactions})
}

func (h *Handlers) recordRead(c *fiber.Ctx) error {
	var req struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.MessageIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "messageIds required"})
	}
	ok := h.chat.RecordRead(c.Context(), req.MessageIDs, c.Locals("user_id").(string))
	return c.JSON(fiber.Map{"success": ok})
}

func (h *Handlers) messageByFile(c *fiber.Ctx) error {
	msg, err := h.chat.FindMessageByFileID(c.Context(), c.Params("file_id"))
	if errors.Is(err, service.ErrMessageNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file is not linked to a message"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(msg)
}
