package controller

import (
	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/pkg/serverutils"
	"ai-imagechat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IMessageController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	AddImage(ctx *fiber.Ctx) error
	RemoveImage(ctx *fiber.Ctx) error
}

type messageController struct {
	service service.IMessageService
}

func NewMessageController(service service.IMessageService) IMessageController {
	return &messageController{service: service}
}

func (c *messageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/message/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
	h.Post(":id/images/:imageId", c.AddImage)
	h.Delete(":id/images/:imageId", c.RemoveImage)
}

func messageIds(ctx *fiber.Ctx) (messageId, imageId uuid.UUID, err error) {
	messageId, err = uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid message id")
	}
	imageId, err = uuid.Parse(ctx.Params("imageId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid image id")
	}
	return messageId, imageId, nil
}

func (c *messageController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), currentUserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create message", res))
}

func (c *messageController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid message id")
	}

	res, err := c.service.Show(ctx.Context(), currentUserId(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get message", res))
}

func (c *messageController) Update(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid message id")
	}

	var req dto.UpdateMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Update(ctx.Context(), currentUserId(ctx), id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update message", res))
}

func (c *messageController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid message id")
	}

	if err := c.service.Delete(ctx.Context(), currentUserId(ctx), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete message", nil))
}

func (c *messageController) AddImage(ctx *fiber.Ctx) error {
	messageId, imageId, err := messageIds(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.AddImage(ctx.Context(), currentUserId(ctx), messageId, imageId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success attach image", res))
}

func (c *messageController) RemoveImage(ctx *fiber.Ctx) error {
	messageId, imageId, err := messageIds(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.RemoveImage(ctx.Context(), currentUserId(ctx), messageId, imageId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success detach image", res))
}
