package controller

import (
	"io"
	"mime/multipart"

	"ai-imagechat-be/internal/dto"
	"ai-imagechat-be/internal/pkg/serverutils"
	"ai-imagechat-be/internal/repository/contract"
	"ai-imagechat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IImageController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	CreateGenerated(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ListBySession(ctx *fiber.Ctx) error
	ListByUser(ctx *fiber.Ctx) error
	Sweep(ctx *fiber.Ctx) error
}

type imageController struct {
	service service.IImageService
}

func NewImageController(service service.IImageService) IImageController {
	return &imageController{service: service}
}

func (c *imageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/image/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/upload", c.Upload)
	h.Post("/generated", c.CreateGenerated)
	h.Get("", c.ListByUser)
	h.Get("session/:sessionId", c.ListBySession)
	h.Get(":id", c.Show)
	h.Post("/sweep", c.Sweep)
}

func readFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Upload accepts multipart form data: a session_id value and one or more
// files under the "files" field. Each file succeeds or fails on its own.
func (c *imageController) Upload(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.FormValue("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files provided")
	}

	files := make(map[string][]byte, len(headers))
	order := make([]string, 0, len(headers))
	for _, header := range headers {
		data, err := readFile(header)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to read "+header.Filename)
		}
		files[header.Filename] = data
		order = append(order, header.Filename)
	}

	res := c.service.UploadBatch(ctx.Context(), currentUserId(ctx), sessionId, files, order)
	return ctx.JSON(serverutils.SuccessResponse("Upload processed", res))
}

func (c *imageController) CreateGenerated(ctx *fiber.Ctx) error {
	var req dto.CreateGeneratedRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateGenerated(ctx.Context(), currentUserId(ctx), req.SessionId, req.Data, req.Params)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success record generated image", res))
}

func (c *imageController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid image id")
	}

	res, err := c.service.Show(ctx.Context(), currentUserId(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get image", res))
}

func (c *imageController) ListBySession(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.ListBySession(ctx.Context(), currentUserId(ctx), sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session images", res))
}

func (c *imageController) ListByUser(ctx *fiber.Ctx) error {
	res, err := c.service.ListByUser(ctx.Context(), currentUserId(ctx), ctx.Query("type"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get images", res))
}

func (c *imageController) Sweep(ctx *fiber.Ctx) error {
	// The HTTP endpoint only sweeps the caller's own images; the full sweep
	// belongs to the background worker and the maintenance job.
	userId := currentUserId(ctx)
	result := c.service.SweepUnreferenced(ctx.Context(), contract.ImageScope{UserId: &userId})
	return ctx.JSON(serverutils.SuccessResponse("Sweep completed", dto.SweepResponse{Result: *result}))
}
