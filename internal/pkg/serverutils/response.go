package serverutils

import (
	"errors"

	"ai-imagechat-be/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{Message: message, Data: data}
}

func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

// ErrorHandlerMiddleware translates the error taxonomy into status codes:
// NotFound -> 404, Forbidden -> 403, ValidationFailed -> 400, everything
// else (store failures included) -> 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var ae *apperror.AppError
		if errors.As(err, &ae) {
			status := fiber.StatusInternalServerError
			switch ae.Kind {
			case apperror.KindNotFound:
				status = fiber.StatusNotFound
			case apperror.KindForbidden:
				status = fiber.StatusForbidden
			case apperror.KindValidation:
				status = fiber.StatusBadRequest
			case apperror.KindStoreUnavailable:
				status = fiber.StatusInternalServerError
			}
			return ctx.Status(status).JSON(fiber.Map{"message": ae.Message})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}
