package serverutils

import (
	"errors"

	"ai-assistant-be/pkg/chunker"
	"ai-assistant-be/pkg/embedding"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses. Internal
// detail is never echoed back for unexpected errors.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse(validationErr.Error()))
		}

		var extractErr *chunker.ExtractionError
		if errors.As(err, &extractErr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(extractErr.Error()))
		}

		var providerErr *embedding.ProviderError
		if errors.As(err, &providerErr) && providerErr.Kind == embedding.KindInvalidInput {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse("the message could not be processed"))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("internal server error"))
	}
}
