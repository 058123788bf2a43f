package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/services"
)

// serviceError maps service-layer failures onto HTTP responses.
func serviceError(c *fiber.Ctx, err error) error {
	var validation *services.ValidationError
	switch {
	case errors.Is(err, services.ErrIssueNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrDatasetNotFound),
		errors.Is(err, services.ErrOrgNotFound),
		errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, directory.ErrDatasetNotFound),
		errors.Is(err, directory.ErrOrgNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrNumberContention):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
}
