package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/middleware"
	"github.com/opendatahq/issues-backend/internal/services"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
}

func NewModerationHandler(moderationService *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

func (h *ModerationHandler) ReportIssue(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	if err := h.moderationService.ReportIssue(c.UserContext(), userID, c.Params("dataset_id"), number); err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Issue reported"})
}

func (h *ModerationHandler) ClearIssueReports(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	if err := h.moderationService.ClearIssueReports(c.UserContext(), userID, c.Params("dataset_id"), number); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reports cleared"})
}

func (h *ModerationHandler) IssueReporters(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	reporters, err := h.moderationService.IssueReporters(c.UserContext(), userID, c.Params("dataset_id"), number)
	if err != nil {
		return serviceError(c, err)
	}
	if reporters == nil {
		reporters = []uuid.UUID{}
	}
	return c.JSON(fiber.Map{"abuse_reports": reporters})
}

func commentID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("comment_id"))
}

func (h *ModerationHandler) ReportComment(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	id, err := commentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid comment ID",
		})
	}

	if err := h.moderationService.ReportComment(c.UserContext(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Comment reported"})
}

func (h *ModerationHandler) ClearCommentReports(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	id, err := commentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid comment ID",
		})
	}

	if err := h.moderationService.ClearCommentReports(c.UserContext(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reports cleared"})
}
