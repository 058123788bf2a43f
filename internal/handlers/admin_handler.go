package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/models"
)

// AdminHandler exposes operator endpoints behind the admin middleware.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// ListSystemLogs pages through stored error logs, optionally filtered by
// level and dataset.
func (h *AdminHandler) ListSystemLogs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := h.db.Model(&models.SystemLog{})
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}
	if datasetID := c.Query("dataset_id"); datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch logs",
		})
	}

	var logs []models.SystemLog
	err := query.Order("timestamp DESC").Offset(offset).Limit(limit).Find(&logs).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch logs",
		})
	}

	return c.JSON(fiber.Map{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
