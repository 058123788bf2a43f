package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/models"
)

// ReviewGateService flips a dataset private while it has open issues and
// public again once the last one closes. Only the 0<->1 boundary flips
// visibility; counts are read fresh on every call, never cached. Errors
// are logged and swallowed so the gate can never fail the triggering
// operation.
type ReviewGateService struct {
	db      *gorm.DB
	enabled bool
}

func NewReviewGateService(db *gorm.DB, enabled bool) *ReviewGateService {
	return &ReviewGateService{db: db, enabled: enabled}
}

func (s *ReviewGateService) openCount(ctx context.Context, datasetID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("dataset_id = ? AND status = ?", datasetID, models.StatusOpen).
		Count(&count).Error
	return count, err
}

func (s *ReviewGateService) setPrivate(ctx context.Context, datasetID uuid.UUID, private bool) error {
	return s.db.WithContext(ctx).Model(&models.Dataset{}).
		Where("id = ?", datasetID).
		Update("private", private).Error
}

// IssueOpened runs after an issue is created or reopened.
func (s *ReviewGateService) IssueOpened(ctx context.Context, datasetID uuid.UUID) {
	if !s.enabled {
		return
	}
	count, err := s.openCount(ctx, datasetID)
	if err != nil {
		slog.Error("review gate: open count failed",
			"dataset_id", datasetID.String(), "error", err)
		return
	}
	if count != 1 {
		return
	}
	if err := s.setPrivate(ctx, datasetID, true); err != nil {
		slog.Error("review gate: could not make dataset private",
			"dataset_id", datasetID.String(), "error", err)
		return
	}
	slog.Info("review gate: dataset made private", "dataset_id", datasetID.String())
}

// IssueClosed runs after an issue is closed or deleted.
func (s *ReviewGateService) IssueClosed(ctx context.Context, datasetID uuid.UUID) {
	if !s.enabled {
		return
	}
	count, err := s.openCount(ctx, datasetID)
	if err != nil {
		slog.Error("review gate: open count failed",
			"dataset_id", datasetID.String(), "error", err)
		return
	}
	if count != 0 {
		return
	}
	if err := s.setPrivate(ctx, datasetID, false); err != nil {
		slog.Error("review gate: could not make dataset public",
			"dataset_id", datasetID.String(), "error", err)
		return
	}
	slog.Info("review gate: dataset made public", "dataset_id", datasetID.String())
}
