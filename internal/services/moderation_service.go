package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/models"
)

// ModerationService owns the visibility/abuse state machine for issues
// and comments. Nothing else in the system may write those fields.
//
// Reports accumulate per distinct reporter; once the count exceeds
// maxStrikes the entity is hidden and marked abuse. An actor with
// dataset-update rights bypasses strike counting entirely. Hiding is
// sticky: removing reports never unhides, only a privileged clear does.
type ModerationService struct {
	db         *gorm.DB
	dir        *directory.Directory
	maxStrikes int
}

func NewModerationService(db *gorm.DB, dir *directory.Directory, maxStrikes int) *ModerationService {
	return &ModerationService{db: db, dir: dir, maxStrikes: maxStrikes}
}

func (s *ModerationService) issueByNumber(ctx context.Context, datasetRef string, number int) (*models.Dataset, *models.Issue, error) {
	dataset, err := s.dir.Dataset(ctx, datasetRef)
	if err != nil {
		if errors.Is(err, directory.ErrDatasetNotFound) {
			return nil, nil, ErrDatasetNotFound
		}
		return nil, nil, err
	}
	var issue models.Issue
	err = s.db.WithContext(ctx).
		Where("dataset_id = ? AND number = ?", dataset.ID, number).
		First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return dataset, &issue, nil
}

func (s *ModerationService) commentByID(ctx context.Context, commentID uuid.UUID) (*models.Dataset, *models.IssueComment, error) {
	var comment models.IssueComment
	err := s.db.WithContext(ctx).
		Preload("Issue").
		First(&comment, "id = ?", commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	dataset, err := s.dir.Dataset(ctx, comment.Issue.DatasetID.String())
	if err != nil {
		return nil, nil, err
	}
	return dataset, &comment, nil
}

// ReportIssue records an abuse report against an issue. Privileged
// reporters hide the issue immediately; everyone else adds a strike.
// Re-reporting by the same user is an idempotent no-op.
func (s *ModerationService) ReportIssue(ctx context.Context, actorID uuid.UUID, datasetRef string, number int) error {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return err
	}
	privileged, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if privileged {
			return hideEntity(tx, &models.Issue{}, issue.ID)
		}
		report := models.IssueReport{ID: uuid.New(), UserID: actorID, ParentID: issue.ID}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return s.applyStrikes(tx, &models.IssueReport{}, &models.Issue{}, issue.ID)
	})
}

// ReportComment mirrors ReportIssue for comments.
func (s *ModerationService) ReportComment(ctx context.Context, actorID, commentID uuid.UUID) error {
	dataset, comment, err := s.commentByID(ctx, commentID)
	if err != nil {
		return err
	}
	privileged, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if privileged {
			return hideEntity(tx, &models.IssueComment{}, comment.ID)
		}
		report := models.IssueCommentReport{ID: uuid.New(), UserID: actorID, ParentID: comment.ID}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return s.applyStrikes(tx, &models.IssueCommentReport{}, &models.IssueComment{}, comment.ID)
	})
}

// applyStrikes re-reads the live report set inside the transaction and
// hides the entity when the distinct-reporter count passes the
// threshold. Safe to run concurrently with other reports and with the
// async spam classifier.
func (s *ModerationService) applyStrikes(tx *gorm.DB, reportModel, entityModel interface{}, parentID uuid.UUID) error {
	var count int64
	err := tx.Model(reportModel).
		Where("parent_id = ?", parentID).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > int64(s.maxStrikes) {
		return hideEntity(tx, entityModel, parentID)
	}
	return nil
}

func hideEntity(tx *gorm.DB, entityModel interface{}, id uuid.UUID) error {
	return tx.Model(entityModel).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"visibility":   models.VisibilityHidden,
			"abuse_status": models.AbuseConfirmed,
		}).Error
}

func resetEntity(tx *gorm.DB, entityModel interface{}, id uuid.UUID) error {
	return tx.Model(entityModel).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"visibility":   models.VisibilityVisible,
			"abuse_status": models.AbuseCleared,
		}).Error
}

// ClearIssueReports is the report-clear path. A privileged actor resets
// the issue fully: visible, not_abuse, all reports deleted. Anyone else
// only withdraws their own report; a hidden issue stays hidden.
// Clearing twice leaves state identical to clearing once.
func (s *ModerationService) ClearIssueReports(ctx context.Context, actorID uuid.UUID, datasetRef string, number int) error {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return err
	}
	privileged, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if privileged {
			if err := resetEntity(tx, &models.Issue{}, issue.ID); err != nil {
				return err
			}
			return tx.Where("parent_id = ?", issue.ID).Delete(&models.IssueReport{}).Error
		}
		return tx.Where("parent_id = ? AND user_id = ?", issue.ID, actorID).
			Delete(&models.IssueReport{}).Error
	})
}

// ClearCommentReports mirrors ClearIssueReports for comments.
func (s *ModerationService) ClearCommentReports(ctx context.Context, actorID, commentID uuid.UUID) error {
	dataset, comment, err := s.commentByID(ctx, commentID)
	if err != nil {
		return err
	}
	privileged, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if privileged {
			if err := resetEntity(tx, &models.IssueComment{}, comment.ID); err != nil {
				return err
			}
			return tx.Where("parent_id = ?", comment.ID).Delete(&models.IssueCommentReport{}).Error
		}
		return tx.Where("parent_id = ? AND user_id = ?", comment.ID, actorID).
			Delete(&models.IssueCommentReport{}).Error
	})
}

// IssueReporters returns who reported an issue. Privileged actors see
// every reporter; others only see themselves if they reported it.
func (s *ModerationService) IssueReporters(ctx context.Context, actorID uuid.UUID, datasetRef string, number int) ([]uuid.UUID, error) {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return nil, err
	}
	privileged, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&models.IssueReport{}).
		Where("parent_id = ?", issue.ID)
	if !privileged {
		query = query.Where("user_id = ?", actorID)
	}
	var reporters []uuid.UUID
	if err := query.Order("created_at ASC").Pluck("user_id", &reporters).Error; err != nil {
		return nil, err
	}
	return reporters, nil
}

// MarkIssueSpam is the async classifier's entry point. Idempotent.
func (s *ModerationService) MarkIssueSpam(ctx context.Context, issueID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var issue models.Issue
		if err := tx.First(&issue, "id = ?", issueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIssueNotFound
			}
			return err
		}
		return hideEntity(tx, &models.Issue{}, issueID)
	})
}

// MarkCommentSpam mirrors MarkIssueSpam for comments.
func (s *ModerationService) MarkCommentSpam(ctx context.Context, commentID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.IssueComment
		if err := tx.First(&comment, "id = ?", commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		return hideEntity(tx, &models.IssueComment{}, commentID)
	})
}
