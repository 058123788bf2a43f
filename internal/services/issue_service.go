package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/spam"
	"github.com/opendatahq/issues-backend/internal/tasks"
)

// IssueService handles the issue and comment lifecycle. Moderation state
// is out of bounds here; the general update path never touches
// visibility or abuse status.
type IssueService struct {
	db         *gorm.DB
	dir        *directory.Directory
	cfg        *config.Config
	notifier   *NotificationService
	gate       *ReviewGateService
	moderation *ModerationService
	runner     *tasks.Runner
	classifier spam.Classifier
}

func NewIssueService(
	db *gorm.DB,
	dir *directory.Directory,
	cfg *config.Config,
	notifier *NotificationService,
	gate *ReviewGateService,
	moderation *ModerationService,
	runner *tasks.Runner,
	classifier spam.Classifier,
) *IssueService {
	return &IssueService{
		db:         db,
		dir:        dir,
		cfg:        cfg,
		notifier:   notifier,
		gate:       gate,
		moderation: moderation,
		runner:     runner,
		classifier: classifier,
	}
}

func (s *IssueService) dataset(ctx context.Context, ref string) (*models.Dataset, error) {
	dataset, err := s.dir.Dataset(ctx, ref)
	if err != nil {
		if errors.Is(err, directory.ErrDatasetNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	return dataset, nil
}

func (s *IssueService) issueByNumber(ctx context.Context, datasetRef string, number int) (*models.Dataset, *models.Issue, error) {
	dataset, err := s.dataset(ctx, datasetRef)
	if err != nil {
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

// Create files a new issue against a dataset, allocating the next
// sequential number. Spam check, notifications and the review gate run
// after the insert transaction commits.
func (s *IssueService) Create(ctx context.Context, actorID uuid.UUID, datasetRef string, req *dto.CreateIssueRequest) (*models.Issue, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalidField("title", "cannot be empty")
	}

	dataset, err := s.dataset(ctx, datasetRef)
	if err != nil {
		return nil, err
	}

	allowed, err := s.dir.CanCreateIssue(ctx, actorID, dataset, s.cfg.CreateMinRole)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotAuthorized
	}

	issue := &models.Issue{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DatasetID:   dataset.ID,
		ResourceID:  req.ResourceID,
		UserID:      actorID,
		Status:      models.StatusOpen,
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
	}
	if err := s.insertNumbered(ctx, issue); err != nil {
		return nil, err
	}

	s.enqueueIssueSpamCheck(issue)
	s.notifier.Dispatch(ctx, EventCreated, issue)
	s.gate.IssueOpened(ctx, dataset.ID)

	slog.Info("issue created",
		"dataset_id", dataset.ID.String(),
		"number", issue.Number,
		"user_id", actorID.String())
	return issue, nil
}

// Update edits title, description, status or assignee. Requests that try
// to set visibility or abuse status are silently ignored, not errored.
// Closing stamps Resolved and assigns the closer; reopening clears both.
func (s *IssueService) Update(ctx context.Context, actorID uuid.UUID, datasetRef string, number int, req *dto.UpdateIssueRequest) (*models.Issue, error) {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return nil, err
	}

	canEdit, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return nil, err
	}
	if !canEdit && issue.UserID != actorID {
		return nil, ErrNotAuthorized
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, invalidField("title", "cannot be empty")
		}
		issue.Title = title
	}
	if req.Description != nil {
		issue.Description = strings.TrimSpace(*req.Description)
	}
	if req.AssigneeID != nil {
		issue.AssigneeID = req.AssigneeID
	}

	var event IssueEvent
	if req.Status != nil {
		status := models.IssueStatus(*req.Status)
		if !status.Valid() {
			return nil, invalidField("status", "must be open or closed")
		}
		if status != issue.Status {
			switch status {
			case models.StatusClosed:
				now := time.Now()
				issue.Resolved = &now
				issue.AssigneeID = &actorID
				event = EventClosed
			case models.StatusOpen:
				issue.Resolved = nil
				issue.AssigneeID = nil
				event = EventReopened
			}
			issue.Status = status
		}
	}

	// Select the writable columns explicitly; visibility and abuse
	// status stay whatever the moderation engine last set.
	err = s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ?", issue.ID).
		Select("title", "description", "status", "resolved", "assignee_id").
		Updates(map[string]interface{}{
			"title":       issue.Title,
			"description": issue.Description,
			"status":      issue.Status,
			"resolved":    issue.Resolved,
			"assignee_id": issue.AssigneeID,
		}).Error
	if err != nil {
		return nil, err
	}

	switch event {
	case EventClosed:
		s.notifier.Dispatch(ctx, EventClosed, issue)
		s.gate.IssueClosed(ctx, dataset.ID)
	case EventReopened:
		s.notifier.Dispatch(ctx, EventReopened, issue)
		s.gate.IssueOpened(ctx, dataset.ID)
	}
	return issue, nil
}

// Delete removes an issue with its comments and reports. Requires
// dataset-update rights.
func (s *IssueService) Delete(ctx context.Context, actorID uuid.UUID, datasetRef string, number int) error {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return err
	}
	canEdit, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return err
	}
	if !canEdit {
		return ErrNotAuthorized
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.IssueComment{}).
			Select("id").
			Where("issue_id = ?", issue.ID)
		if err := tx.Where("parent_id IN (?)", commentIDs).
			Delete(&models.IssueCommentReport{}).Error; err != nil {
			return err
		}
		if err := tx.Where("issue_id = ?", issue.ID).
			Delete(&models.IssueComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", issue.ID).
			Delete(&models.IssueReport{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Issue{}, "id = ?", issue.ID).Error
	})
	if err != nil {
		return err
	}

	s.notifier.Dispatch(ctx, EventDeleted, issue)
	s.gate.IssueClosed(ctx, dataset.ID)

	slog.Info("issue deleted",
		"dataset_id", dataset.ID.String(),
		"number", issue.Number,
		"user_id", actorID.String())
	return nil
}

// IssueDetail is the full single-issue view with comments and reporter
// lists.
type IssueDetail struct {
	models.Issue
	UserName     string          `json:"user"`
	AbuseReports []uuid.UUID     `json:"abuse_reports"`
	Comments     []CommentDetail `json:"comments"`
}

type CommentDetail struct {
	models.IssueComment
	UserName     string      `json:"user"`
	AbuseReports []uuid.UUID `json:"abuse_reports"`
}

// Show returns an issue with its comments. Hidden issues are NotFound
// for everyone except actors who can update the dataset; reporter lists
// are filtered to the actor's own report for non-privileged actors.
func (s *IssueService) Show(ctx context.Context, actorID uuid.UUID, datasetRef string, number int) (*IssueDetail, error) {
	dataset, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return nil, err
	}

	canEdit, err := s.dir.CanUpdateDataset(ctx, actorID, dataset)
	if err != nil {
		return nil, err
	}
	if issue.Visibility != models.VisibilityVisible && !canEdit {
		return nil, ErrIssueNotFound
	}

	creator, err := s.dir.User(ctx, issue.UserID)
	if err != nil {
		return nil, err
	}

	detail := &IssueDetail{
		Issue:        *issue,
		UserName:     creator.DisplayName(),
		AbuseReports: []uuid.UUID{},
		Comments:     []CommentDetail{},
	}

	reporters, err := s.reporterList(ctx, &models.IssueReport{}, issue.ID, actorID, canEdit)
	if err != nil {
		return nil, err
	}
	detail.AbuseReports = reporters

	var comments []models.IssueComment
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("issue_id = ?", issue.ID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, comment := range comments {
		commentReporters, err := s.reporterList(ctx, &models.IssueCommentReport{}, comment.ID, actorID, canEdit)
		if err != nil {
			return nil, err
		}
		detail.Comments = append(detail.Comments, CommentDetail{
			IssueComment: comment,
			UserName:     comment.User.DisplayName(),
			AbuseReports: commentReporters,
		})
	}
	return detail, nil
}

func (s *IssueService) reporterList(ctx context.Context, reportModel interface{}, parentID, actorID uuid.UUID, canEdit bool) ([]uuid.UUID, error) {
	query := s.db.WithContext(ctx).Model(reportModel).Where("parent_id = ?", parentID)
	if !canEdit {
		query = query.Where("user_id = ?", actorID)
	}
	reporters := []uuid.UUID{}
	if err := query.Order("created_at ASC").Pluck("user_id", &reporters).Error; err != nil {
		return nil, err
	}
	return reporters, nil
}

// CreateComment adds a comment to an issue. The issue row itself is not
// mutated; comment counts and last-updated facets are query-time joins.
func (s *IssueService) CreateComment(ctx context.Context, actorID uuid.UUID, datasetRef string, number int, req *dto.CreateCommentRequest) (*models.IssueComment, error) {
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return nil, invalidField("comment", "cannot be empty")
	}

	_, issue, err := s.issueByNumber(ctx, datasetRef, number)
	if err != nil {
		return nil, err
	}

	comment := &models.IssueComment{
		ID:          uuid.New(),
		IssueID:     issue.ID,
		UserID:      actorID,
		Comment:     text,
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}

	s.enqueueCommentSpamCheck(comment)
	s.notifier.Dispatch(ctx, EventCommented, issue)
	return comment, nil
}

// spamContent builds the classifier payload, attaching the author's
// name and address as accuracy hints. A failed author lookup degrades
// to text-only classification.
func (s *IssueService) spamContent(ctx context.Context, text string, authorID uuid.UUID) spam.Content {
	content := spam.Content{Text: text}
	author, err := s.dir.User(ctx, authorID)
	if err != nil {
		slog.Error("spam check: author lookup failed",
			"user_id", authorID.String(), "error", err)
		return content
	}
	content.AuthorName = author.DisplayName()
	content.AuthorEmail = author.Email
	return content
}

// enqueueIssueSpamCheck submits a background classification task. The
// runner retries transient failures; MarkIssueSpam is idempotent so a
// duplicate run is harmless.
func (s *IssueService) enqueueIssueSpamCheck(issue *models.Issue) {
	if s.runner == nil || s.classifier == nil {
		return
	}
	issueID := issue.ID
	authorID := issue.UserID
	text := issue.Title + "\n" + issue.Description
	s.runner.Submit(tasks.Task{
		Name: "spam-check-issue",
		Run: func(ctx context.Context) error {
			verdict, err := s.classifier.Classify(ctx, s.spamContent(ctx, text, authorID))
			if err != nil {
				return err
			}
			if verdict != spam.VerdictSpam {
				return nil
			}
			return s.moderation.MarkIssueSpam(ctx, issueID)
		},
	})
}

func (s *IssueService) enqueueCommentSpamCheck(comment *models.IssueComment) {
	if s.runner == nil || s.classifier == nil {
		return
	}
	commentID := comment.ID
	authorID := comment.UserID
	text := comment.Comment
	s.runner.Submit(tasks.Task{
		Name: "spam-check-comment",
		Run: func(ctx context.Context) error {
			verdict, err := s.classifier.Classify(ctx, s.spamContent(ctx, text, authorID))
			if err != nil {
				return err
			}
			if verdict != spam.VerdictSpam {
				return nil
			}
			return s.moderation.MarkCommentSpam(ctx, commentID)
		},
	})
}
