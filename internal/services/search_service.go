package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/models"
)

type IssueSort string

const (
	SortNewest               IssueSort = "newest"
	SortOldest               IssueSort = "oldest"
	SortMostCommented        IssueSort = "most_commented"
	SortLeastCommented       IssueSort = "least_commented"
	SortRecentlyUpdated      IssueSort = "recently_updated"
	SortLeastRecentlyUpdated IssueSort = "least_recently_updated"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Issues with no comments have no "updated" time; they sort as oldest in
// the updated-based orderings.
const zeroUpdated = "'0001-01-01 00:00:00'"

var issueOrderings = map[IssueSort]string{
	SortNewest:               "issues.created_at DESC",
	SortOldest:               "issues.created_at ASC",
	SortMostCommented:        "COUNT(issue_comments.id) DESC, issues.created_at ASC",
	SortLeastCommented:       "COUNT(issue_comments.id) ASC, issues.created_at ASC",
	SortRecentlyUpdated:      "COALESCE(MAX(issue_comments.created_at), " + zeroUpdated + ") DESC, issues.created_at ASC",
	SortLeastRecentlyUpdated: "COALESCE(MAX(issue_comments.created_at), " + zeroUpdated + ") ASC, issues.created_at ASC",
}

// IssueFilter narrows an issue search. All fields are optional; the
// visibility scope is expected to be resolved by the caller from the
// actor's permissions before the query runs.
type IssueFilter struct {
	DatasetRef      string
	OrganizationRef string
	IncludeSubOrgs  bool
	Status          models.IssueStatus
	Visibility      models.Visibility
	AbuseStatus     models.AbuseStatus
	Q               string
	Sort            IssueSort
	Offset          int
	Limit           int
}

// IssueSummary is one search result row: the issue plus the creator's
// display name and comment facets, computed in the same query.
type IssueSummary struct {
	ID           uuid.UUID          `json:"id"`
	Number       int                `json:"number"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	DatasetID    uuid.UUID          `json:"dataset_id"`
	ResourceID   *string            `json:"resource_id,omitempty"`
	UserID       uuid.UUID          `json:"user_id"`
	AssigneeID   *uuid.UUID         `json:"assignee_id,omitempty"`
	Status       models.IssueStatus `json:"status"`
	Resolved     *time.Time         `json:"resolved,omitempty"`
	Visibility   models.Visibility  `json:"visibility"`
	AbuseStatus  models.AbuseStatus `json:"abuse_status"`
	CreatedAt    time.Time          `json:"created"`
	UserName     string             `json:"user"`
	CommentCount int64              `json:"comment_count"`
	Updated      *time.Time         `json:"updated,omitempty"`
}

// CommentFilter narrows the comment listing. As with issues, the
// visibility scope is the caller's responsibility.
type CommentFilter struct {
	OrganizationRef string
	Visibility      models.Visibility
	OnlyHidden      bool
	Offset          int
	Limit           int
}

type CommentSummary struct {
	ID          uuid.UUID          `json:"id"`
	IssueID     uuid.UUID          `json:"issue_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Comment     string             `json:"comment"`
	Visibility  models.Visibility  `json:"visibility"`
	AbuseStatus models.AbuseStatus `json:"abuse_status"`
	CreatedAt   time.Time          `json:"created"`
	DatasetID   uuid.UUID          `json:"dataset_id"`
	IssueNumber int                `json:"issue_number"`
}

// SearchService is read-only over the issue store. Count and page are
// computed against the same filtered predicate, so the count is exact
// for the filter set.
type SearchService struct {
	db  *gorm.DB
	dir *directory.Directory
}

func NewSearchService(db *gorm.DB, dir *directory.Directory) *SearchService {
	return &SearchService{db: db, dir: dir}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

func (s *SearchService) resolveOrgScope(ctx context.Context, ref string, includeSub bool) ([]uuid.UUID, error) {
	org, err := s.dir.Organization(ctx, ref)
	if err != nil {
		if errors.Is(err, directory.ErrOrgNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	if !includeSub {
		return []uuid.UUID{org.ID}, nil
	}
	return s.dir.Descendants(ctx, org.ID)
}

// applyIssueFilter builds the shared WHERE clause used by both the count
// and the page query.
func (s *SearchService) applyIssueFilter(ctx context.Context, f IssueFilter) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&models.Issue{})

	if f.DatasetRef != "" {
		dataset, err := s.dir.Dataset(ctx, f.DatasetRef)
		if err != nil {
			if errors.Is(err, directory.ErrDatasetNotFound) {
				return nil, ErrDatasetNotFound
			}
			return nil, err
		}
		query = query.Where("issues.dataset_id = ?", dataset.ID)
	}

	if f.OrganizationRef != "" {
		orgIDs, err := s.resolveOrgScope(ctx, f.OrganizationRef, f.IncludeSubOrgs)
		if err != nil {
			return nil, err
		}
		query = query.
			Joins("JOIN datasets ON datasets.id = issues.dataset_id").
			Where("datasets.owner_org_id IN ?", orgIDs)
	}

	if f.Q != "" {
		like := "%" + strings.ToLower(f.Q) + "%"
		query = query.Where(
			"LOWER(issues.title) LIKE ? OR LOWER(COALESCE(issues.description, '')) LIKE ?",
			like, like)
	}

	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, invalidField("status", "must be open or closed")
		}
		query = query.Where("issues.status = ?", f.Status)
	}
	if f.Visibility != "" {
		if !f.Visibility.Valid() {
			return nil, invalidField("visibility", "must be visible or hidden")
		}
		query = query.Where("issues.visibility = ?", f.Visibility)
	}
	if f.AbuseStatus != "" {
		query = query.Where("issues.abuse_status = ?", f.AbuseStatus)
	}

	return query, nil
}

// withIssueJoins adds the user and comment joins shared by the count
// and the page query. Counting over the same join set keeps the total
// consistent with the rows a page can actually return.
func withIssueJoins(query *gorm.DB) *gorm.DB {
	return query.
		Joins("JOIN users ON users.id = issues.user_id").
		Joins("LEFT JOIN issue_comments ON issue_comments.issue_id = issues.id")
}

// SearchIssues returns one page of issue summaries plus the exact total
// for the filter set.
func (s *SearchService) SearchIssues(ctx context.Context, f IssueFilter) ([]IssueSummary, int64, error) {
	sort := f.Sort
	if sort == "" {
		sort = SortNewest
	}
	ordering, ok := issueOrderings[sort]
	if !ok {
		return nil, 0, invalidField("sort", "unknown sort value")
	}

	countQuery, err := s.applyIssueFilter(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := withIssueJoins(countQuery).Distinct("issues.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageQuery, err := s.applyIssueFilter(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	var results []IssueSummary
	err = withIssueJoins(pageQuery).
		Select("issues.*, users.name AS user_name, " +
			"COUNT(issue_comments.id) AS comment_count, " +
			"MAX(issue_comments.created_at) AS updated").
		Group("issues.id, users.name").
		Order(ordering).
		Offset(f.Offset).
		Limit(clampLimit(f.Limit)).
		Scan(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// SearchComments lists comments for moderation views, scoped by
// organization and optionally restricted to hidden ones.
func (s *SearchService) SearchComments(ctx context.Context, f CommentFilter) ([]CommentSummary, int64, error) {
	build := func() (*gorm.DB, error) {
		query := s.db.WithContext(ctx).Model(&models.IssueComment{}).
			Joins("JOIN issues ON issues.id = issue_comments.issue_id")
		if f.OrganizationRef != "" {
			orgIDs, err := s.resolveOrgScope(ctx, f.OrganizationRef, false)
			if err != nil {
				return nil, err
			}
			query = query.
				Joins("JOIN datasets ON datasets.id = issues.dataset_id").
				Where("datasets.owner_org_id IN ?", orgIDs)
		}
		if f.OnlyHidden {
			query = query.Where("issue_comments.visibility = ?", models.VisibilityHidden)
		} else if f.Visibility != "" {
			if !f.Visibility.Valid() {
				return nil, invalidField("visibility", "must be visible or hidden")
			}
			query = query.Where("issue_comments.visibility = ?", f.Visibility)
		}
		return query, nil
	}

	countQuery, err := build()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageQuery, err := build()
	if err != nil {
		return nil, 0, err
	}
	var results []CommentSummary
	err = pageQuery.
		Select("issue_comments.*, issues.dataset_id AS dataset_id, issues.number AS issue_number").
		Order("issue_comments.created_at DESC").
		Offset(f.Offset).
		Limit(clampLimit(f.Limit)).
		Scan(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
