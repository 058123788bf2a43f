package models

import (
	"time"

	"github.com/google/uuid"
)

// One report table per reportable entity type. The unique
// (user_id, parent_id) index is the backstop for the moderation
// service's idempotent-report policy: a user can hold at most one
// live report against an item.

// IssueReport is one user's abuse report against an issue.
type IssueReport struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_issue_reports_user_parent" json:"user_id"`
	ParentID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_issue_reports_user_parent" json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`

	Issue Issue `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}

// IssueCommentReport is one user's abuse report against a comment.
type IssueCommentReport struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_comment_reports_user_parent" json:"user_id"`
	ParentID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_comment_reports_user_parent" json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`

	Comment IssueComment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}
