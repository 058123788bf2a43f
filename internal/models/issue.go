package models

import (
	"time"

	"github.com/google/uuid"
)

type IssueStatus string

const (
	StatusOpen   IssueStatus = "open"
	StatusClosed IssueStatus = "closed"
)

func (s IssueStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Visibility controls whether an issue or comment appears in default
// listings. Only the moderation service may change it.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

func (v Visibility) Valid() bool {
	return v == VisibilityVisible || v == VisibilityHidden
}

// AbuseStatus tracks the moderation verdict on an issue or comment.
type AbuseStatus string

const (
	AbuseUnmoderated AbuseStatus = "unmoderated"
	AbuseConfirmed   AbuseStatus = "abuse"
	AbuseCleared     AbuseStatus = "not_abuse"
)

// Issue is a problem report filed against a dataset (or one of its
// resources). Number is sequential per dataset, starting at 1; the
// (dataset_id, number) pair is the user-facing identity of an issue.
type Issue struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Number      int         `gorm:"not null;uniqueIndex:idx_issues_dataset_number" json:"number"`
	Title       string      `gorm:"size:255;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	DatasetID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_issues_dataset_number" json:"dataset_id"`
	ResourceID  *string     `gorm:"size:100" json:"resource_id,omitempty"`
	UserID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	AssigneeID  *uuid.UUID  `gorm:"type:uuid" json:"assignee_id,omitempty"`
	Status      IssueStatus `gorm:"size:15;not null;default:'open'" json:"status"`
	Resolved    *time.Time  `json:"resolved,omitempty"`
	Visibility  Visibility  `gorm:"size:10;not null;default:'visible'" json:"visibility"`
	AbuseStatus AbuseStatus `gorm:"size:15;not null;default:'unmoderated'" json:"abuse_status"`
	CreatedAt   time.Time   `json:"created"`

	Dataset Dataset `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"foreignKey:UserID" json:"-"`
}

// IssueComment belongs to its parent issue and is deleted with it.
type IssueComment struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	IssueID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"issue_id"`
	UserID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Comment     string      `gorm:"type:text;not null" json:"comment"`
	Visibility  Visibility  `gorm:"size:10;not null;default:'visible'" json:"visibility"`
	AbuseStatus AbuseStatus `gorm:"size:15;not null;default:'unmoderated'" json:"abuse_status"`
	CreatedAt   time.Time   `json:"created"`

	Issue Issue `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE" json:"-"`
	User  User  `gorm:"foreignKey:UserID" json:"-"`
}
