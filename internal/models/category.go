package models

import "time"

// IssueCategory is a legacy lookup kept for callers that still render the
// fixed category list. It plays no part in moderation or search.
type IssueCategory struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:255;not null" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultCategories seeds the catalog on first migration.
var DefaultCategories = map[string]string{
	"broken-resource-link": "Broken data link",
	"no-author":            "No publisher or author specified",
	"bad-format":           "Data incorrectly formatted",
	"no-resources":         "No resources in the dataset",
	"add-description":      "No description of the data",
	"other":                "Other",
}
