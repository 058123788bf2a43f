package dto

import "github.com/google/uuid"

type CreateIssueRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ResourceID  *string `json:"resource_id,omitempty"`
}

// UpdateIssueRequest uses pointers so absent fields are left untouched.
// Visibility and abuse status are accepted but silently ignored: those
// fields belong to the moderation engine only.
type UpdateIssueRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	Visibility  *string    `json:"visibility,omitempty"`
	AbuseStatus *string    `json:"abuse_status,omitempty"`
}

type CreateCommentRequest struct {
	Comment string `json:"comment"`
}

type SearchResponse struct {
	Count   int64       `json:"count"`
	Results interface{} `json:"results"`
}
