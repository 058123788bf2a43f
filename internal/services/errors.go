package services

import (
	"errors"
	"fmt"
)

// Stable error kinds so the handler layer can map failures to
// 400/401/403/404/409-style responses without string matching.
var (
	ErrIssueNotFound    = errors.New("issue not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrOrgNotFound      = errors.New("organization not found")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNumberContention = errors.New("issue number allocation contended, try again")
)

// ValidationError marks malformed or missing input, detected before any
// mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
