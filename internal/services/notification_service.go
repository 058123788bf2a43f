package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/mailer"
	"github.com/opendatahq/issues-backend/internal/models"
)

type IssueEvent string

const (
	EventCreated   IssueEvent = "created"
	EventClosed    IssueEvent = "closed"
	EventReopened  IssueEvent = "reopened"
	EventDeleted   IssueEvent = "deleted"
	EventCommented IssueEvent = "commented on"
)

var issueEmailTemplate = template.Must(template.New("issue_email").Parse(
	`{{.UserName}} has {{.Event}} issue #{{.Number}} on dataset "{{.DatasetTitle}}".

{{.Title}}
{{if .Description}}
{{.Description}}
{{end}}
View the issue: {{.SiteURL}}/datasets/{{.DatasetName}}/issues/{{.Number}}
`))

// NotificationService computes the recipient set for issue lifecycle
// events and hands messages to the mailer. Every failure here is logged
// and swallowed; notifications never fail the triggering operation.
type NotificationService struct {
	dir    *directory.Directory
	mailer mailer.Mailer
	cfg    *config.Config
}

func NewNotificationService(dir *directory.Directory, m mailer.Mailer, cfg *config.Config) *NotificationService {
	return &NotificationService{dir: dir, mailer: m, cfg: cfg}
}

// Dispatch sends the event notification to the dataset contact and to
// qualifying organization members, deduplicated by address.
func (s *NotificationService) Dispatch(ctx context.Context, event IssueEvent, issue *models.Issue) {
	if s.mailer == nil || !s.cfg.EmailNotifications {
		return
	}
	if !s.cfg.NotifyOwner && !s.cfg.NotifyAdmin {
		return
	}

	dataset, err := s.dir.Dataset(ctx, issue.DatasetID.String())
	if err != nil {
		slog.Error("notification: dataset lookup failed",
			"dataset_id", issue.DatasetID.String(), "error", err)
		return
	}
	creator, err := s.dir.User(ctx, issue.UserID)
	if err != nil {
		slog.Error("notification: creator lookup failed",
			"user_id", issue.UserID.String(), "error", err)
		return
	}

	// Deduplicate by address so nobody is mailed twice for one event.
	recipients := make(map[string]string)

	if s.cfg.NotifyOwner {
		if name, email := dataset.ContactAddress(); email != "" {
			recipients[email] = name
		}
	}

	if s.cfg.NotifyAdmin {
		members, err := s.dir.Members(ctx, dataset.OwnerOrgID)
		if err != nil {
			slog.Error("notification: member lookup failed",
				"org_id", dataset.OwnerOrgID.String(), "error", err)
		}
		for _, member := range members {
			if !member.NotifyEnabled {
				continue
			}
			if !member.Capacity.AtLeast(s.cfg.MinRoleRequired) {
				continue
			}
			if member.User.Email == "" {
				continue
			}
			recipients[member.User.Email] = member.User.DisplayName()
		}
	}

	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("[%s] Issue #%d %s: %s",
		dataset.Title, issue.Number, event, issue.Title)
	body, err := s.renderBody(event, issue, dataset, creator)
	if err != nil {
		slog.Error("notification: template render failed", "error", err)
		return
	}

	for email := range recipients {
		if err := s.mailer.Send(email, subject, body); err != nil {
			slog.Error("notification delivery failed",
				"dataset_id", dataset.ID.String(),
				"event", string(event),
				"error", err)
		}
	}
}

func (s *NotificationService) renderBody(event IssueEvent, issue *models.Issue, dataset *models.Dataset, creator *models.User) (string, error) {
	var buf bytes.Buffer
	err := issueEmailTemplate.Execute(&buf, map[string]interface{}{
		"UserName":     creator.DisplayName(),
		"Event":        string(event),
		"Number":       issue.Number,
		"Title":        issue.Title,
		"Description":  issue.Description,
		"DatasetTitle": dataset.Title,
		"DatasetName":  dataset.Name,
		"SiteURL":      s.cfg.SiteURL,
	})
	return buf.String(), err
}
