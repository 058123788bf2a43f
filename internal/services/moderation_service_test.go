package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/roles"
)

func reloadIssue(t *testing.T, env *testEnv, id interface{}) *models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, env.db.First(&issue, "id = ?", id).Error)
	return &issue
}

func reloadComment(t *testing.T, env *testEnv, id interface{}) *models.IssueComment {
	t.Helper()
	var comment models.IssueComment
	require.NoError(t, env.db.First(&comment, "id = ?", id).Error)
	return &comment
}

func TestReportIssueHidesAfterStrikeThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "spammy", time.Now())

	// maxStrikes=2: the first two distinct reporters do not hide.
	for i, name := range []string{"r1", "r2"} {
		reporter := seedUser(t, env.db, name)
		require.NoError(t, env.moderation.ReportIssue(ctx, reporter.ID, dataset.Name, 1))
		got := reloadIssue(t, env, issue.ID)
		assert.Equal(t, models.VisibilityVisible, got.Visibility, "after report %d", i+1)
		assert.Equal(t, models.AbuseUnmoderated, got.AbuseStatus)
	}

	// The third pushes the count past the threshold.
	third := seedUser(t, env.db, "r3")
	require.NoError(t, env.moderation.ReportIssue(ctx, third.ID, dataset.Name, 1))
	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.Equal(t, models.AbuseConfirmed, got.AbuseStatus)
}

func TestReportIssueIsIdempotentPerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "spammy", time.Now())

	reporter := seedUser(t, env.db, "reporter")
	for i := 0; i < 5; i++ {
		require.NoError(t, env.moderation.ReportIssue(ctx, reporter.ID, dataset.Name, 1))
	}

	var count int64
	require.NoError(t, env.db.Model(&models.IssueReport{}).
		Where("parent_id = ?", issue.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// One user can never hide by repeating themselves.
	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityVisible, got.Visibility)
}

func TestPrivilegedReportHidesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	editor := seedUser(t, env.db, "editor")
	seedMember(t, env.db, org, editor, roles.RoleEditor)
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "spammy", time.Now())

	require.NoError(t, env.moderation.ReportIssue(ctx, editor.ID, dataset.Name, 1))

	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.Equal(t, models.AbuseConfirmed, got.AbuseStatus)

	// No strike row is recorded for the privileged path.
	var count int64
	require.NoError(t, env.db.Model(&models.IssueReport{}).
		Where("parent_id = ?", issue.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestOwnReportClearIsStickyOnHiddenIssue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "spammy", time.Now())

	var last uuid.UUID
	for _, name := range []string{"r1", "r2", "r3"} {
		reporter := seedUser(t, env.db, name)
		require.NoError(t, env.moderation.ReportIssue(ctx, reporter.ID, dataset.Name, 1))
		last = reporter.ID
	}
	require.Equal(t, models.VisibilityHidden, reloadIssue(t, env, issue.ID).Visibility)

	// Withdrawing a report removes the row but never unhides.
	require.NoError(t, env.moderation.ClearIssueReports(ctx, last, dataset.Name, 1))

	var count int64
	require.NoError(t, env.db.Model(&models.IssueReport{}).
		Where("parent_id = ?", issue.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.Equal(t, models.AbuseConfirmed, got.AbuseStatus)
}

func TestPrivilegedClearResetsIssueFully(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	admin := seedUser(t, env.db, "org-admin")
	seedMember(t, env.db, org, admin, roles.RoleAdmin)
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "spammy", time.Now())

	for _, name := range []string{"r1", "r2", "r3"} {
		reporter := seedUser(t, env.db, name)
		require.NoError(t, env.moderation.ReportIssue(ctx, reporter.ID, dataset.Name, 1))
	}
	require.Equal(t, models.VisibilityHidden, reloadIssue(t, env, issue.ID).Visibility)

	require.NoError(t, env.moderation.ClearIssueReports(ctx, admin.ID, dataset.Name, 1))

	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityVisible, got.Visibility)
	assert.Equal(t, models.AbuseCleared, got.AbuseStatus)

	var count int64
	require.NoError(t, env.db.Model(&models.IssueReport{}).
		Where("parent_id = ?", issue.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// Clearing twice leaves identical state.
	require.NoError(t, env.moderation.ClearIssueReports(ctx, admin.ID, dataset.Name, 1))
	again := reloadIssue(t, env, issue.ID)
	assert.Equal(t, got.Visibility, again.Visibility)
	assert.Equal(t, got.AbuseStatus, again.AbuseStatus)
}

func TestCommentModerationMirrorsIssues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "topic", time.Now())
	comment := seedComment(t, env.db, issue, creator, "rude text", time.Now())

	for _, name := range []string{"r1", "r2", "r3"} {
		reporter := seedUser(t, env.db, name)
		require.NoError(t, env.moderation.ReportComment(ctx, reporter.ID, comment.ID))
	}
	got := reloadComment(t, env, comment.ID)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.Equal(t, models.AbuseConfirmed, got.AbuseStatus)

	// The parent issue is untouched by comment moderation.
	assert.Equal(t, models.VisibilityVisible, reloadIssue(t, env, issue.ID).Visibility)

	admin := seedSysadmin(t, env.db, "root")
	require.NoError(t, env.moderation.ClearCommentReports(ctx, admin.ID, comment.ID))
	got = reloadComment(t, env, comment.ID)
	assert.Equal(t, models.VisibilityVisible, got.Visibility)
	assert.Equal(t, models.AbuseCleared, got.AbuseStatus)
}

func TestIssueReportersScopedByPrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	seedIssue(t, env.db, dataset, creator, 1, "topic", time.Now())

	r1 := seedUser(t, env.db, "r1")
	r2 := seedUser(t, env.db, "r2")
	require.NoError(t, env.moderation.ReportIssue(ctx, r1.ID, dataset.Name, 1))
	require.NoError(t, env.moderation.ReportIssue(ctx, r2.ID, dataset.Name, 1))

	// A plain reporter only sees their own report.
	own, err := env.moderation.IssueReporters(ctx, r1.ID, dataset.Name, 1)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, r1.ID, own[0])

	// An uninvolved user sees nothing.
	outsider := seedUser(t, env.db, "outsider")
	none, err := env.moderation.IssueReporters(ctx, outsider.ID, dataset.Name, 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	// The dataset owner sees the full list.
	all, err := env.moderation.IssueReporters(ctx, owner.ID, dataset.Name, 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarkIssueSpamIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creator := seedUser(t, env.db, "creator")
	org := seedOrg(t, env.db, "org", nil)
	owner := seedUser(t, env.db, "owner")
	dataset := seedDataset(t, env.db, org, owner, "ds")
	issue := seedIssue(t, env.db, dataset, creator, 1, "buy now", time.Now())

	require.NoError(t, env.moderation.MarkIssueSpam(ctx, issue.ID))
	require.NoError(t, env.moderation.MarkIssueSpam(ctx, issue.ID))

	got := reloadIssue(t, env, issue.ID)
	assert.Equal(t, models.VisibilityHidden, got.Visibility)
	assert.Equal(t, models.AbuseConfirmed, got.AbuseStatus)

	err := env.moderation.MarkIssueSpam(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrIssueNotFound)
}
