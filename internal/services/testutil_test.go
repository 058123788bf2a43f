package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/database"
	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/roles"
)

// newTestDB opens a private in-memory database with the production
// schema. A single connection keeps concurrent transactions serialized,
// which is what the SQLite driver needs.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// testEnv bundles the service graph over one test database.
type testEnv struct {
	db         *gorm.DB
	dir        *directory.Directory
	cfg        *config.Config
	issues     *IssueService
	moderation *ModerationService
	search     *SearchService
	gate       *ReviewGateService
	notifier   *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	dir := directory.New(db)
	cfg := &config.Config{
		MaxStrikes: 2,
	}
	notifier := NewNotificationService(dir, nil, cfg)
	gate := NewReviewGateService(db, false)
	moderation := NewModerationService(db, dir, cfg.MaxStrikes)
	search := NewSearchService(db, dir)
	issues := NewIssueService(db, dir, cfg, notifier, gate, moderation, nil, nil)
	return &testEnv{
		db:         db,
		dir:        dir,
		cfg:        cfg,
		issues:     issues,
		moderation: moderation,
		search:     search,
		gate:       gate,
		notifier:   notifier,
	}
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		ID:    uuid.New(),
		Name:  name,
		Email: name + "@example.org",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSysadmin(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := seedUser(t, db, name)
	require.NoError(t, db.Model(user).Update("sysadmin", true).Error)
	user.Sysadmin = true
	return user
}

func seedOrg(t *testing.T, db *gorm.DB, name string, parentID *uuid.UUID) *models.Organization {
	t.Helper()
	org := &models.Organization{
		ID:       uuid.New(),
		Name:     name,
		Title:    name,
		ParentID: parentID,
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

func seedMember(t *testing.T, db *gorm.DB, org *models.Organization, user *models.User, capacity roles.Role) {
	t.Helper()
	member := &models.OrganizationMember{
		ID:            uuid.New(),
		OrgID:         org.ID,
		UserID:        user.ID,
		Capacity:      capacity,
		NotifyEnabled: true,
	}
	require.NoError(t, db.Create(member).Error)
}

func seedDataset(t *testing.T, db *gorm.DB, org *models.Organization, creator *models.User, name string) *models.Dataset {
	t.Helper()
	dataset := &models.Dataset{
		ID:            uuid.New(),
		Name:          name,
		Title:         name,
		OwnerOrgID:    org.ID,
		CreatorUserID: creator.ID,
	}
	require.NoError(t, db.Create(dataset).Error)
	return dataset
}

// seedIssue inserts an issue row directly, bypassing the service, so
// tests can control timestamps and moderation state.
func seedIssue(t *testing.T, db *gorm.DB, dataset *models.Dataset, user *models.User, number int, title string, createdAt time.Time) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		ID:          uuid.New(),
		Number:      number,
		Title:       title,
		DatasetID:   dataset.ID,
		UserID:      user.ID,
		Status:      models.StatusOpen,
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(issue).Error)
	return issue
}

func seedComment(t *testing.T, db *gorm.DB, issue *models.Issue, user *models.User, text string, createdAt time.Time) *models.IssueComment {
	t.Helper()
	comment := &models.IssueComment{
		ID:          uuid.New(),
		IssueID:     issue.ID,
		UserID:      user.ID,
		Comment:     text,
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(comment).Error)
	return comment
}
