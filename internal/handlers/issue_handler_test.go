package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opendatahq/issues-backend/internal/config"
	"github.com/opendatahq/issues-backend/internal/database"
	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/middleware"
	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/services"
)

type handlerFixture struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newHandlerFixture(t *testing.T) *handlerFixture {
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

	cfg := &config.Config{JWTSecret: "handler-test-secret", MaxStrikes: 2}
	dir := directory.New(db)
	notifier := services.NewNotificationService(dir, nil, cfg)
	gate := services.NewReviewGateService(db, false)
	moderation := services.NewModerationService(db, dir, cfg.MaxStrikes)
	search := services.NewSearchService(db, dir)
	issues := services.NewIssueService(db, dir, cfg, notifier, gate, moderation, nil, nil)

	handler := NewIssueHandler(issues, search, dir)
	app := fiber.New()
	app.Get("/api/comments", middleware.JWTProtected(cfg), handler.SearchComments)
	app.Get("/api/issues", middleware.JWTProtected(cfg), handler.SearchIssues)

	return &handlerFixture{app: app, db: db, cfg: cfg}
}

func (f *handlerFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(f.cfg.JWTSecret))
	require.NoError(t, err)
	return signed
}

func (f *handlerFixture) get(t *testing.T, path string, userID uuid.UUID) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *handlerFixture) seedUser(t *testing.T, name string, sysadmin bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Name:     name,
		Email:    name + "@example.org",
		Sysadmin: sysadmin,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

type commentPage struct {
	Count   int64                     `json:"count"`
	Results []services.CommentSummary `json:"results"`
}

func decodeComments(t *testing.T, resp *http.Response) commentPage {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var page commentPage
	require.NoError(t, json.Unmarshal(body, &page))
	return page
}

func TestSearchCommentsHidesModeratedFromRegularUsers(t *testing.T) {
	f := newHandlerFixture(t)

	author := f.seedUser(t, "author", false)
	reader := f.seedUser(t, "reader", false)
	admin := f.seedUser(t, "admin", true)

	org := &models.Organization{ID: uuid.New(), Name: "org", Title: "org"}
	require.NoError(t, f.db.Create(org).Error)
	dataset := &models.Dataset{
		ID: uuid.New(), Name: "ds", Title: "ds",
		OwnerOrgID: org.ID, CreatorUserID: author.ID,
	}
	require.NoError(t, f.db.Create(dataset).Error)
	issue := &models.Issue{
		ID: uuid.New(), Number: 1, Title: "topic",
		DatasetID: dataset.ID, UserID: author.ID,
		Status:      models.StatusOpen,
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
	}
	require.NoError(t, f.db.Create(issue).Error)

	visible := &models.IssueComment{
		ID: uuid.New(), IssueID: issue.ID, UserID: author.ID,
		Comment:     "looks fine",
		Visibility:  models.VisibilityVisible,
		AbuseStatus: models.AbuseUnmoderated,
	}
	hidden := &models.IssueComment{
		ID: uuid.New(), IssueID: issue.ID, UserID: author.ID,
		Comment:     "moderated abusive text",
		Visibility:  models.VisibilityHidden,
		AbuseStatus: models.AbuseConfirmed,
	}
	require.NoError(t, f.db.Create(visible).Error)
	require.NoError(t, f.db.Create(hidden).Error)

	// A regular user gets the visible slice only, even with no filters.
	resp := f.get(t, "/api/comments", reader.ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeComments(t, resp)
	assert.Equal(t, int64(1), page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, visible.ID, page.Results[0].ID)

	// Asking for the hidden set outright is forbidden.
	resp = f.get(t, "/api/comments?only_hidden=true", reader.ID)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = f.get(t, "/api/comments?visibility=hidden", reader.ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = decodeComments(t, resp)
	assert.Equal(t, int64(1), page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, visible.ID, page.Results[0].ID)

	// Sysadmins see everything and may filter on visibility.
	resp = f.get(t, "/api/comments", admin.ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = decodeComments(t, resp)
	assert.Equal(t, int64(2), page.Count)

	resp = f.get(t, "/api/comments?only_hidden=true", admin.ID)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = decodeComments(t, resp)
	assert.Equal(t, int64(1), page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, hidden.ID, page.Results[0].ID)
}
