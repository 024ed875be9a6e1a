package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/models"
	"github.com/taskito/backend/internal/services"
	"github.com/taskito/backend/pkg/logger"
	"github.com/taskito/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Task{},
		&models.Tag{},
		&models.Attachment{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	auditService := services.NewAuditService(db)
	membershipService := services.NewMembershipService(db, auditService)

	authHandler := NewAuthHandler(db, auditService)
	usersHandler := NewUsersHandler(db)
	workspacesHandler := NewWorkspacesHandler(db, nil, auditService)
	membersHandler := NewMembersHandler(db, membershipService)
	tasksHandler := NewTasksHandler(db)
	tagsHandler := NewTagsHandler(db)
	attachmentsHandler := NewAttachmentsHandler(db, nil)
	notificationsHandler := NewNotificationsHandler(db)
	dashboardHandler := NewDashboardHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 30 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:5173"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	api.Get("/users/search", authMiddleware.RequireAuth, usersHandler.Search)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Delete("/:id", usersHandler.Delete)

	workspaceRoutes := api.Group("/workspaces", authMiddleware.RequireAuth)
	workspaceRoutes.Post("/", workspacesHandler.Create)
	workspaceRoutes.Get("/", workspacesHandler.List)
	workspaceRoutes.Get("/:id", workspacesHandler.Get)
	workspaceRoutes.Put("/:id", workspacesHandler.Update)
	workspaceRoutes.Delete("/:id", workspacesHandler.Delete)

	workspaceRoutes.Get("/:id/members", membersHandler.List)
	workspaceRoutes.Post("/:id/members", membersHandler.Add)
	workspaceRoutes.Patch("/:id/members/:userId", membersHandler.ChangeRole)
	workspaceRoutes.Delete("/:id/members/:userId", membersHandler.Remove)

	workspaceRoutes.Post("/:id/tasks", tasksHandler.Create)
	workspaceRoutes.Get("/:id/tasks", tasksHandler.List)
	workspaceRoutes.Post("/:id/tags", tagsHandler.Create)
	workspaceRoutes.Get("/:id/tags", tagsHandler.List)
	workspaceRoutes.Get("/:id/dashboard", dashboardHandler.Summary)

	taskRoutes := api.Group("/tasks", authMiddleware.RequireAuth)
	taskRoutes.Get("/:id", tasksHandler.Get)
	taskRoutes.Put("/:id", tasksHandler.Update)
	taskRoutes.Patch("/:id/status", tasksHandler.UpdateStatus)
	taskRoutes.Delete("/:id", tasksHandler.Delete)
	taskRoutes.Post("/:id/tags/:tagId", tasksHandler.AttachTag)
	taskRoutes.Delete("/:id/tags/:tagId", tasksHandler.DetachTag)
	taskRoutes.Post("/:id/attachments", attachmentsHandler.Upload)
	taskRoutes.Get("/:id/attachments", attachmentsHandler.List)

	attachmentRoutes := api.Group("/attachments", authMiddleware.RequireAuth)
	attachmentRoutes.Get("/:id/download-url", attachmentsHandler.DownloadURL)
	attachmentRoutes.Delete("/:id", attachmentsHandler.Delete)

	tagRoutes := api.Group("/tags", authMiddleware.RequireAuth)
	tagRoutes.Put("/:id", tagsHandler.Update)
	tagRoutes.Delete("/:id", tagsHandler.Delete)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestWorkspace(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Workspace {
	t.Helper()

	workspace := &models.Workspace{
		Name:    name,
		Type:    models.WorkspaceTypeProfessional,
		OwnerID: owner.ID,
	}
	if err := db.Create(workspace).Error; err != nil {
		t.Fatalf("failed creating test workspace: %v", err)
	}

	membership := &models.WorkspaceMember{
		UserID:      owner.ID,
		WorkspaceID: workspace.ID,
		Role:        models.MemberRoleOwner,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating owner membership: %v", err)
	}

	return workspace
}

func addTestMember(t *testing.T, db *gorm.DB, workspaceID, userID uuid.UUID, role models.MemberRole) *models.WorkspaceMember {
	t.Helper()

	membership := &models.WorkspaceMember{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Role:        role,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating test membership: %v", err)
	}
	return membership
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
