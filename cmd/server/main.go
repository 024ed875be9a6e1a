package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/taskito/backend/internal/config"
	"github.com/taskito/backend/internal/database"
	"github.com/taskito/backend/internal/handlers"
	"github.com/taskito/backend/internal/middleware"
	"github.com/taskito/backend/internal/services"
	"github.com/taskito/backend/internal/storage"
	"github.com/taskito/backend/pkg/logger"
	"github.com/taskito/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	auditService := services.NewAuditService(db)
	membershipService := services.NewMembershipService(db, auditService)
	reminderService := services.NewReminderService(db, cfg.Reminder.Lookahead)
	reminderService.Start(cfg.Reminder.Interval)
	defer reminderService.Stop()

	authHandler := handlers.NewAuthHandler(db, auditService)
	usersHandler := handlers.NewUsersHandler(db)
	workspacesHandler := handlers.NewWorkspacesHandler(db, storageClient, auditService)
	membersHandler := handlers.NewMembersHandler(db, membershipService)
	tasksHandler := handlers.NewTasksHandler(db)
	tagsHandler := handlers.NewTagsHandler(db)
	attachmentsHandler := handlers.NewAttachmentsHandler(db, storageClient)
	notificationsHandler := handlers.NewNotificationsHandler(db)
	dashboardHandler := handlers.NewDashboardHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 30 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
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

	tagRoutes := api.Group("/tags", authMiddleware.RequireAuth)
	tagRoutes.Put("/:id", tagsHandler.Update)
	tagRoutes.Delete("/:id", tagsHandler.Delete)

	attachmentRoutes := api.Group("/attachments", authMiddleware.RequireAuth)
	attachmentRoutes.Get("/:id/download-url", attachmentsHandler.DownloadURL)
	attachmentRoutes.Delete("/:id", attachmentsHandler.Delete)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
