package main

import (
	"context"
	"log"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devtrackhq/devtrack/internal/automation"
	"github.com/devtrackhq/devtrack/internal/config"
	"github.com/devtrackhq/devtrack/internal/constants"
	"github.com/devtrackhq/devtrack/internal/database"
	"github.com/devtrackhq/devtrack/internal/github"
	"github.com/devtrackhq/devtrack/internal/handlers"
	"github.com/devtrackhq/devtrack/internal/logging"
	"github.com/devtrackhq/devtrack/internal/middleware"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
	"github.com/devtrackhq/devtrack/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logging.New(cfg.LogFile)
	defer logger.Sync()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetDB()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commitRepo := repository.NewCommitRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Realtime hub: clients may join their own user channel and the
	// channels of projects they are accepted members of.
	hub := realtime.NewHub(logger, func(userID uint64, channel string) bool {
		if channel == realtime.UserChannel(userID) {
			return true
		}
		projectID, ok := realtime.ParseProjectChannel(channel)
		if !ok {
			return false
		}
		member, err := projectRepo.FindMember(projectID, userID)
		return err == nil && member.Status == models.MemberStatusAccepted
	})

	// Cross-instance fan-out goes through Redis; the hub consumes the
	// stream and delivers frames to locally connected clients.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	bus := realtime.NewRedisBus(redisClient, logger)
	go bus.Subscribe(context.Background(), hub)
	var publisher realtime.Publisher = bus

	// Services
	ghClient := github.NewClient(cfg.GithubAPIURL)
	authService := services.NewAuthService(userRepo)
	notificationService := services.NewNotificationService(notificationRepo, userRepo, publisher, logger)
	reconciler := automation.NewReconciler(taskRepo, userRepo, publisher, logger)
	ingestService := services.NewIngestService(commitRepo, projectRepo, reconciler, publisher, ghClient, logger)
	taskService := services.NewTaskService(taskRepo, userRepo, notificationService, publisher, logger)
	projectService := services.NewProjectService(projectRepo, taskRepo, userRepo, notificationService, ingestService, publisher, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectService, ingestService)
	taskHandler := handlers.NewTaskHandler(taskService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(ingestService, logger)
	wsHandler := handlers.NewWSHandler(hub)

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	store, err := redisStore.NewStore(
		10,
		"tcp",
		cfg.RedisAddr,
		"",
		"",
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "DevTrack API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Webhook ingress (authenticated by the hosting provider, not a session)
		api.POST("/webhooks/github-push", webhookHandler.GithubPush)

		// Realtime channel subscriptions
		api.GET("/ws", middleware.RequireAuth(), wsHandler.Serve)

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:id", middleware.RequireProjectAccess(), projectHandler.Get)
			projects.PUT("/:id", middleware.RequireProjectAccess(), middleware.RequireProjectOwner(), projectHandler.Update)
			projects.DELETE("/:id", middleware.RequireProjectAccess(), middleware.RequireProjectOwner(), projectHandler.Delete)
			projects.POST("/:id/leave", middleware.RequireProjectAccess(), projectHandler.Leave)
			projects.DELETE("/:id/members/:userId", middleware.RequireProjectAccess(), middleware.RequireProjectOwner(), projectHandler.RemoveMember)
			projects.PUT("/:id/members/:userId", middleware.RequireProjectAccess(), middleware.RequireProjectOwner(), projectHandler.UpdateMemberRole)
			projects.POST("/:id/invite", middleware.RequireProjectAccess(), projectHandler.Invite)
			projects.POST("/:id/invitations/accept", projectHandler.AcceptInvitation)
			projects.POST("/:id/invitations/reject", projectHandler.RejectInvitation)
			projects.POST("/:id/members/:userId/nudge", middleware.RequireProjectAccess(), projectHandler.Nudge)
			projects.GET("/:id/commits", middleware.RequireProjectAccess(), projectHandler.ListCommits)
			projects.POST("/:id/sync", middleware.RequireProjectAccess(), projectHandler.SyncCommits)

			// Task routes, scoped to a project
			projects.POST("/:id/tasks", middleware.RequireProjectAccess(), taskHandler.Create)
			projects.GET("/:id/tasks", middleware.RequireProjectAccess(), taskHandler.List)
			projects.GET("/:id/tasks/:taskId", middleware.RequireProjectAccess(), taskHandler.Get)
			projects.PATCH("/:id/tasks/:taskId/status", middleware.RequireProjectAccess(), taskHandler.ChangeStatus)
			projects.POST("/:id/tasks/:taskId/assign", middleware.RequireProjectAccess(), taskHandler.ToggleAssignment)
			projects.POST("/:id/tasks/:taskId/comments", middleware.RequireProjectAccess(), taskHandler.AddComment)
		}

		// Invitation and personal routes (protected)
		api.GET("/invitations", middleware.RequireAuth(), projectHandler.ListInvitations)
		api.GET("/tasks/mine", middleware.RequireAuth(), taskHandler.MyTasks)

		// Notification routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(middleware.RequireAuth())
		{
			notifications.GET("", notificationHandler.List)
			notifications.PATCH("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}
	}

	// Start server
	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
