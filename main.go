package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"geochat-service/internal/auth"
	"geochat-service/internal/config"
	"geochat-service/internal/db"
	"geochat-service/internal/handlers"
	"geochat-service/internal/logging"
	"geochat-service/internal/middleware"
	"geochat-service/internal/observability"
	"geochat-service/internal/rabbitmq"
	"geochat-service/internal/realtime"
	"geochat-service/internal/repositories"
	"geochat-service/internal/services"
	"geochat-service/internal/telemetry"
	"geochat-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: cfg.Server.ServiceName})
	logger := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Server.ServiceName, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracer")
	}

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Server.ServiceName, cfg.Server.Environment)

	hub := ws.NewHub()
	var events services.EventPublisher = realtime.NewLocalBus(hub)
	if cfg.Redis.Address != "" {
		bus, err := realtime.NewRedisBus(ctx, cfg.Redis, hub)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, chat events stay on this instance")
		} else {
			defer bus.Close()
			go bus.Run(ctx)
			events = bus
		}
	}

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	proximityService := services.NewProximityService(userRepo, cfg.Geo)
	chatService := services.NewChatService(userRepo, messageRepo, events, auditEmitter, cfg.Chat)
	moderationService := services.NewModerationService(userRepo, chatService, hub, auditEmitter)
	authService := auth.NewService(userRepo, cfg.JWT, auth.WithAdminEmails(cfg.Admin.Emails))

	authHandler := handlers.NewAuthHandler(authService, chatService)
	userHandler := handlers.NewUserHandler(proximityService)
	chatHandler := handlers.NewChatHandler(chatService)
	adminHandler := handlers.NewAdminHandler(moderationService)
	chatWS := ws.NewChatWebSocketHandler(hub, authService, userRepo)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Server.ServiceName))
	router.Use(logging.GinMiddleware(*logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	protected := api.Group("", middleware.AuthMiddleware(authService), middleware.BanCheck(userRepo))
	protected.POST("/logout", authHandler.Logout)
	protected.PUT("/users/me/location", userHandler.UpdateLocation)
	protected.GET("/users/nearby", userHandler.Nearby)
	protected.POST("/chat/join", chatHandler.Join)
	protected.POST("/chat/message", chatHandler.SendMessage)
	protected.GET("/chat/messages", chatHandler.GetMessages)

	// reachable while banned
	api.GET("/user/ban-status", middleware.AuthMiddleware(authService), adminHandler.BanStatus)

	admin := protected.Group("/admin", middleware.RequireAdmin(userRepo))
	admin.GET("/users", adminHandler.ListUsers)
	admin.POST("/users/:id/ban", adminHandler.Ban)
	admin.POST("/users/:id/unban", adminHandler.Unban)

	router.GET("/ws/chat", chatWS.Handle)

	handlers.RegisterDebugRoutes(router.Group("", middleware.AuthMiddleware(authService)), auditEmitter, chatService, cfg.Debug.Routes)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("geochat service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown")
	}
}
