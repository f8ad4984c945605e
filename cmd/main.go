package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-delivery-service/internal/channel"
	"github.com/vhvplatform/go-delivery-service/internal/consumer"
	"github.com/vhvplatform/go-delivery-service/internal/dispatch"
	"github.com/vhvplatform/go-delivery-service/internal/handler"
	"github.com/vhvplatform/go-delivery-service/internal/preference"
	"github.com/vhvplatform/go-delivery-service/internal/realtime"
	"github.com/vhvplatform/go-delivery-service/internal/repository"
	"github.com/vhvplatform/go-delivery-service/internal/scheduler"
	"github.com/vhvplatform/go-delivery-service/internal/shared/config"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
	"github.com/vhvplatform/go-delivery-service/internal/shared/mongodb"
	"github.com/vhvplatform/go-delivery-service/internal/shared/rabbitmq"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Delivery Service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize repositories
	notificationRepo := repository.NewNotificationRepository(mongoClient)
	templateRepo := repository.NewTemplateRepository(mongoClient)
	preferencesRepo := repository.NewPreferencesRepository(mongoClient)
	queueRepo := repository.NewQueueRepository(mongoClient)
	deliveryRepo := repository.NewDeliveryRepository(mongoClient)

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer indexCancel()
	for name, ensure := range map[string]func(context.Context) error{
		"notifications": notificationRepo.EnsureIndexes,
		"templates":     templateRepo.EnsureIndexes,
		"preferences":   preferencesRepo.EnsureIndexes,
		"queue":         queueRepo.EnsureIndexes,
		"ledger":        deliveryRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal("Failed to ensure indexes", "collection", name, "error", err)
		}
	}

	// Initialize channel senders
	limiter := channel.NewDestinationLimiter(cfg.Dispatch.RateLimitPerDest, cfg.Dispatch.RateLimitBurst)
	retries := cfg.Dispatch.SendRetries
	baseDelay := cfg.Dispatch.RetryBaseDelay

	emailSender := channel.NewEmailSender(channel.EmailConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	}, retries, baseDelay, limiter, log)
	smsSender := channel.NewSMSSender(channel.SMSConfig{
		Provider: cfg.SMS.Provider,
		From:     cfg.SMS.From,
	}, retries, baseDelay, limiter, log)
	pushSender := channel.NewPushSender(channel.PushConfig{
		Provider: cfg.Push.Provider,
	}, retries, baseDelay, limiter, log)
	webhookSender := channel.NewWebhookSender(retries, baseDelay, limiter, log)
	inAppSender := channel.NewInAppSender()

	registry := channel.NewRegistry(emailSender, smsSender, pushSender, webhookSender, inAppSender)

	// Initialize realtime hub
	hub := realtime.NewHub(log)
	defer hub.Close()

	// Initialize dispatch pipeline
	filter := preference.NewFilter(preferencesRepo)
	orchestrator := dispatch.NewOrchestrator(
		notificationRepo,
		templateRepo,
		queueRepo,
		deliveryRepo,
		filter,
		registry,
		hub,
		cfg.Dispatch.Timeout,
		cfg.Queue.MaxAttempts,
		log,
	)

	// Initialize scheduler
	deliveryScheduler := scheduler.NewScheduler(queueRepo, orchestrator, notificationRepo, scheduler.Config{
		Workers:         cfg.Queue.Workers,
		PollInterval:    cfg.Queue.PollInterval,
		BatchSize:       cfg.Queue.BatchSize,
		ProcessingLease: cfg.Queue.ProcessingLease,
		Retention:       time.Duration(cfg.Queue.RetentionDays) * 24 * time.Hour,
	}, log)
	if err := deliveryScheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}
	defer deliveryScheduler.Stop()

	// Initialize HTTP handlers
	dispatchHandler := handler.NewDispatchHandler(orchestrator, notificationRepo, log)
	templateHandler := handler.NewTemplateHandler(templateRepo, log)
	preferencesHandler := handler.NewPreferencesHandler(preferencesRepo, log)
	ledgerHandler := handler.NewLedgerHandler(deliveryRepo, notificationRepo, queueRepo, log)
	queueHandler := handler.NewQueueHandler(queueRepo, log)
	wsHandler := handler.NewWSHandler(hub, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		notifications := v1.Group("/notifications")
		{
			notifications.POST("/dispatch", dispatchHandler.Dispatch)
			notifications.GET("", dispatchHandler.ListNotifications)
			notifications.GET("/:id", dispatchHandler.GetNotification)
			notifications.POST("/:id/cancel", dispatchHandler.CancelNotification)
			notifications.GET("/:id/attempts", ledgerHandler.ListAttempts)
			notifications.GET("/:id/statuses", ledgerHandler.ListStatuses)
		}

		templates := v1.Group("/templates")
		{
			templates.PUT("", templateHandler.UpsertTemplate)
			templates.GET("", templateHandler.ListTemplates)
			templates.GET("/:name", templateHandler.GetTemplate)
			templates.POST("/:name/render", templateHandler.RenderTemplate)
			templates.DELETE("/:name", templateHandler.DeactivateTemplate)
		}

		preferences := v1.Group("/preferences")
		{
			preferences.GET("/:user_id", preferencesHandler.GetPreferences)
			preferences.PUT("/:user_id", preferencesHandler.UpdatePreferences)
			preferences.DELETE("/:user_id", preferencesHandler.DeletePreferences)
		}

		queue := v1.Group("/queue")
		{
			queue.GET("", queueHandler.ListQueue)
			queue.POST("/:id/retry", queueHandler.RetryQueued)
		}

		v1.GET("/stats", ledgerHandler.GetStats)
	}

	// Realtime stream
	router.GET("/ws/:user_id", wsHandler.Connect)

	// Start RabbitMQ consumer
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		defer rabbitClient.Close()

		eventConsumer := consumer.NewEventConsumer(rabbitClient, orchestrator, log)
		if err := eventConsumer.Start(consumerCtx); err != nil {
			log.Fatal("Failed to start event consumer", "error", err)
		}
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Delivery Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Delivery Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Delivery Service stopped")
}
