package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brasmat/proposal-api/docs"
	"github.com/brasmat/proposal-api/internal/assistant"
	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/database"
	"github.com/brasmat/proposal-api/internal/erp"
	"github.com/brasmat/proposal-api/internal/extraction"
	"github.com/brasmat/proposal-api/internal/fingerprint"
	"github.com/brasmat/proposal-api/internal/followup"
	"github.com/brasmat/proposal-api/internal/http/handler"
	"github.com/brasmat/proposal-api/internal/http/middleware"
	"github.com/brasmat/proposal-api/internal/http/router"
	"github.com/brasmat/proposal-api/internal/jobs"
	"github.com/brasmat/proposal-api/internal/logger"
	"github.com/brasmat/proposal-api/internal/mailer"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/brasmat/proposal-api/internal/service"
	"github.com/brasmat/proposal-api/internal/session"
	"github.com/brasmat/proposal-api/internal/storage"
	"github.com/brasmat/proposal-api/internal/whatsapp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title Brasmat Proposal API
// @version 1.0
// @description Commercial proposals, discount approvals and client follow-up for Brasmat sellers and clients
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email ti@brasmat.com.br

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)

	// In staging/production secrets come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if cfg.App.PublicURL != "" {
		docs.SwaggerInfo.Host = hostOf(cfg.App.PublicURL)
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// ERP lookup is optional; the API runs without it
	var customerLookup service.CustomerLookup
	erpClient, err := erp.NewClient(&cfg.ERP, log)
	if err != nil {
		log.Warn("ERP connection failed, continuing without it", zap.Error(err))
	} else if erpClient != nil {
		customerLookup = erpClient
	}

	var messageSender service.MessageSender
	if cfg.WhatsApp.Enabled {
		messageSender = whatsapp.NewClient(&cfg.WhatsApp, log)
	} else {
		log.Info("WhatsApp gateway disabled")
	}

	followupClient := followup.NewClient(&cfg.Redis)
	defer func() { _ = followupClient.Close() }()

	sessions := session.NewManager(
		session.NewStore(redisClient, cfg.Session.KeyPrefix, cfg.Session.Timeout()),
		session.Config{Timeout: cfg.Session.Timeout(), Warning: cfg.Session.Warning(), Tick: time.Second},
		log,
	)
	defer sessions.Close()

	// Repositories
	proposalRepo := repository.NewProposalRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	clientRepo := repository.NewClientRepository(db)
	numberRepo := repository.NewNumberSequenceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	discountRuleRepo := repository.NewDiscountRuleRepository(db)
	messageRepo := repository.NewWhatsAppMessageRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Services
	auditLogService := service.NewAuditLogService(auditLogRepo, log)
	discountRuleService := service.NewDiscountRuleService(discountRuleRepo, log)
	proposalService := service.NewProposalService(db, proposalRepo, interactionRepo, clientRepo, numberRepo, notificationRepo, discountRuleService, log)
	approvalService := service.NewApprovalService(db, approvalRepo, proposalRepo, interactionRepo, notificationRepo, mailer.New(&cfg.Mail, log), cfg.App.PublicURL, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	messagingService := service.NewMessagingService(messageRepo, proposalRepo, clientRepo, interactionRepo, messageSender, followupClient, cfg.WhatsApp.FromPhone, log)
	assistantService := service.NewAssistantService(assistant.NewClient(&cfg.Assistant), log)
	documentService := service.NewDocumentService(documentRepo, proposalRepo, fileStorage, extraction.NewClient(&cfg.Extraction), cfg.Extraction.StoreUploads, log)
	authService := service.NewAuthService(auth.NewIdentityClient(&cfg.Auth), auth.NewJWTValidator(&cfg.Auth), sessions, auditLogService, log)
	deviceService := service.NewDeviceService(fingerprint.NewRedisStore(redisClient, ""), log)
	clientService := service.NewClientService(clientRepo, customerLookup, log)
	dashboardService := service.NewDashboardService(proposalRepo, approvalRepo, clientRepo, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, sessions, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(auditLogService, nil, log)

	rt := router.NewRouter(cfg, log, db, redisClient, authMiddleware, rateLimiter, auditMiddleware, router.Handlers{
		Proposal:     handler.NewProposalHandler(proposalService, log),
		Approval:     handler.NewApprovalHandler(approvalService, log),
		DiscountRule: handler.NewDiscountRuleHandler(discountRuleService, log),
		Notification: handler.NewNotificationHandler(notificationService, log),
		Messaging:    handler.NewMessagingHandler(messagingService, log),
		Assistant:    handler.NewAssistantHandler(assistantService, log),
		Document:     handler.NewDocumentHandler(documentService, cfg.Storage.MaxUploadSizeMB*1024*1024, log),
		Auth:         handler.NewAuthHandler(authService, log),
		Device:       handler.NewDeviceHandler(deviceService, log),
		Client:       handler.NewClientHandler(clientService, log),
		Dashboard:    handler.NewDashboardHandler(dashboardService, log),
		Audit:        handler.NewAuditHandler(auditLogService, log),
	}).WithERP(erpClient)

	// Background processing
	var (
		scheduler *jobs.Scheduler
		worker    *followup.Worker
	)
	if cfg.Jobs.Enabled {
		worker = followup.NewWorker(&cfg.Redis, cfg.Jobs.WorkerConcurrency, messagingService, log)
		if err := worker.Start(); err != nil {
			return err
		}

		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterExpirationSweepJob(
			scheduler,
			proposalService,
			followupClient,
			log,
			cfg.Jobs.ExpirationSweepCron,
			cfg.Jobs.ExpiringSoonDays,
			5*time.Minute,
			true,
		); err != nil {
			log.Error("Failed to register expiration sweep job", zap.Error(err))
		}
		if err := jobs.RegisterAuditCleanupJob(
			scheduler,
			auditLogService,
			log,
			cfg.Jobs.AuditCleanupCron,
			cfg.Jobs.AuditRetentionDays,
			10*time.Minute,
		); err != nil {
			log.Error("Failed to register audit cleanup job", zap.Error(err))
		}
		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}
		if worker != nil {
			worker.Shutdown()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if erpClient != nil {
			if err := erpClient.Close(); err != nil {
				log.Warn("Error closing ERP connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

// hostOf returns the host of the public URL for the swagger UI
func hostOf(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Host == "" {
		return publicURL
	}
	return u.Host
}
