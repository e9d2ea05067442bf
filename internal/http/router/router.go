package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/brasmat/proposal-api/internal/auth"
	"github.com/brasmat/proposal-api/internal/config"
	"github.com/brasmat/proposal-api/internal/database"
	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/erp"
	"github.com/brasmat/proposal-api/internal/http/handler"
	"github.com/brasmat/proposal-api/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/brasmat/proposal-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Proposal     *handler.ProposalHandler
	Approval     *handler.ApprovalHandler
	DiscountRule *handler.DiscountRuleHandler
	Notification *handler.NotificationHandler
	Messaging    *handler.MessagingHandler
	Assistant    *handler.AssistantHandler
	Document     *handler.DocumentHandler
	Auth         *handler.AuthHandler
	Device       *handler.DeviceHandler
	Client       *handler.ClientHandler
	Dashboard    *handler.DashboardHandler
	Audit        *handler.AuditHandler
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	redis           *redis.Client
	erp             *erp.Client
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	auditMiddleware *middleware.AuditMiddleware
	handlers        Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		redis:           redisClient,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		auditMiddleware: auditMiddleware,
		handlers:        handlers,
	}
}

// WithERP reports the ERP connection on the readiness probe. The ERP is optional so a failing
// check does not make the API unready.
func (rt *Router) WithERP(client *erp.Client) *Router {
	rt.erp = client
	return rt
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/ready", rt.ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	staff := rt.authMiddleware.RequireStaff
	admin := rt.authMiddleware.RequireAdmin

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(rt.rateLimiter.LimitByIP)
			r.With(rt.rateLimiter.LimitLogin).Post("/auth/login", h.Auth.Login)
			r.Post("/auth/password/check", h.Auth.CheckPassword)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.authMiddleware.RequireActiveSession)
			r.Use(rt.rateLimiter.Limit)
			r.Use(rt.auditMiddleware.Audit)

			r.Route("/auth", func(r chi.Router) {
				r.Get("/me", h.Auth.Me)
				r.Post("/logout", h.Auth.Logout)
				r.Get("/session", h.Auth.SessionStatus)
				r.Post("/session/activity", h.Auth.Activity)
				r.Post("/session/extend", h.Auth.Extend)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Post("/fingerprint", h.Device.Fingerprint)
				r.Post("/check", h.Device.Check)
				r.Delete("/", h.Device.Forget)
			})

			r.Route("/clients", func(r chi.Router) {
				r.With(staff).Get("/", h.Client.List)
				r.With(staff).Post("/", h.Client.Create)
				r.Get("/me", h.Client.Mine)
				r.Get("/slug/{slug}", h.Client.GetBySlug)
				r.Get("/{id}", h.Client.GetByID)
			})

			r.Route("/proposals", func(r chi.Router) {
				r.Get("/", h.Proposal.List)
				r.Post("/", h.Proposal.Create)
				r.Get("/{id}", h.Proposal.GetByID)
				r.Post("/{id}/send", h.Proposal.Send)
				r.Post("/{id}/accept", h.Proposal.Accept)
				r.Post("/{id}/reject", h.Proposal.Reject)
				r.Get("/{id}/interactions", h.Proposal.Interactions)
				r.Post("/{id}/notes", h.Proposal.AddNote)
				r.Get("/{id}/layout", h.Proposal.Layout)
				r.Post("/{id}/follow-up", h.Messaging.FollowUp)
				r.Get("/{id}/messages", h.Messaging.ProposalMessages)
				r.Get("/{id}/documents", h.Document.ListForProposal)
			})

			r.Route("/approval-requests", func(r chi.Router) {
				r.Get("/", h.Approval.List)
				r.Post("/", h.Approval.Create)
				r.Patch("/{id}", h.Approval.Update)
			})

			r.Route("/discount-rules", func(r chi.Router) {
				r.With(staff).Get("/", h.DiscountRule.List)
				r.Post("/check", h.DiscountRule.Check)
				r.With(admin).Patch("/{id}", h.DiscountRule.Update)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Get("/count", h.Notification.GetUnreadCount)
				r.Put("/read-all", h.Notification.MarkAllAsRead)
				r.Put("/{id}/read", h.Notification.MarkAsRead)
			})

			r.Route("/whatsapp", func(r chi.Router) {
				r.Use(staff)
				r.Post("/send", h.Messaging.Send)
				r.Get("/messages", h.Messaging.History)
			})

			r.Post("/assistant/chat", h.Assistant.Chat)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/extract", h.Document.Extract)
				r.Get("/{id}/download", h.Document.Download)
			})

			r.With(staff).Get("/dashboard/proposals", h.Dashboard.GetMetrics)
			r.With(staff).Get("/search", h.Dashboard.Search)

			r.With(admin).Get("/audit", h.Audit.List)
		})
	})

	return r
}

// ready checks every backing dependency the API cannot serve without
func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := database.Ping(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if rt.redis != nil {
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.logger.Error("Redis health check failed", zap.Error(err))
			checks["redis"] = "unhealthy"
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	if rt.erp.IsEnabled() {
		checks["erp"] = rt.erp.HealthCheck(ctx).Status
	}

	status, label := http.StatusOK, "healthy"
	if !allHealthy {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.HealthResponse{Status: label, Checks: checks})
}
