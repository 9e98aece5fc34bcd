package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/api/handlers"
	"github.com/teilehaus/serviceportal/internal/api/middleware"
	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/config"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/service"
	"github.com/teilehaus/serviceportal/internal/storage"
)

// Dependencies are the collaborators the routes are built on
type Dependencies struct {
	Repos     *repository.Repositories
	Objects   storage.Store
	Channel   *broadcast.Channel
	Publisher events.Publisher
	Issuer    *auth.Issuer
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	repos := deps.Repos
	complaints := service.NewComplaintService(repos, deps.Objects, deps.Publisher, logger)
	returns := service.NewReturnService(repos, deps.Publisher, logger)
	inquiries := service.NewInquiryService(repos, deps.Channel, deps.Publisher, logger)
	popup := service.NewPopupService(repos, deps.Channel, logger)
	authService := service.NewAuthService(repos, deps.Issuer, logger)

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyHeader, handlers.TabHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Public submissions
		public := v1.Group("")
		public.Use(middleware.RateLimitMiddleware(limiter, logger))
		{
			submissions := public.Group("")
			submissions.Use(middleware.IdempotencyMiddleware(repos, logger))
			submissions.POST("/complaints", handlers.HandleSubmitComplaint(complaints, repos, logger))
			submissions.POST("/returns", handlers.HandleSubmitReturn(returns, repos, logger))

			public.POST("/inquiries", handlers.HandleSubmitInquiry(inquiries, logger))
			public.POST("/attachments", handlers.HandleUploadAttachment(deps.Objects, logger))
			public.POST("/admin/login", handlers.HandleLogin(authService, logger))
		}

		v1.GET("/popup-config", handlers.HandleGetPopupConfig(popup, logger))
		v1.GET("/tabs/ws", handlers.HandleTabSocket(deps.Channel, cfg.CORS.AllowedOrigins, logger))

		// Operator routes
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AuthMiddleware(deps.Issuer, logger))
		{
			handlers.RecordEndpoints[*domain.Complaint, *service.ComplaintDetail]{
				Kind:       domain.RecordKindComplaint,
				List:       complaints.ListComplaints,
				Detail:     complaints.GetComplaintDetail,
				SetStatus:  complaints.SetStatus,
				Transition: complaints.Transition,
				Delete:     complaints.Delete,
				Events:     complaints.Events,
			}.Register(adminRoutes.Group("/complaints"), logger)

			handlers.RecordEndpoints[*domain.Return, *service.ReturnDetail]{
				Kind:       domain.RecordKindReturn,
				List:       returns.ListReturns,
				Detail:     returns.GetReturnDetail,
				SetStatus:  returns.SetStatus,
				Transition: returns.Transition,
				Delete:     returns.Delete,
				Events:     returns.Events,
			}.Register(adminRoutes.Group("/returns"), logger)

			handlers.RecordEndpoints[*domain.Inquiry, *domain.Inquiry]{
				Kind:       domain.RecordKindInquiry,
				List:       inquiries.ListInquiries,
				Detail:     inquiries.GetInquiry,
				SetStatus:  inquiries.SetStatus,
				Transition: inquiries.Transition,
				Delete:     inquiries.Delete,
				Events:     inquiries.Events,
			}.Register(adminRoutes.Group("/inquiries"), logger)

			adminRoutes.GET("/attachments/*path", handlers.HandleGetAttachment(deps.Objects, logger))
			adminRoutes.PUT("/popup-config", handlers.HandleSavePopupConfig(popup, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= 500 {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
