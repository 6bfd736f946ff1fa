package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/wilsbb/tor-accreditation-api/api/swagger"
	"github.com/wilsbb/tor-accreditation-api/internal/handler"
	"github.com/wilsbb/tor-accreditation-api/internal/middleware"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/repository"
	"github.com/wilsbb/tor-accreditation-api/internal/service"
	"github.com/wilsbb/tor-accreditation-api/internal/upstream"
	"github.com/wilsbb/tor-accreditation-api/pkg/cache"
	"github.com/wilsbb/tor-accreditation-api/pkg/config"
	"github.com/wilsbb/tor-accreditation-api/pkg/database"
	"github.com/wilsbb/tor-accreditation-api/pkg/logger"
	corsmiddleware "github.com/wilsbb/tor-accreditation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/wilsbb/tor-accreditation-api/pkg/middleware/requestid"
)

// @title TOR Accreditation API
// @version 1.0.0
// @description Workflow engine for transcript-of-records accreditation
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	submissionRepo := repository.NewSubmissionRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Upstream collaborators.
	ocrClient := upstream.NewOCRClient(cfg.OCR.BaseURL, cfg.OCR.Timeout)
	profileClient := upstream.NewProfileClient(cfg.Profile.BaseURL, cfg.Profile.Timeout)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Accreditation.TrackingCacheTTL, logr,
		cfg.Accreditation.CacheEnabled && redisClient != nil)
	auditSvc := service.NewAuditService(auditRepo, logr)
	syncSvc := service.NewSyncService(ocrClient, entryRepo, metricsSvc, cfg.Accreditation.MaxSubjectUnits, logr)
	workflowSvc := service.NewWorkflowService(submissionRepo, entryRepo, summaryRepo, syncSvc,
		auditSvc, metricsSvc, cacheSvc, cfg.Accreditation.StrictFinalize, logr)
	evaluationSvc := service.NewEvaluationService(entryRepo, submissionRepo, auditSvc, logr)
	trackingSvc := service.NewTrackingService(submissionRepo, entryRepo, summaryRepo, curriculumRepo,
		profileClient, cacheSvc, cfg.Accreditation.TrackingCacheTTL, logr)
	exportSvc := service.NewExportService(trackingSvc, nil, nil, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tor-accreditation-api",
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	entryHandler := handler.NewEntryHandler(evaluationSvc)
	trackingHandler := handler.NewTrackingHandler(trackingSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
	self := middleware.RBAC("ADMIN", "FACULTY", "SELF")

	requests := authed.Group("/requests")
	requests.POST("", workflowHandler.Submit)
	requests.GET("", staff, trackingHandler.ListByStage)
	requests.POST("/:applicantId/accept", staff, workflowHandler.Accept)
	requests.POST("/:applicantId/deny", staff, workflowHandler.Deny)
	requests.POST("/:applicantId/cancel", self, workflowHandler.Cancel)
	requests.POST("/:applicantId/finalize", staff, workflowHandler.Finalize)
	requests.POST("/:applicantId/sync", staff, workflowHandler.Sync)
	requests.GET("/:applicantId/entries", self, entryHandler.List)

	entries := authed.Group("/entries")
	entries.PATCH("/:id/evaluation", staff, entryHandler.UpdateEvaluation)
	entries.PATCH("/:id/note", staff, entryHandler.UpdateNote)

	tracking := authed.Group("/tracking")
	tracking.GET("/:applicantId", self, trackingHandler.Details)
	tracking.GET("/:applicantId/progress", self, trackingHandler.Progress)

	finalized := authed.Group("/finalized")
	finalized.GET("", staff, trackingHandler.FinalizedList)
	finalized.GET("/:submissionId", staff, trackingHandler.FinalizedReport)
	finalized.GET("/:submissionId/export", staff, trackingHandler.Export)

	authed.GET("/curriculum", trackingHandler.Curriculum)
	authed.GET("/audit", staff, auditHandler.Recent)
	authed.GET("/status/runtime", staff, metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
