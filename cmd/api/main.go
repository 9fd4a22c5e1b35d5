package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tutorlink/tutorlink-api/api/swagger"
	"github.com/tutorlink/tutorlink-api/internal/handler"
	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/repository"
	"github.com/tutorlink/tutorlink-api/internal/routes"
	"github.com/tutorlink/tutorlink-api/internal/service"
	"github.com/tutorlink/tutorlink-api/pkg/cache"
	"github.com/tutorlink/tutorlink-api/pkg/config"
	"github.com/tutorlink/tutorlink-api/pkg/database"
	"github.com/tutorlink/tutorlink-api/pkg/jobs"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	corsmiddleware "github.com/tutorlink/tutorlink-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorlink/tutorlink-api/pkg/middleware/requestid"
)

// @title TutorLink API
// @version 0.1.0
// @description Student and tutor session booking platform
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
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	tutorSvc := service.NewTutorService(tutorRepo, userRepo, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, tutorRepo, cacheSvc, validate, logr, service.BookingSettings{
		MinDurationMinutes: cfg.Booking.MinDurationMinutes,
		MaxDurationMinutes: cfg.Booking.MaxDurationMinutes,
	})
	statsSvc := service.NewStatsService(statsRepo, tutorRepo, userRepo, cacheSvc, logr, cfg.Stats.CacheTTL)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, logr)
	exportSvc := service.NewExportService(statsRepo, tutorRepo, logr, nil, nil)

	var reviewSvc *service.ReviewService
	ratingQueue := jobs.NewQueue("rating-refresh", func(ctx context.Context, job jobs.Job) error {
		return reviewSvc.HandleRatingRefreshJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Stats.RefreshWorkers,
		MaxRetries: cfg.Stats.RefreshMaxRetries,
		Logger:     logr,
	})
	reviewSvc = service.NewReviewService(reviewRepo, bookingRepo, tutorRepo, cacheSvc, ratingQueue, validate, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ratingQueue.Start(ctx)
	defer ratingQueue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r, cfg.APIPrefix, routes.Deps{
		Auth:    authSvc,
		Reports: cfg.Reports.Enabled,
		Handlers: routes.Handlers{
			Auth:       handler.NewAuthHandler(authSvc),
			Bookings:   handler.NewBookingHandler(bookingSvc, metricsSvc),
			Reviews:    handler.NewReviewHandler(reviewSvc),
			Tutors:     handler.NewTutorHandler(tutorSvc),
			Users:      handler.NewUserHandler(userSvc),
			Stats:      handler.NewStatsHandler(statsSvc, tutorSvc),
			Attendance: handler.NewAttendanceHandler(attendanceSvc),
			Catalog:    handler.NewCatalogHandler(catalogSvc),
			Reports:    handler.NewReportHandler(exportSvc, tutorSvc),
			Metrics:    handler.NewMetricsHandler(metricsSvc),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
