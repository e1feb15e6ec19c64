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
	"go.uber.org/zap"

	_ "github.com/dmatch/dmatch-api/api/swagger"
	"github.com/dmatch/dmatch-api/internal/handler"
	"github.com/dmatch/dmatch-api/internal/middleware"
	"github.com/dmatch/dmatch-api/internal/models"
	"github.com/dmatch/dmatch-api/internal/repository"
	"github.com/dmatch/dmatch-api/internal/service"
	"github.com/dmatch/dmatch-api/pkg/cache"
	"github.com/dmatch/dmatch-api/pkg/config"
	"github.com/dmatch/dmatch-api/pkg/database"
	"github.com/dmatch/dmatch-api/pkg/jobs"
	"github.com/dmatch/dmatch-api/pkg/logger"
	"github.com/dmatch/dmatch-api/pkg/mailer"
	corsmiddleware "github.com/dmatch/dmatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dmatch/dmatch-api/pkg/middleware/requestid"
	"github.com/dmatch/dmatch-api/pkg/storage"
)

// @title D-Match API
// @version 1.0.0
// @description Matching platform between dance academies and instructors.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	documents, err := storage.NewLocalStorage(cfg.Verifications.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Verifications.SignedURLSecret, cfg.Verifications.SignedURLTTL)

	mail, err := mailer.New(ctx, cfg.Mail, logr)
	if err != nil {
		logr.Fatal("failed to init mailer", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	txManager := repository.NewTxManager(db)

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postingRepo := repository.NewJobPostingRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reviews.CacheTTL, logr, redisClient != nil && cfg.Reviews.CacheEnabled)

	var notificationQueue *jobs.Queue
	notificationSvc := service.NewNotificationService(notificationRepo, nil, logr)
	if cfg.Notifications.EmailEnabled {
		worker := service.NewNotificationMailWorker(userRepo, notificationRepo, mail, metricsSvc, logr)
		notificationQueue = jobs.NewQueue(service.NotificationEmailJob, worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.WorkerConcurrency,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.WorkerRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		notificationQueue.Start(context.Background())
		notificationSvc = service.NewNotificationService(notificationRepo, notificationQueue, logr, service.WithNotificationMetrics(metricsSvc))
	}

	authSvc := service.NewAuthService(txManager, userRepo, profileRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	profileSvc := service.NewProfileService(profileRepo, userRepo, validate, logr)
	postingSvc := service.NewJobPostingService(postingRepo, userRepo, userRepo, validate, logr)
	applicationSvc := service.NewApplicationService(
		txManager,
		applicationRepo,
		postingRepo,
		userRepo,
		profileRepo,
		notificationSvc,
		validate,
		logr,
		service.WithStrictTransitions(cfg.Applications.StrictTransitions),
		service.WithApplicationMetrics(metricsSvc),
	)
	reviewSvc := service.NewReviewService(reviewRepo, applicationRepo, postingRepo, userRepo, cacheSvc, cfg.Reviews.CacheTTL, validate, logr)
	favoriteSvc := service.NewFavoriteService(favoriteRepo, postingRepo, userRepo, validate)
	verificationSvc := service.NewVerificationService(
		txManager,
		verificationRepo,
		userRepo,
		documents,
		signer,
		notificationSvc,
		validate,
		logr,
		service.VerificationServiceConfig{
			MaxFileSize:  cfg.Verifications.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Verifications.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		},
	)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	postingHandler := handler.NewJobPostingHandler(postingSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	favoriteHandler := handler.NewFavoriteHandler(favoriteSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authRequired := middleware.JWT(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	academyOnly := middleware.RequireRoles(models.RoleAcademy)
	instructorOnly := middleware.RequireRoles(models.RoleInstructor)
	members := middleware.RequireRoles(models.RoleInstructor, models.RoleAcademy)

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	public := authGroup.Group("")
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL, logr)
		limiter.StartSweeper(time.Minute)
		defer limiter.Stop()
		public.Use(limiter.Middleware())
	}
	public.GET("/check-email", authHandler.CheckEmail)
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)
	public.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authRequired, authHandler.Logout)
	authGroup.POST("/change-password", authRequired, authHandler.ChangePassword)
	authGroup.GET("/me", authRequired, authHandler.Me)

	api.GET("/instructors/:id", profileHandler.GetInstructor)
	api.GET("/academies/:id", profileHandler.GetAcademy)
	api.GET("/reviews/instructor/:id", reviewHandler.InstructorReviews)
	api.GET("/reviews/academy/:id", reviewHandler.AcademyReviews)

	postings := api.Group("/job-postings")
	postings.GET("", middleware.OptionalJWT(authSvc), postingHandler.List)
	postings.GET("/my", authRequired, academyOnly, postingHandler.ListMine)
	postings.GET("/:id", middleware.OptionalJWT(authSvc), postingHandler.Get)
	postings.POST("", authRequired, academyOnly, postingHandler.Create)
	postings.PUT("/:id", authRequired, academyOnly, postingHandler.Update)
	postings.DELETE("/:id", authRequired, academyOnly, postingHandler.Delete)
	postings.POST("/:id/close", authRequired, academyOnly, postingHandler.Close)

	api.GET("/verifications/files/:token",
		middleware.OptionalJWT(authSvc),
		middleware.Audit(userRepo, logr, "VERIFICATION_FILE_DOWNLOAD", "verification_file", "token"),
		verificationHandler.Download,
	)

	secured := api.Group("")
	secured.Use(authRequired)

	me := secured.Group("/users/me")
	me.GET("/profile", instructorOnly, profileHandler.GetMyProfile)
	me.PUT("/profile", instructorOnly, profileHandler.UpdateMyProfile)
	me.GET("/academy", academyOnly, profileHandler.GetMyAcademy)
	me.PUT("/academy", academyOnly, profileHandler.UpdateMyAcademy)

	// Role checks for individual transitions live in the application policy.
	applications := secured.Group("/applications")
	applications.POST("", applicationHandler.Apply)
	applications.GET("", academyOnly, applicationHandler.List)
	applications.GET("/my", instructorOnly, applicationHandler.ListMine)
	applications.GET("/:id", applicationHandler.Get)
	applications.POST("/:id/accept", applicationHandler.Accept)
	applications.POST("/:id/reject", applicationHandler.Reject)
	applications.POST("/:id/cancel", applicationHandler.Cancel)

	notifications := secured.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/settings", notificationHandler.GetSettings)
	notifications.PUT("/settings", notificationHandler.UpdateSettings)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.PATCH("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	reviews := secured.Group("/reviews")
	reviews.POST("", members, reviewHandler.Create)
	reviews.GET("/my", members, reviewHandler.ListMine)
	reviews.PUT("/:id", members, reviewHandler.Update)
	reviews.DELETE("/:id", members, reviewHandler.Delete)

	favorites := secured.Group("/favorites")
	favorites.Use(instructorOnly)
	favorites.POST("/toggle", favoriteHandler.Toggle)
	favorites.GET("", favoriteHandler.List)

	verifications := secured.Group("/verifications")
	verifications.Use(members)
	verifications.POST("", verificationHandler.Submit)
	verifications.GET("/me", verificationHandler.GetMine)

	admin := secured.Group("/admin")
	admin.Use(adminOnly)
	admin.GET("/system/metrics", metricsHandler.System)
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PATCH("/users/:id/status", userHandler.UpdateStatus)
	admin.POST("/job-postings/:id/status", postingHandler.Moderate)
	admin.GET("/verifications", verificationHandler.List)
	admin.GET("/verifications/:id", verificationHandler.Get)
	admin.POST("/verifications/:id/review", verificationHandler.Review)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "strict_transitions", cfg.Applications.StrictTransitions)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if notificationQueue != nil {
		notificationQueue.Stop()
	}
	logr.Info("server stopped")
}
