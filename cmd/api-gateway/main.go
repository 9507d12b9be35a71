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
	"go.uber.org/zap"

	_ "github.com/noah-isme/edutenant-api/api/swagger"
	"github.com/noah-isme/edutenant-api/internal/handler"
	internalmiddleware "github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/repository"
	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/cache"
	"github.com/noah-isme/edutenant-api/pkg/config"
	"github.com/noah-isme/edutenant-api/pkg/database"
	"github.com/noah-isme/edutenant-api/pkg/jobs"
	"github.com/noah-isme/edutenant-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edutenant-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edutenant-api/pkg/middleware/requestid"
	"github.com/noah-isme/edutenant-api/pkg/notify"
)

// @title EduTenant API
// @version 1.0.0
// @description Multi-tenant school administration API.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const recoverBatch = 500

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis, cfg.Cache)
	if err != nil {
		logr.Fatal("failed to init redis", zap.Error(err))
	}
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)

	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	termRepo := repository.NewTermRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	payrollRepo := repository.NewPayrollRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	communicationRepo := repository.NewCommunicationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	publisher := newPublisher(cfg.Notifications, logr)
	defer publisher.Close()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	resolver := service.NewTenantResolver(tenantRepo, schoolRepo, cacheSvc, cfg.Tenancy.CacheTTL, logr)
	tenantSvc := service.NewTenantService(tenantRepo, userRepo, cacheSvc, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, tenantRepo, cacheSvc, validate, logr)
	yearSvc := service.NewAcademicYearService(yearRepo, cacheSvc, validate, logr)
	termSvc := service.NewTermService(termRepo, yearRepo, cacheSvc, validate, logr)
	classSvc := service.NewClassService(classRepo, yearRepo, staffRepo, cacheSvc, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, staffRepo, cacheSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, departmentRepo, cacheSvc, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, departmentRepo, cacheSvc, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	settingSvc := service.NewSettingService(settingRepo, userRepo, cacheSvc, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, yearRepo, termRepo, settingSvc, cacheSvc, validate, logr, cfg.Exports.MaxRows)
	payrollSvc := service.NewPayrollService(payrollRepo, staffRepo, userRepo, cacheSvc, validate, logr, cfg.Exports.MaxRows)
	messageSvc := service.NewMessageService(messageRepo, userRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, publisher, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, staffRepo, yearRepo, termRepo, notificationRepo, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, logr)

	var communicationSvc *service.CommunicationService
	queue := jobs.NewQueue("communications", func(ctx context.Context, job jobs.Job) error {
		return communicationSvc.Dispatch(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.DispatchWorkers,
		MaxRetries: cfg.Notifications.DispatchRetries,
		RetryDelay: cfg.Notifications.DispatchInterval,
		OnFailure: func(ctx context.Context, job jobs.Job, err error) {
			communicationSvc.HandleFailure(ctx, job, err)
		},
		Logger: logr,
	})
	communicationSvc = service.NewCommunicationService(communicationRepo, queue, newEmailSender(cfg.Notifications, logr), newSMSSender(cfg.Notifications, logr), metricsSvc, validate, logr)
	metricsSvc.TrackQueue(queue.Pending)

	queue.Start(ctx)
	defer queue.Stop()
	if recovered := communicationSvc.RecoverQueued(ctx, recoverBatch); recovered > 0 {
		logr.Info("requeued pending communications", zap.Int("count", recovered))
	}

	handlers := routeHandlers{
		auth:          handler.NewAuthHandler(authSvc),
		tenant:        handler.NewTenantHandler(tenantSvc, schoolSvc),
		user:          handler.NewUserHandler(userSvc),
		academicYear:  handler.NewAcademicYearHandler(yearSvc),
		term:          handler.NewTermHandler(termSvc),
		class:         handler.NewClassHandler(classSvc),
		subject:       handler.NewSubjectHandler(subjectSvc),
		department:    handler.NewDepartmentHandler(departmentSvc),
		staff:         handler.NewStaffHandler(staffSvc),
		payment:       handler.NewPaymentHandler(paymentSvc),
		payroll:       handler.NewPayrollHandler(payrollSvc),
		message:       handler.NewMessageHandler(messageSvc),
		notification:  handler.NewNotificationHandler(notificationSvc),
		communication: handler.NewCommunicationHandler(communicationSvc),
		setting:       handler.NewSettingHandler(settingSvc),
		dashboard:     handler.NewDashboardHandler(dashboardSvc),
		system: handler.NewSystemHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"redis": func(ctx context.Context) error {
				return cache.Ping(ctx, redisClient)
			},
		}),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.Tenancy.TenantHeader, cfg.Tenancy.SchoolHeader))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	registerRoutes(r, cfg, handlers, routeDeps{
		tokens:   authSvc,
		resolver: resolver,
		audit:    userRepo,
		logger:   logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logr.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logr.Error("server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cancel()
}

func newEmailSender(cfg config.NotificationsConfig, logr *zap.Logger) notify.EmailSender {
	if cfg.EmailProvider == "sendgrid" && cfg.SendgridAPIKey != "" {
		return notify.NewSendgridSender(cfg.SendgridAPIKey, cfg.FromEmail, cfg.FromName, logr)
	}
	return notify.NewLogEmailSender(logr)
}

func newSMSSender(cfg config.NotificationsConfig, logr *zap.Logger) notify.SMSSender {
	if cfg.SMSProvider == "http" && cfg.SMSGatewayURL != "" {
		return notify.NewHTTPGatewaySender(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.SMSSender, logr)
	}
	return notify.NewLogSMSSender(logr)
}

func newPublisher(cfg config.NotificationsConfig, logr *zap.Logger) notify.Publisher {
	if !cfg.MQTTEnabled {
		return notify.NopPublisher{}
	}
	publisher, err := notify.NewMQTTPublisher(notify.MQTTConfig{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, logr)
	if err != nil {
		logr.Warn("mqtt unavailable, push notifications disabled", zap.Error(err))
		return notify.NopPublisher{}
	}
	return publisher
}
