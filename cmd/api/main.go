package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edulog/edulog-go-api/internal/config"
	"github.com/edulog/edulog-go-api/internal/database"
	"github.com/edulog/edulog-go-api/internal/handler"
	"github.com/edulog/edulog-go-api/internal/middleware"
	"github.com/edulog/edulog-go-api/internal/observability"
	"github.com/edulog/edulog-go-api/internal/repository"
	"github.com/edulog/edulog-go-api/internal/router"
	"github.com/edulog/edulog-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS only relay events between nodes; a single node keeps
	// working without them.
	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, cross-node notification fan-out disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NatsURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, cross-node notification relay disabled")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	rosterRepo := repository.NewRosterRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	standingRepo := repository.NewStandingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	thresholds := service.Thresholds{
		AtRisk:  cfg.AtRiskThreshold,
		Warning: cfg.WarningThreshold,
	}

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.ChannelBase, natsConn, logger)
	feedService := service.NewAttendanceFeedService(redisClient, cfg.ChannelBase, natsConn, logger)
	alertService := service.NewAlertService(rosterRepo, attendanceRepo, gradeRepo, standingRepo, notificationService, thresholds, cfg.StreakThreshold, cfg.AttendanceWindow, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, rosterRepo, alertService, feedService, activityService, validate, logger)
	gradeService := service.NewGradeService(gradeRepo, rosterRepo, alertService, activityService, validate, logger)
	performanceService := service.NewPerformanceService(rosterRepo, attendanceRepo, gradeRepo, standingRepo, thresholds, logger)
	rosterService := service.NewRosterService(rosterRepo, activityService, validate, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, notificationService, activityService, validate, logger)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(consumerCtx)
	feedService.Start(consumerCtx)

	attendanceHandler := handler.NewAttendanceHandler(attendanceService, feedService, logger)
	gradeHandler := handler.NewGradeHandler(gradeService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)
	standingHandler := handler.NewStandingHandler(performanceService, logger)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService, logger)
	rosterHandler := handler.NewRosterHandler(rosterService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/metrics", observability.MetricsHandler())

	router.Register(app, cfg, router.Dependencies{
		AttendanceHandler:   attendanceHandler,
		GradeHandler:        gradeHandler,
		NotificationHandler: notificationHandler,
		StandingHandler:     standingHandler,
		FeedbackHandler:     feedbackHandler,
		RosterHandler:       rosterHandler,
		ActivityHandler:     activityHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopConsumers)
}

func waitForShutdown(app *fiber.App, stopConsumers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopConsumers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
