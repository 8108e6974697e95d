package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/config"
	"github.com/consultlink/api/internal/database"
	"github.com/consultlink/api/internal/handler"
	"github.com/consultlink/api/internal/middleware"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
	"github.com/consultlink/api/internal/router"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/validation"
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

	if err := db.AutoMigrate(
		&models.User{}, &models.Subject{}, &models.AvailabilityWindow{},
		&models.Consultation{}, &models.SlotClaim{}, &models.Message{}, &models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validation.New()

	var mailer service.Mailer
	if cfg.SendgridAPIKey != "" {
		mailer = service.NewSendgridMailer(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddress, cfg.AppName, logger)
	} else {
		mailer = service.NewLogMailer(logger)
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	tokens := service.TokenSettings{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}

	channelBase := cfg.AppName + ":" + cfg.AppEnv

	authService := service.NewAuthService(userRepo, tokens, validate, logger)
	subjectService := service.NewSubjectService(subjectRepo, userRepo, validate, logger)
	adminUserService := service.NewAdminUserService(userRepo, subjectRepo, mailer, validate, logger)
	availabilityService := service.NewAvailabilityService(availabilityRepo, consultationRepo, userRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, channelBase, natsConn, validate, logger)
	consultationService := service.NewConsultationService(consultationRepo, availabilityRepo, userRepo, notificationService, mailer, validate, logger)
	messageService := service.NewMessageService(messageRepo, consultationRepo, nil, validate, logger)
	liveChatService := service.NewLiveChatService(messageService, redisClient, channelBase, natsConn, logger)
	messageService.SetBroadcaster(liveChatService)

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(rootCtx)
	liveChatService.Start(rootCtx)

	authHandler := handler.NewAuthHandler(authService, logger)
	subjectHandler := handler.NewSubjectHandler(subjectService, logger)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService, logger)
	consultationHandler := handler.NewConsultationHandler(consultationService, logger)
	messageHandler := handler.NewMessageHandler(messageService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)
	chatHandler := handler.NewChatHandler(liveChatService, logger)
	adminUserHandler := handler.NewAdminUserHandler(adminUserService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         authHandler,
		SubjectHandler:      subjectHandler,
		AvailabilityHandler: availabilityHandler,
		ConsultationHandler: consultationHandler,
		MessageHandler:      messageHandler,
		NotificationHandler: notificationHandler,
		ChatHandler:         chatHandler,
		AdminUserHandler:    adminUserHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		LoginRateLimiter:    middleware.RateLimit("login", cfg.LoginRateLimit, cfg.LoginRateWindow),
		DB:                  db,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
