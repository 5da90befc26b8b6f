package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	api "phishguard-backend/cmd/api"
	authdomain "phishguard-backend/internal/auth/domain"
	authRepo "phishguard-backend/internal/auth/repository"
	authUsecase "phishguard-backend/internal/auth/usecase"
	messagedomain "phishguard-backend/internal/message/domain"
	messageRepo "phishguard-backend/internal/message/repository"
	messageUsecase "phishguard-backend/internal/message/usecase"
	"phishguard-backend/internal/notification"
	"phishguard-backend/pkg/classifier"
	"phishguard-backend/pkg/config"
	"phishguard-backend/pkg/database"
	"phishguard-backend/pkg/fcm"
	"phishguard-backend/pkg/gmail"
	"phishguard-backend/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.FCMToken{}, &messagedomain.EmailMessage{}, &messagedomain.SmsMessage{}, &messagedomain.LinkedAccount{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	emailRepo := messageRepo.NewEmailRepository(db)
	smsRepo := messageRepo.NewSmsRepository(db)
	accountRepo := messageRepo.NewAccountRepository(db)

	// Initialize SSE Manager
	sseManager := sse.NewManager()

	// Initialize Gmail service
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.MaxBodyLength)

	// Initialize classification client
	classifierClient := classifier.NewClient(cfg.ClassifierURL)

	// Extract short topic name from full resource name if necessary
	topicName := cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	if topicName == "" {
		topicName = "gmail-updates"
	}

	// Initialize FCM Client (optional, notifications work without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			fcmClient = nil
		}
	}

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg)
	messageUsecaseInstance := messageUsecase.NewMessageUsecase(emailRepo, smsRepo, accountRepo, gmailService, cfg.GooglePubSubTopic)
	syncService := messageUsecase.NewSyncService(accountRepo, emailRepo, gmailService)

	notifService := notification.NewService(topicName, syncService, accountRepo, emailRepo, fcmTokenRepo, fcmClient, sseManager)
	if cfg.GoogleProjectID != "" {
		go notifService.StartPubSub(ctx, cfg.GoogleProjectID, cfg.GoogleCredentials)
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, Pub/Sub pull disabled (push webhook still active)")
	}

	// Background classification workers
	emailBackfill := messageUsecase.NewEmailBackfillService(emailRepo, classifierClient, sseManager)
	go emailBackfill.Run(ctx)

	smsBackfill := messageUsecase.NewSmsBackfillService(smsRepo, classifierClient)
	go smsBackfill.Run(ctx)

	cleanup := messageUsecase.NewCleanupService(emailRepo)
	go cleanup.Run(ctx)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, messageUsecaseInstance, notifService, sseManager)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := handler.Start(ctx, ":"+port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
	log.Println("Server stopped")
}
