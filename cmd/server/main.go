package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/contracthub/backend/internal/config"
	"github.com/contracthub/backend/internal/db"
	httpHandlers "github.com/contracthub/backend/internal/http/handlers"
	httpRouter "github.com/contracthub/backend/internal/http/router"
	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/payments"
	"github.com/contracthub/backend/internal/repository"
	"github.com/contracthub/backend/internal/service"
	"github.com/contracthub/backend/internal/storage"
	"github.com/contracthub/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	attachmentStorage, err := storage.NewAttachmentStorage(cfg.AttachmentStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	processor := payments.NewClient(cfg.PaymentsBaseURL, cfg.PaymentsAPIKey, cfg.PaymentsTimeout)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	contractRepo := repository.NewContractRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	payoutAccountRepo := repository.NewPayoutAccountRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)
	kycService := service.NewKYCService(payoutAccountRepo, userRepo, processor)
	contractService := service.NewContractService(contractRepo, escrowRepo)
	escrowService := service.NewEscrowService(contractRepo, escrowRepo, userRepo, kycService, processor)
	disputeService := service.NewDisputeService(disputeRepo, contractRepo)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, kycService, userRepo)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	contractService.SetHub(hub)
	escrowService.SetHub(hub)
	disputeService.SetHub(hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(authService)
	contractHandler := httpHandlers.NewContractHandler(contractService, escrowService)
	milestoneHandler := httpHandlers.NewMilestoneHandler(contractService, attachmentStorage)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	payoutHandler := httpHandlers.NewPayoutHandler(kycService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		contractHandler,
		milestoneHandler,
		escrowHandler,
		disputeHandler,
		payoutHandler,
		withdrawalHandler,
		notificationHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
