package router

import (
	"github.com/gin-gonic/gin"

	"github.com/contracthub/backend/internal/config"
	"github.com/contracthub/backend/internal/http/handlers"
	"github.com/contracthub/backend/internal/http/middleware"
	"github.com/contracthub/backend/internal/service"
)

// SetupRouter собирает все маршруты сервиса.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	contractHandler *handlers.ContractHandler,
	milestoneHandler *handlers.MilestoneHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	payoutHandler *handlers.PayoutHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/logout", authHandler.Logout)
		protectedAuth.GET("/sessions", authHandler.ListSessions)
		protectedAuth.DELETE("/sessions/:id", authHandler.DeleteSession)
	}

	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetProfile)
		protected.PUT("/profile", profileHandler.UpdateProfile)
		protected.PUT("/profile/subscription", profileHandler.ChangeSubscription)

		// Контракты
		protected.POST("/contracts", contractHandler.CreateContract)
		protected.GET("/contracts", contractHandler.ListContracts)
		protected.GET("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.GetContract)
		protected.PUT("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.UpdateContract)
		protected.POST("/contracts/:id/send", middleware.UUIDValidator("id"), contractHandler.SendForSignature)
		protected.POST("/contracts/:id/sign", middleware.UUIDValidator("id"), contractHandler.SignContract)
		protected.POST("/contracts/:id/cancel", middleware.UUIDValidator("id"), contractHandler.CancelContract)

		// Этапы и сдача работы
		protected.POST("/contracts/:id/milestones/:milestoneID/start", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), milestoneHandler.StartMilestone)
		protected.POST("/contracts/:id/milestones/:milestoneID/submit", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), milestoneHandler.SubmitDeliverable)
		protected.POST("/contracts/:id/milestones/:milestoneID/approve", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), milestoneHandler.ApproveMilestone)
		protected.POST("/contracts/:id/milestones/:milestoneID/revision", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), milestoneHandler.RequestRevision)
		protected.GET("/contracts/:id/milestones/:milestoneID/deliverables", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), milestoneHandler.ListDeliverables)
		protected.GET("/contracts/:id/milestones/:milestoneID/deliverables/:deliverableID/file", middleware.UUIDValidator("id"), middleware.UUIDValidator("milestoneID"), middleware.UUIDValidator("deliverableID"), milestoneHandler.DownloadAttachment)

		// Эскроу: денежные операции под отдельным rate limit
		money := protected.Group("/")
		money.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
		{
			money.POST("/contracts/:id/escrow/fund", middleware.UUIDValidator("id"), escrowHandler.FundEscrow)
			money.POST("/contracts/:id/escrow/confirm", middleware.UUIDValidator("id"), escrowHandler.ConfirmFunding)
			money.POST("/contracts/:id/escrow/release", middleware.UUIDValidator("id"), escrowHandler.ReleaseEscrow)
			money.POST("/withdrawals/request", withdrawalHandler.RequestWithdrawal)
		}
		protected.GET("/contracts/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.GetLedger)

		// Споры
		protected.POST("/contracts/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.OpenDispute)
		protected.GET("/contracts/:id/disputes", middleware.UUIDValidator("id"), disputeHandler.ListContractDisputes)
		protected.GET("/disputes", disputeHandler.ListUserDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
		protected.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveDispute)

		// Выплатный счёт и KYC
		protected.POST("/payouts/onboard", payoutHandler.Onboard)
		protected.GET("/payouts/account", payoutHandler.GetAccount)
		protected.POST("/kyc/check-requirements", payoutHandler.CheckRequirements)

		// Вывод средств
		protected.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		protected.GET("/withdrawals/eligibility", withdrawalHandler.CheckEligibility)

		// Уведомления
		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)
	}

	return r
}
