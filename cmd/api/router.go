package api

import (
	"net/http"

	"phishguard-backend/internal/auth/delivery"
	authUsecase "phishguard-backend/internal/auth/usecase"
	messageDelivery "phishguard-backend/internal/message/delivery"
	"phishguard-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, messageHandler *messageDelivery.MessageHandler, sseManager *sse.Manager) {
	authHandler := delivery.NewAuthHandler(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Gmail push deliveries arrive from Pub/Sub, not from users
		api.POST("/notifications/gmail", messageHandler.GmailWebhook)

		// SSE endpoint
		api.GET("/events", delivery.AuthMiddleware(authUsecase), func(c *gin.Context) {
			userID := c.GetString("userID")
			sseManager.ServeHTTP(c, userID)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Gmail account routes (protected)
		gmail := api.Group("/gmail")
		gmail.Use(delivery.AuthMiddleware(authUsecase))
		{
			gmail.POST("/link", messageHandler.LinkAccount)
			gmail.GET("/accounts", messageHandler.ListAccounts)
			gmail.DELETE("/accounts/:address", messageHandler.UnlinkAccount)
		}

		// Email routes (protected)
		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUsecase))
		{
			emails.GET("", messageHandler.ListEmails)
		}

		// SMS routes (protected)
		sms := api.Group("/sms")
		sms.Use(delivery.AuthMiddleware(authUsecase))
		{
			sms.POST("/sync", messageHandler.SyncSms)
			sms.GET("", messageHandler.ListSms)
		}

		// Dashboard (protected)
		api.GET("/dashboard", delivery.AuthMiddleware(authUsecase), messageHandler.Dashboard)
	}
}
