package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	authUsecase "phishguard-backend/internal/auth/usecase"
	messageDelivery "phishguard-backend/internal/message/delivery"
	messageUsecasePkg "phishguard-backend/internal/message/usecase"
	"phishguard-backend/internal/notification"
	"phishguard-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	messageHandler *messageDelivery.MessageHandler
	sseManager     *sse.Manager
}

func NewHandler(authUc authUsecase.AuthUsecase, messageUc messageUsecasePkg.MessageUsecase, notifService *notification.Service, sseManager *sse.Manager) *Handler {
	return &Handler{
		authUsecase:    authUc,
		messageHandler: messageDelivery.NewMessageHandler(messageUc, notifService),
		sseManager:     sseManager,
	}
}

// Start serves until the context is cancelled, then drains in-flight requests
// before returning so a SIGINT/SIGTERM actually ends the process.
func (h *Handler) Start(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.messageHandler, h.sseManager)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
