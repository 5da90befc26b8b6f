package delivery

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	messagedomain "phishguard-backend/internal/message/domain"
	"phishguard-backend/internal/message/dto"
	"phishguard-backend/internal/message/usecase"
	"phishguard-backend/internal/notification"

	"github.com/gin-gonic/gin"
)

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	messageUsecase usecase.MessageUsecase
	notifService   *notification.Service
}

func NewMessageHandler(messageUsecase usecase.MessageUsecase, notifService *notification.Service) *MessageHandler {
	return &MessageHandler{
		messageUsecase: messageUsecase,
		notifService:   notifService,
	}
}

// GmailWebhook handles POST /api/notifications/gmail, the Pub/Sub push
// endpoint. The notification payload arrives base64-encoded inside the push
// envelope. A 2xx acknowledges the delivery; only transient failures return
// 5xx so Pub/Sub redelivers.
func (h *MessageHandler) GmailWebhook(c *gin.Context) {
	var envelope dto.PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid push envelope"})
		return
	}

	payload, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Printf("[Webhook] Failed to decode push data: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid push data"})
		return
	}

	var notif notification.GmailNotification
	if err := json.Unmarshal(payload, &notif); err != nil || notif.EmailAddress == "" {
		log.Printf("[Webhook] Failed to parse notification payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification payload"})
		return
	}

	status := h.notifService.Handle(c.Request.Context(), notif)
	if status == usecase.StatusError {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": string(status)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// LinkAccount handles POST /api/gmail/link
func (h *MessageHandler) LinkAccount(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.messageUsecase.LinkAccount(c.Request.Context(), userID, req.GmailAddress, req.RefreshToken); err != nil {
		log.Printf("[Account] Link failed for %s: %v", req.GmailAddress, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to link account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account linked"})
}

// ListAccounts handles GET /api/gmail/accounts
func (h *MessageHandler) ListAccounts(c *gin.Context) {
	userID := c.GetString("userID")

	accounts, err := h.messageUsecase.ListAccounts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch accounts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// UnlinkAccount handles DELETE /api/gmail/accounts/:address
func (h *MessageHandler) UnlinkAccount(c *gin.Context) {
	userID := c.GetString("userID")
	address := c.Param("address")

	if err := h.messageUsecase.UnlinkAccount(c.Request.Context(), userID, address); err != nil {
		if errors.Is(err, usecase.ErrAccountNotLinked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not linked"})
			return
		}
		log.Printf("[Account] Unlink failed for %s: %v", address, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unlink account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account unlinked"})
}

// SyncSms handles POST /api/sms/sync
func (h *MessageHandler) SyncSms(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.SmsSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	items := make([]messagedomain.SmsMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		items = append(items, messagedomain.SmsMessage{
			Address:     m.Address,
			Body:        m.Body,
			TimestampMs: m.TimestampMs,
		})
	}

	saved, err := h.messageUsecase.SaveSmsBatch(userID, items)
	if err != nil {
		log.Printf("[Sms] Sync failed for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": saved})
}

// ListEmails handles GET /api/emails
func (h *MessageHandler) ListEmails(c *gin.Context) {
	userID := c.GetString("userID")
	limit, offset := pagination(c)

	emails, total, err := h.messageUsecase.ListEmails(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"emails": emails, "total": total})
}

// ListSms handles GET /api/sms
func (h *MessageHandler) ListSms(c *gin.Context) {
	userID := c.GetString("userID")
	limit, offset := pagination(c)

	messages, total, err := h.messageUsecase.ListSms(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": total})
}

// Dashboard handles GET /api/dashboard
func (h *MessageHandler) Dashboard(c *gin.Context) {
	userID := c.GetString("userID")

	counts, err := h.messageUsecase.Dashboard(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verdicts": counts})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
