package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	authrepo "phishguard-backend/internal/auth/repository"
	messagerepo "phishguard-backend/internal/message/repository"
	"phishguard-backend/internal/message/usecase"
	"phishguard-backend/pkg/fcm"
	"phishguard-backend/pkg/sse"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the decoded payload of a Gmail push notification.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service receives Gmail change notifications (via a Pub/Sub pull subscription
// and via the push webhook), runs the history sync, and fans results out to
// connected clients over SSE and FCM.
type Service struct {
	syncService *usecase.SyncService
	accountRepo messagerepo.AccountRepository
	emailRepo   messagerepo.EmailRepository
	fcmRepo     authrepo.FCMTokenRepository
	fcmClient   *fcm.Client
	sseManager  *sse.Manager
	topicName   string
	subName     string
}

func NewService(topicName string, syncService *usecase.SyncService, accountRepo messagerepo.AccountRepository, emailRepo messagerepo.EmailRepository, fcmRepo authrepo.FCMTokenRepository, fcmClient *fcm.Client, sseManager *sse.Manager) *Service {
	return &Service{
		syncService: syncService,
		accountRepo: accountRepo,
		emailRepo:   emailRepo,
		fcmRepo:     fcmRepo,
		fcmClient:   fcmClient,
		sseManager:  sseManager,
		topicName:   topicName,
		subName:     topicName + "-sub", // Convention: topic-sub
	}
}

// StartPubSub runs the Pub/Sub pull loop until the context is cancelled. The
// push webhook keeps working even when this is never started.
func (s *Service) StartPubSub(ctx context.Context, projectID, credentialsFile string) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		log.Printf("[PubSub] Failed to create pubsub client: %v", err)
		return
	}
	defer client.Close()

	sub := client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := client.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = client.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var notification GmailNotification
		if err := json.Unmarshal(msg.Data, &notification); err != nil {
			log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
			msg.Ack()
			return
		}

		status := s.Handle(ctx, notification)
		if status == usecase.StatusError {
			// Leave redelivery to Pub/Sub; the cursor was not advanced.
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Handle runs the history sync for one notification and, when new mail was
// stored, notifies the mailbox owner's clients.
func (s *Service) Handle(ctx context.Context, notification GmailNotification) usecase.Status {
	log.Printf("[PubSub] Notification for %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	status, err := s.syncService.ProcessNotification(ctx, notification.EmailAddress, notification.HistoryID)
	if err != nil {
		log.Printf("[PubSub] Sync failed for %s: %v", notification.EmailAddress, err)
	}

	if status == usecase.StatusStored {
		s.notifyOwner(notification)
	}
	return status
}

func (s *Service) notifyOwner(notification GmailNotification) {
	account, err := s.accountRepo.FindByGmailAddress(notification.EmailAddress)
	if err != nil || account == nil {
		return
	}

	if s.sseManager != nil {
		s.sseManager.SendToUser(account.UserID, "mailbox_update", map[string]interface{}{
			"email":     notification.EmailAddress,
			"historyId": notification.HistoryID,
			"timestamp": time.Now(),
		})
	}

	if s.fcmClient == nil || s.fcmRepo == nil {
		return
	}

	go func() {
		tokens, err := s.fcmRepo.TokensForUser(account.UserID)
		if err != nil {
			log.Printf("[FCM] Error getting tokens for user %s: %v", account.UserID, err)
			return
		}
		if len(tokens) == 0 {
			return
		}

		title := "New message scanned"
		body := "A new message was received and queued for analysis"
		messageID := ""

		if latest, err := s.emailRepo.LatestByAccount(notification.EmailAddress); err == nil && latest != nil {
			messageID = latest.MessageID
			title = fmt.Sprintf("New mail from %s", latest.Sender)
			body = latest.Subject
			if body == "" {
				body = "(no subject)"
			}
		}

		failedTokens, err := s.fcmClient.SendToDevices(context.Background(), tokens, fcm.NotificationData{
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":      "mailbox_update",
				"email":     notification.EmailAddress,
				"historyId": fmt.Sprintf("%d", notification.HistoryID),
				"messageId": messageID,
			},
		})
		if err != nil {
			log.Printf("[FCM] Error sending notifications: %v", err)
			return
		}

		for _, token := range failedTokens {
			s.fcmRepo.Remove(token)
		}
	}()
}
