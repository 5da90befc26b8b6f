package usecase

import (
	"context"
	"fmt"
	"log"

	messagedomain "phishguard-backend/internal/message/domain"
	"phishguard-backend/internal/message/repository"
)

// Status is the outcome of one Gmail notification. The push sender's retry
// behavior is driven by these, not by transport errors: everything except
// StatusError is terminal for the delivery.
type Status string

const (
	StatusIgnored   Status = "ignored"   // mailbox not managed by this system
	StatusDuplicate Status = "duplicate" // stale or replayed historyId
	StatusEmpty     Status = "empty"     // delta contained no new messages
	StatusStored    Status = "stored"    // delta processed, cursor advanced
	StatusError     Status = "error"     // cursor unadvanced, delta retried on next delivery
)

// SyncService reconciles Gmail change-log deltas into the message store.
// Deliveries are at-least-once and unordered; safety comes from the duplicate
// check on the cursor, the per-message existence check, and advancing the
// cursor only after the delta's messages are durably stored.
type SyncService struct {
	accountRepo repository.AccountRepository
	emailRepo   repository.EmailRepository
	provider    messagedomain.MailProvider
}

func NewSyncService(accountRepo repository.AccountRepository, emailRepo repository.EmailRepository, provider messagedomain.MailProvider) *SyncService {
	return &SyncService{
		accountRepo: accountRepo,
		emailRepo:   emailRepo,
		provider:    provider,
	}
}

// ProcessNotification handles one `{emailAddress, historyId}` notification.
// It never panics out: any failure is reported as StatusError with the cursor
// left untouched, so the provider's next (duplicate) delivery retries the
// same delta range.
func (s *SyncService) ProcessNotification(ctx context.Context, gmailAddress string, historyID uint64) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = StatusError
			err = fmt.Errorf("panic while processing notification: %v", r)
		}
	}()

	account, err := s.accountRepo.FindByGmailAddress(gmailAddress)
	if err != nil {
		return StatusError, fmt.Errorf("failed to resolve account: %w", err)
	}
	if account == nil || account.RefreshToken == "" {
		return StatusIgnored, nil
	}

	if historyID <= account.LastHistoryID {
		return StatusDuplicate, nil
	}

	accessToken, err := s.provider.ExchangeRefreshToken(ctx, account.RefreshToken)
	if err != nil {
		return StatusError, fmt.Errorf("token exchange failed: %w", err)
	}

	refs, err := s.provider.ListHistory(ctx, accessToken, account.LastHistoryID+1)
	if err != nil {
		return StatusError, fmt.Errorf("failed to list history: %w", err)
	}

	if len(refs) == 0 {
		// An empty delta is still confirmed progress.
		if err := s.accountRepo.AdvanceHistoryID(gmailAddress, historyID); err != nil {
			return StatusError, fmt.Errorf("failed to advance cursor: %w", err)
		}
		return StatusEmpty, nil
	}

	stored := 0
	for _, messageID := range refs {
		exists, err := s.emailRepo.Exists(gmailAddress, messageID)
		if err != nil {
			return StatusError, fmt.Errorf("existence check failed for %s: %w", messageID, err)
		}
		if exists {
			// Re-delivered reference, already stored.
			continue
		}

		fetched, err := s.provider.FetchMessage(ctx, accessToken, messageID)
		if err != nil {
			// Abort before the cursor moves so the whole delta is retried.
			return StatusError, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
		}

		// Never store an unsendered or bodyless message.
		if fetched.Sender == "" || fetched.Body == "" {
			continue
		}

		msg := &messagedomain.EmailMessage{
			UserID:       account.UserID,
			GmailAddress: gmailAddress,
			MessageID:    fetched.MessageID,
			Subject:      fetched.Subject,
			Sender:       fetched.Sender,
			Snippet:      fetched.Snippet,
			Body:         fetched.Body,
			ReceivedAt:   fetched.ReceivedAt,
		}
		if err := s.emailRepo.Create(msg); err != nil {
			return StatusError, fmt.Errorf("failed to store message %s: %w", messageID, err)
		}
		stored++
	}

	// Only now does the cursor imply "everything up to historyID is stored".
	if err := s.accountRepo.AdvanceHistoryID(gmailAddress, historyID); err != nil {
		return StatusError, fmt.Errorf("failed to advance cursor: %w", err)
	}

	log.Printf("[HistorySync] %s: stored %d of %d referenced messages (cursor -> %d)", gmailAddress, stored, len(refs), historyID)
	return StatusStored, nil
}
