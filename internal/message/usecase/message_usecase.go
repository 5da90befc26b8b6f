package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	messagedomain "phishguard-backend/internal/message/domain"
	"phishguard-backend/internal/message/repository"
)

// ErrAccountNotLinked is returned when an operation names a mailbox the
// caller has not linked.
var ErrAccountNotLinked = errors.New("account not linked")

// MessageUsecase is the request-facing surface over the message store: account
// linking, SMS ingest and the read API.
type MessageUsecase interface {
	// LinkAccount stores a connected mailbox and arms its push watch.
	LinkAccount(ctx context.Context, userID, gmailAddress, refreshToken string) error
	ListAccounts(userID string) ([]messagedomain.LinkedAccount, error)
	// UnlinkAccount stops the mailbox watch and removes the link. Returns
	// ErrAccountNotLinked when the mailbox does not belong to the caller.
	UnlinkAccount(ctx context.Context, userID, gmailAddress string) error
	// SaveSmsBatch stores a device SMS upload, deduplicated by content hash.
	// Returns the number of records accepted.
	SaveSmsBatch(userID string, items []messagedomain.SmsMessage) (int, error)
	ListEmails(userID string, limit, offset int) ([]messagedomain.EmailMessage, int64, error)
	ListSms(userID string, limit, offset int) ([]messagedomain.SmsMessage, int64, error)
	Dashboard(userID string) (map[string]int64, error)
}

// messageUsecase implements MessageUsecase interface
type messageUsecase struct {
	emailRepo   repository.EmailRepository
	smsRepo     repository.SmsRepository
	accountRepo repository.AccountRepository
	provider    messagedomain.MailProvider
	topicName   string
}

func NewMessageUsecase(emailRepo repository.EmailRepository, smsRepo repository.SmsRepository, accountRepo repository.AccountRepository, provider messagedomain.MailProvider, topicName string) MessageUsecase {
	return &messageUsecase{
		emailRepo:   emailRepo,
		smsRepo:     smsRepo,
		accountRepo: accountRepo,
		provider:    provider,
		topicName:   topicName,
	}
}

func (u *messageUsecase) LinkAccount(ctx context.Context, userID, gmailAddress, refreshToken string) error {
	account := &messagedomain.LinkedAccount{
		UserID:       userID,
		GmailAddress: gmailAddress,
		RefreshToken: refreshToken,
	}
	if err := u.accountRepo.Upsert(account); err != nil {
		return fmt.Errorf("failed to store linked account: %w", err)
	}

	accessToken, err := u.provider.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("refresh token rejected: %w", err)
	}

	historyID, err := u.provider.Watch(ctx, accessToken, u.topicName)
	if err != nil {
		return fmt.Errorf("failed to start mailbox watch: %w", err)
	}

	// The watch response carries the mailbox's current position; start the
	// cursor there so only mail arriving after the link is ingested.
	if err := u.accountRepo.AdvanceHistoryID(gmailAddress, historyID); err != nil {
		return fmt.Errorf("failed to set initial cursor: %w", err)
	}

	log.Printf("[Account] Linked %s for user %s (cursor: %d)", gmailAddress, userID, historyID)
	return nil
}

func (u *messageUsecase) ListAccounts(userID string) ([]messagedomain.LinkedAccount, error) {
	return u.accountRepo.FindByUserID(userID)
}

func (u *messageUsecase) UnlinkAccount(ctx context.Context, userID, gmailAddress string) error {
	account, err := u.accountRepo.FindByGmailAddress(gmailAddress)
	if err != nil {
		return err
	}
	if account == nil || account.UserID != userID {
		return ErrAccountNotLinked
	}

	// Best effort: a revoked refresh token must not block the unlink.
	accessToken, err := u.provider.ExchangeRefreshToken(ctx, account.RefreshToken)
	if err == nil {
		if err := u.provider.Stop(ctx, accessToken); err != nil {
			log.Printf("[Account] Failed to stop watch for %s: %v", gmailAddress, err)
		}
	} else {
		log.Printf("[Account] Skipping watch stop for %s: %v", gmailAddress, err)
	}

	if err := u.accountRepo.Delete(gmailAddress); err != nil {
		return fmt.Errorf("failed to unlink account: %w", err)
	}

	log.Printf("[Account] Unlinked %s for user %s", gmailAddress, userID)
	return nil
}

func (u *messageUsecase) SaveSmsBatch(userID string, items []messagedomain.SmsMessage) (int, error) {
	saved := 0
	for i := range items {
		sms := items[i]
		if sms.Address == "" || sms.Body == "" {
			continue
		}
		sms.UserID = userID
		sms.MessageHash = messagedomain.SmsHash(sms.Address, sms.Body, sms.TimestampMs)
		sms.Classification = messagedomain.Classification{}
		if err := u.smsRepo.Save(&sms); err != nil {
			return saved, fmt.Errorf("failed to store sms: %w", err)
		}
		saved++
	}
	return saved, nil
}

func (u *messageUsecase) ListEmails(userID string, limit, offset int) ([]messagedomain.EmailMessage, int64, error) {
	return u.emailRepo.FindByUserID(userID, limit, offset)
}

func (u *messageUsecase) ListSms(userID string, limit, offset int) ([]messagedomain.SmsMessage, int64, error) {
	return u.smsRepo.FindByUserID(userID, limit, offset)
}

func (u *messageUsecase) Dashboard(userID string) (map[string]int64, error) {
	return u.emailRepo.CountByVerdict(userID)
}
