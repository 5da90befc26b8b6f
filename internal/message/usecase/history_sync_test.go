package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	messagedomain "phishguard-backend/internal/message/domain"
)

type fakeAccountRepo struct {
	accounts map[string]*messagedomain.LinkedAccount
	findErr  error
}

func (f *fakeAccountRepo) FindByGmailAddress(gmailAddress string) (*messagedomain.LinkedAccount, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.accounts[gmailAddress], nil
}

func (f *fakeAccountRepo) FindByUserID(userID string) ([]messagedomain.LinkedAccount, error) {
	var out []messagedomain.LinkedAccount
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Upsert(account *messagedomain.LinkedAccount) error {
	if f.accounts == nil {
		f.accounts = make(map[string]*messagedomain.LinkedAccount)
	}
	f.accounts[account.GmailAddress] = account
	return nil
}

func (f *fakeAccountRepo) AdvanceHistoryID(gmailAddress string, historyID uint64) error {
	if a, ok := f.accounts[gmailAddress]; ok && historyID > a.LastHistoryID {
		a.LastHistoryID = historyID
	}
	return nil
}

func (f *fakeAccountRepo) Delete(gmailAddress string) error {
	delete(f.accounts, gmailAddress)
	return nil
}

type fakeEmailRepo struct {
	messages    []*messagedomain.EmailMessage
	claimErr    error
	updateErr   error
	createErr   error
	deleteErr   error // consumed by the first DeleteInvalid call
	updated     map[string]messagedomain.Classification
	cleared     []string
	deleteCalls int
}

func (f *fakeEmailRepo) ClaimNextUnclassified() (*messagedomain.EmailMessage, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	for _, m := range f.messages {
		if !m.Processing && !m.IsClassified() {
			m.Processing = true
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeEmailRepo) UpdateClassification(id string, result messagedomain.Classification) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[string]messagedomain.Classification)
	}
	f.updated[id] = result
	for _, m := range f.messages {
		if m.ID == id {
			m.Classification = result
			m.Processing = false
		}
	}
	return nil
}

func (f *fakeEmailRepo) ClearProcessing(id string) error {
	f.cleared = append(f.cleared, id)
	for _, m := range f.messages {
		if m.ID == id {
			m.Processing = false
		}
	}
	return nil
}

func (f *fakeEmailRepo) Exists(gmailAddress, messageID string) (bool, error) {
	for _, m := range f.messages {
		if m.GmailAddress == gmailAddress && m.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEmailRepo) Create(msg *messagedomain.EmailMessage) error {
	if f.createErr != nil {
		return f.createErr
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%d", len(f.messages)+1)
	}
	stored := *msg
	f.messages = append(f.messages, &stored)
	return nil
}

func (f *fakeEmailRepo) DeleteInvalid() (int64, error) {
	f.deleteCalls++
	if f.deleteErr != nil {
		err := f.deleteErr
		f.deleteErr = nil
		return 0, err
	}
	var kept []*messagedomain.EmailMessage
	var deleted int64
	for _, m := range f.messages {
		if m.Sender == "" || m.Body == "" {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return deleted, nil
}

func (f *fakeEmailRepo) FindByUserID(userID string, limit, offset int) ([]messagedomain.EmailMessage, int64, error) {
	var out []messagedomain.EmailMessage
	for _, m := range f.messages {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeEmailRepo) LatestByAccount(gmailAddress string) (*messagedomain.EmailMessage, error) {
	var latest *messagedomain.EmailMessage
	for _, m := range f.messages {
		if m.GmailAddress == gmailAddress && (latest == nil || m.ReceivedAt > latest.ReceivedAt) {
			latest = m
		}
	}
	return latest, nil
}

func (f *fakeEmailRepo) CountByVerdict(userID string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, m := range f.messages {
		if m.UserID != userID {
			continue
		}
		bucket := "pending"
		if m.Verdict != nil && *m.Verdict != "" {
			bucket = *m.Verdict
		}
		counts[bucket]++
	}
	return counts, nil
}

type fakeProvider struct {
	exchangeErr    error
	historyErr     error
	history        []string
	fetched        map[string]*messagedomain.FetchedMessage
	fetchErr       map[string]error
	listedFrom     []uint64
	watchHistoryID uint64
	watchedTopics  []string
	stopErr        error
	stopCalls      int
}

func (f *fakeProvider) ExchangeRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-token", nil
}

func (f *fakeProvider) ListHistory(ctx context.Context, accessToken string, startHistoryID uint64) ([]string, error) {
	f.listedFrom = append(f.listedFrom, startHistoryID)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeProvider) FetchMessage(ctx context.Context, accessToken, messageID string) (*messagedomain.FetchedMessage, error) {
	if err, ok := f.fetchErr[messageID]; ok {
		return nil, err
	}
	if m, ok := f.fetched[messageID]; ok {
		return m, nil
	}
	return nil, errors.New("message not found")
}

func (f *fakeProvider) Watch(ctx context.Context, accessToken, topicName string) (uint64, error) {
	f.watchedTopics = append(f.watchedTopics, topicName)
	return f.watchHistoryID, nil
}

func (f *fakeProvider) Stop(ctx context.Context, accessToken string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopCalls++
	return nil
}

func testAccount() *messagedomain.LinkedAccount {
	return &messagedomain.LinkedAccount{
		ID:            "acc-1",
		UserID:        "user-1",
		GmailAddress:  "alice@gmail.com",
		RefreshToken:  "refresh-token",
		LastHistoryID: 100,
	}
}

func TestProcessNotificationUnknownMailbox(t *testing.T) {
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{}}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, &fakeProvider{})

	status, err := svc.ProcessNotification(context.Background(), "stranger@gmail.com", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusIgnored {
		t.Errorf("status = %q, want %q", status, StatusIgnored)
	}
}

func TestProcessNotificationMissingRefreshToken(t *testing.T) {
	account := testAccount()
	account.RefreshToken = ""
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, &fakeProvider{})

	status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusIgnored {
		t.Errorf("status = %q, want %q", status, StatusIgnored)
	}
}

func TestProcessNotificationStaleHistoryID(t *testing.T) {
	account := testAccount()
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	provider := &fakeProvider{}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, provider)

	for _, historyID := range []uint64{99, 100} {
		status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, historyID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != StatusDuplicate {
			t.Errorf("historyID %d: status = %q, want %q", historyID, status, StatusDuplicate)
		}
	}
	if len(provider.listedFrom) != 0 {
		t.Error("stale notification reached the provider")
	}
	if account.LastHistoryID != 100 {
		t.Errorf("cursor moved to %d on a stale notification", account.LastHistoryID)
	}
}

func TestProcessNotificationTokenExchangeFailure(t *testing.T) {
	account := testAccount()
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, &fakeProvider{exchangeErr: errors.New("invalid_grant")})

	status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err == nil {
		t.Fatal("expected an error")
	}
	if status != StatusError {
		t.Errorf("status = %q, want %q", status, StatusError)
	}
	if account.LastHistoryID != 100 {
		t.Errorf("cursor moved to %d despite failure", account.LastHistoryID)
	}
}

func TestProcessNotificationEmptyDelta(t *testing.T) {
	account := testAccount()
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	provider := &fakeProvider{}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, provider)

	status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusEmpty {
		t.Errorf("status = %q, want %q", status, StatusEmpty)
	}
	if account.LastHistoryID != 200 {
		t.Errorf("cursor = %d, want 200", account.LastHistoryID)
	}
	if len(provider.listedFrom) != 1 || provider.listedFrom[0] != 101 {
		t.Errorf("listed from %v, want [101]", provider.listedFrom)
	}
}

func TestProcessNotificationStoresDelta(t *testing.T) {
	account := testAccount()
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	emails := &fakeEmailRepo{}
	provider := &fakeProvider{
		history: []string{"m1", "m2", "m3"},
		fetched: map[string]*messagedomain.FetchedMessage{
			"m1": {MessageID: "m1", Subject: "Hi", Sender: "bob@example.com", Body: "hello", ReceivedAt: 1},
			"m2": {MessageID: "m2", Subject: "No sender", Sender: "", Body: "dropped", ReceivedAt: 2},
			"m3": {MessageID: "m3", Subject: "Offer", Sender: "spam@example.com", Body: "click here", ReceivedAt: 3},
		},
	}
	svc := NewSyncService(accounts, emails, provider)

	status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusStored {
		t.Errorf("status = %q, want %q", status, StatusStored)
	}
	if len(emails.messages) != 2 {
		t.Fatalf("stored %d messages, want 2 (senderless one dropped)", len(emails.messages))
	}
	if emails.messages[0].UserID != "user-1" || emails.messages[0].GmailAddress != account.GmailAddress {
		t.Errorf("stored message misattributed: %+v", emails.messages[0])
	}
	if account.LastHistoryID != 200 {
		t.Errorf("cursor = %d, want 200", account.LastHistoryID)
	}
}

func TestProcessNotificationFetchFailureLeavesCursor(t *testing.T) {
	account := testAccount()
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{account.GmailAddress: account}}
	emails := &fakeEmailRepo{}
	provider := &fakeProvider{
		history: []string{"m1", "m2"},
		fetched: map[string]*messagedomain.FetchedMessage{
			"m1": {MessageID: "m1", Subject: "Hi", Sender: "bob@example.com", Body: "hello", ReceivedAt: 1},
		},
		fetchErr: map[string]error{"m2": errors.New("rate limited")},
	}
	svc := NewSyncService(accounts, emails, provider)

	status, err := svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err == nil {
		t.Fatal("expected an error")
	}
	if status != StatusError {
		t.Errorf("status = %q, want %q", status, StatusError)
	}
	if account.LastHistoryID != 100 {
		t.Errorf("cursor = %d, want unchanged 100", account.LastHistoryID)
	}

	// The redelivery replays the same range; the already-stored message is
	// skipped and the rest of the delta completes.
	provider.fetchErr = nil
	provider.fetched["m2"] = &messagedomain.FetchedMessage{MessageID: "m2", Subject: "Re", Sender: "carol@example.com", Body: "again", ReceivedAt: 2}

	status, err = svc.ProcessNotification(context.Background(), account.GmailAddress, 200)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if status != StatusStored {
		t.Errorf("replay status = %q, want %q", status, StatusStored)
	}
	if len(emails.messages) != 2 {
		t.Errorf("stored %d messages after replay, want 2", len(emails.messages))
	}
	if account.LastHistoryID != 200 {
		t.Errorf("cursor = %d after replay, want 200", account.LastHistoryID)
	}
}

func TestProcessNotificationLookupFailure(t *testing.T) {
	accounts := &fakeAccountRepo{findErr: errors.New("connection reset")}
	svc := NewSyncService(accounts, &fakeEmailRepo{}, &fakeProvider{})

	status, err := svc.ProcessNotification(context.Background(), "alice@gmail.com", 200)
	if err == nil {
		t.Fatal("expected an error")
	}
	if status != StatusError {
		t.Errorf("status = %q, want %q", status, StatusError)
	}
}
