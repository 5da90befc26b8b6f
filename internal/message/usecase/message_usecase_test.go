package usecase

import (
	"context"
	"errors"
	"testing"

	messagedomain "phishguard-backend/internal/message/domain"
)

func TestLinkAccountArmsWatchAndSetsCursor(t *testing.T) {
	accounts := &fakeAccountRepo{}
	provider := &fakeProvider{watchHistoryID: 500}
	uc := NewMessageUsecase(&fakeEmailRepo{}, &fakeSmsRepo{}, accounts, provider, "gmail-updates")

	if err := uc.LinkAccount(context.Background(), "user-1", "alice@gmail.com", "refresh-token"); err != nil {
		t.Fatalf("LinkAccount failed: %v", err)
	}

	account := accounts.accounts["alice@gmail.com"]
	if account == nil {
		t.Fatal("account not stored")
	}
	if account.UserID != "user-1" || account.RefreshToken != "refresh-token" {
		t.Errorf("stored account = %+v", account)
	}
	if account.LastHistoryID != 500 {
		t.Errorf("cursor = %d, want the watch position 500", account.LastHistoryID)
	}
	if len(provider.watchedTopics) != 1 || provider.watchedTopics[0] != "gmail-updates" {
		t.Errorf("watched topics = %v, want [gmail-updates]", provider.watchedTopics)
	}
}

func TestListAccountsReturnsOnlyOwn(t *testing.T) {
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{
		"alice@gmail.com": {UserID: "user-1", GmailAddress: "alice@gmail.com"},
		"bob@gmail.com":   {UserID: "user-2", GmailAddress: "bob@gmail.com"},
	}}
	uc := NewMessageUsecase(&fakeEmailRepo{}, &fakeSmsRepo{}, accounts, &fakeProvider{}, "")

	got, err := uc.ListAccounts("user-1")
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(got) != 1 || got[0].GmailAddress != "alice@gmail.com" {
		t.Errorf("accounts = %+v, want only alice@gmail.com", got)
	}
}

func TestUnlinkAccountStopsWatchAndDeletes(t *testing.T) {
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{
		"alice@gmail.com": {UserID: "user-1", GmailAddress: "alice@gmail.com", RefreshToken: "refresh-token"},
	}}
	provider := &fakeProvider{}
	uc := NewMessageUsecase(&fakeEmailRepo{}, &fakeSmsRepo{}, accounts, provider, "gmail-updates")

	if err := uc.UnlinkAccount(context.Background(), "user-1", "alice@gmail.com"); err != nil {
		t.Fatalf("UnlinkAccount failed: %v", err)
	}
	if provider.stopCalls != 1 {
		t.Errorf("stop calls = %d, want 1", provider.stopCalls)
	}
	if _, ok := accounts.accounts["alice@gmail.com"]; ok {
		t.Error("account still linked after unlink")
	}
}

func TestUnlinkAccountRejectsForeignMailbox(t *testing.T) {
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{
		"alice@gmail.com": {UserID: "user-1", GmailAddress: "alice@gmail.com"},
	}}
	provider := &fakeProvider{}
	uc := NewMessageUsecase(&fakeEmailRepo{}, &fakeSmsRepo{}, accounts, provider, "")

	err := uc.UnlinkAccount(context.Background(), "user-2", "alice@gmail.com")
	if !errors.Is(err, ErrAccountNotLinked) {
		t.Fatalf("err = %v, want ErrAccountNotLinked", err)
	}
	if provider.stopCalls != 0 {
		t.Error("watch must not be touched for a mailbox the caller does not own")
	}
	if _, ok := accounts.accounts["alice@gmail.com"]; !ok {
		t.Error("the owner's link must survive")
	}
}

// A revoked refresh token must not leave the link stuck in place.
func TestUnlinkAccountSurvivesRevokedToken(t *testing.T) {
	accounts := &fakeAccountRepo{accounts: map[string]*messagedomain.LinkedAccount{
		"alice@gmail.com": {UserID: "user-1", GmailAddress: "alice@gmail.com", RefreshToken: "revoked"},
	}}
	provider := &fakeProvider{exchangeErr: errors.New("invalid_grant")}
	uc := NewMessageUsecase(&fakeEmailRepo{}, &fakeSmsRepo{}, accounts, provider, "")

	if err := uc.UnlinkAccount(context.Background(), "user-1", "alice@gmail.com"); err != nil {
		t.Fatalf("UnlinkAccount failed: %v", err)
	}
	if _, ok := accounts.accounts["alice@gmail.com"]; ok {
		t.Error("account still linked after unlink")
	}
}

func TestSaveSmsBatchSkipsEmptyRecords(t *testing.T) {
	sms := &fakeSmsRepo{}
	uc := NewMessageUsecase(&fakeEmailRepo{}, sms, &fakeAccountRepo{}, &fakeProvider{}, "")

	saved, err := uc.SaveSmsBatch("user-1", []messagedomain.SmsMessage{
		{Address: "+15550001", Body: "hello", TimestampMs: 1},
		{Address: "", Body: "no address", TimestampMs: 2},
		{Address: "+15550002", Body: "", TimestampMs: 3},
		{Address: "+15550003", Body: "world", TimestampMs: 4},
	})
	if err != nil {
		t.Fatalf("SaveSmsBatch failed: %v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}
	if len(sms.messages) != 2 {
		t.Fatalf("stored %d records, want 2", len(sms.messages))
	}
	for _, m := range sms.messages {
		if m.UserID != "user-1" {
			t.Errorf("record misattributed: %+v", m)
		}
		if m.MessageHash == "" {
			t.Error("dedup hash not set")
		}
		if m.Verdict != nil {
			t.Error("incoming record carried a verdict")
		}
	}
}
