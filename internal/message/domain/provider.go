package domain

import "context"

// FetchedMessage is a full message resolved from the provider, already flattened
// to plain text and ready to store.
type FetchedMessage struct {
	MessageID  string
	Subject    string
	Sender     string
	Snippet    string
	Body       string
	ReceivedAt int64 // epoch milliseconds
}

// MailProvider is the outbound Gmail boundary used by the history-sync handler.
type MailProvider interface {
	// ExchangeRefreshToken trades a stored refresh token for a short-lived
	// access token.
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (string, error)
	// ListHistory returns the IDs of messages added to the mailbox since
	// startHistoryID (exclusive).
	ListHistory(ctx context.Context, accessToken string, startHistoryID uint64) ([]string, error)
	// FetchMessage resolves one message reference to its full content.
	FetchMessage(ctx context.Context, accessToken, messageID string) (*FetchedMessage, error)
	// Watch (re)arms push notifications for the mailbox on the Pub/Sub topic.
	Watch(ctx context.Context, accessToken, topicName string) (uint64, error)
	// Stop tears down the mailbox's push watch.
	Stop(ctx context.Context, accessToken string) error
}
