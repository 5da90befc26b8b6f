package gmail

import (
	"context"
	"fmt"
	"time"

	messagedomain "phishguard-backend/internal/message/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const callTimeout = 30 * time.Second

// Service implements domain.MailProvider against the Gmail REST API.
type Service struct {
	clientID      string
	clientSecret  string
	maxBodyLength int
}

func NewService(clientID, clientSecret string, maxBodyLength int) *Service {
	return &Service{
		clientID:      clientID,
		clientSecret:  clientSecret,
		maxBodyLength: maxBodyLength,
	}
}

// ExchangeRefreshToken trades a stored refresh token for a short-lived access
// token via the standard OAuth refresh grant.
func (s *Service) ExchangeRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("unable to exchange refresh token: %w", err)
	}
	return token.AccessToken, nil
}

// gmailClient creates a Gmail API client authenticated with a bearer token.
func (s *Service) gmailClient(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListHistory returns the IDs of messages added since startHistoryID
// (exclusive). Pagination is followed to the end so a single delta is never
// partially reported.
func (s *Service) ListHistory(ctx context.Context, accessToken string, startHistoryID uint64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var messageIDs []string
	seen := make(map[string]bool)
	pageToken := ""

	for {
		call := srv.Users.History.List("me").
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list history: %w", err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				messageIDs = append(messageIDs, added.Message.Id)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return messageIDs, nil
}

// FetchMessage resolves one message reference to its full content with the body
// already flattened to plain text and truncated.
func (s *Service) FetchMessage(ctx context.Context, accessToken, messageID string) (*messagedomain.FetchedMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}

	body := extractBody(msg.Payload)
	body = Truncate(body, s.maxBodyLength)

	return &messagedomain.FetchedMessage{
		MessageID:  msg.Id,
		Subject:    getHeader(msg.Payload, "Subject"),
		Sender:     getHeader(msg.Payload, "From"),
		Snippet:    msg.Snippet,
		Body:       body,
		ReceivedAt: msg.InternalDate,
	}, nil
}

// Watch (re)arms push notifications for the mailbox on the Pub/Sub topic and
// returns the mailbox's current history ID as the starting cursor.
func (s *Service) Watch(ctx context.Context, accessToken, topicName string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	// Gmail allows one push client per mailbox; clear any stale watch first.
	_ = srv.Users.Stop("me").Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return resp.HistoryId, nil
}

// Stop cancels push notifications for the mailbox.
func (s *Service) Stop(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	srv, err := s.gmailClient(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}
