package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ticket-intake-go/internal/config"
	"ticket-intake-go/internal/model"
)

// GmailScopes are the OAuth2 scopes the service needs: reading and
// labelling the inbox, and sending acknowledgements.
var GmailScopes = []string{gmail.GmailModifyScope, gmail.GmailSendScope}

// inboxQuery selects every unread inbox message. A message stays unread
// until it has been ingested, so one that failed is fetched again next poll.
const inboxQuery = "in:inbox is:unread"

// GmailAPIFetcher fetches unread inbox messages through the Gmail API
type GmailAPIFetcher struct {
	service   *gmail.Service
	userEmail string
	accountID string
}

// NewGmailService creates an authorized Gmail client from a refresh token
func NewGmailService(ctx context.Context, cfg *config.MailboxConfig) (*gmail.Service, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       GmailScopes,
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	service, err := gmail.NewService(ctx, option.WithTokenSource(oauth2Config.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}

// NewGmailAPIFetcher creates a new Gmail API fetcher
func NewGmailAPIFetcher(ctx context.Context, cfg *config.MailboxConfig) (*GmailAPIFetcher, error) {
	service, err := NewGmailService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newGmailAPIFetcher(service, cfg), nil
}

func newGmailAPIFetcher(service *gmail.Service, cfg *config.MailboxConfig) *GmailAPIFetcher {
	userEmail := cfg.UserEmail
	if userEmail == "" {
		userEmail = "me"
	}
	return &GmailAPIFetcher{
		service:   service,
		userEmail: userEmail,
		accountID: cfg.AccountID,
	}
}

// FetchNewMessages fetches every unread inbox message. Messages that were
// already processed are skipped by the ingester's idempotency check.
func (f *GmailAPIFetcher) FetchNewMessages(ctx context.Context) ([]model.InboundMessage, error) {
	var out []model.InboundMessage
	err := f.service.Users.Messages.List(f.userEmail).Q(inboxQuery).Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, ref := range page.Messages {
			msg, err := f.fetch(ctx, ref.Id)
			if err != nil {
				logrus.WithField("gmail_id", ref.Id).Warnf("Failed to get message: %v", err)
				continue
			}
			out = append(out, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

func (f *GmailAPIFetcher) fetch(ctx context.Context, id string) (*model.InboundMessage, error) {
	raw, err := f.service.Users.Messages.Get(f.userEmail, id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	data, err := decodeRaw(raw.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw message: %w", err)
	}

	msg, err := ParseMessage(bytes.NewReader(data), f.accountID)
	if err != nil {
		return nil, err
	}
	msg.ProviderRef = id
	if msg.ID == "" {
		msg.ID = fallbackID(f.accountID, id)
	}
	if raw.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(raw.InternalDate)
	}
	return msg, nil
}

// MarkSeen removes the UNREAD label from the message
func (f *GmailAPIFetcher) MarkSeen(ctx context.Context, msg *model.InboundMessage) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if _, err := f.service.Users.Messages.Modify(f.userEmail, msg.ProviderRef, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	return nil
}

// Close closes the Gmail API fetcher
func (f *GmailAPIFetcher) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}

func decodeRaw(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
