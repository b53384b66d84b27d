// Package fetcher pulls new messages from the support mailbox.
package fetcher

import (
	"context"
	"fmt"

	"ticket-intake-go/internal/config"
	"ticket-intake-go/internal/model"
)

// Fetcher returns messages that have not been handed out before.
type Fetcher interface {
	FetchNewMessages(ctx context.Context) ([]model.InboundMessage, error)
	Close() error
}

// SeenMarker is implemented by fetchers that can flag a message as read once
// it has been ingested.
type SeenMarker interface {
	MarkSeen(ctx context.Context, msg *model.InboundMessage) error
}

// New creates the fetcher for the configured provider
func New(ctx context.Context, cfg *config.MailboxConfig) (Fetcher, error) {
	switch cfg.Provider {
	case config.ProviderGmail:
		return NewGmailAPIFetcher(ctx, cfg)
	case config.ProviderIMAP:
		return NewIMAPFetcher(cfg)
	default:
		return nil, fmt.Errorf("unsupported mailbox provider %q", cfg.Provider)
	}
}

// fallbackID builds a message id from the provider reference when the
// Message-ID header is missing.
func fallbackID(accountID, providerRef string) string {
	return fmt.Sprintf("%s:%s", accountID, providerRef)
}
