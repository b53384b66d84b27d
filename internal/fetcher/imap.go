package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/config"
	"ticket-intake-go/internal/model"
)

// IMAPFetcher fetches unseen messages over IMAP. Messages are read with
// BODY.PEEK so they stay unseen until MarkSeen is called.
type IMAPFetcher struct {
	mu        sync.Mutex
	client    *client.Client
	folder    string
	accountID string
}

// NewIMAPFetcher creates a new IMAP fetcher
func NewIMAPFetcher(cfg *config.MailboxConfig) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	folder := cfg.IMAPFolder
	if folder == "" {
		folder = "INBOX"
	}

	return &IMAPFetcher{
		client:    c,
		folder:    folder,
		accountID: cfg.AccountID,
	}, nil
}

// FetchNewMessages fetches unseen messages using IMAP
func (f *IMAPFetcher) FetchNewMessages(ctx context.Context) ([]model.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := f.client.Select(f.folder, false); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", f.folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return []model.InboundMessage{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- f.client.UidFetch(seqset, items, messages)
	}()

	var out []model.InboundMessage
	for m := range messages {
		body := m.GetBody(section)
		if body == nil {
			logrus.WithField("uid", m.Uid).Warn("IMAP message has no body")
			continue
		}

		msg, err := ParseMessage(body, f.accountID)
		if err != nil {
			logrus.WithField("uid", m.Uid).Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		msg.ProviderRef = strconv.FormatUint(uint64(m.Uid), 10)
		if msg.ID == "" {
			msg.ID = fallbackID(f.accountID, msg.ProviderRef)
		}
		out = append(out, *msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return out, nil
}

// MarkSeen sets the \Seen flag on the message
func (f *IMAPFetcher) MarkSeen(ctx context.Context, msg *model.InboundMessage) error {
	uid, err := strconv.ParseUint(msg.ProviderRef, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid IMAP uid %q: %w", msg.ProviderRef, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := f.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark message as seen: %w", err)
	}
	return nil
}

// Close closes the IMAP fetcher
func (f *IMAPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client.Logout()
}
