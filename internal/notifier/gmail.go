package notifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const maxSendAttempts = 3

// GmailSender sends messages through the Gmail API
type GmailSender struct {
	service   *gmail.Service
	userEmail string
	backoff   func(attempt int) time.Duration
}

// NewGmailSender creates a sender that posts as userEmail
func NewGmailSender(service *gmail.Service, userEmail string) *GmailSender {
	if userEmail == "" {
		userEmail = "me"
	}
	return &GmailSender{
		service:   service,
		userEmail: userEmail,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Send sends raw, retrying with backoff while Gmail reports rate limiting
func (s *GmailSender) Send(ctx context.Context, _ string, _ []string, raw []byte) error {
	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		_, err := s.service.Users.Messages.Send(s.userEmail, message).Context(ctx).Do()
		if err == nil {
			return nil
		}

		lastErr = err
		logrus.Warnf("Failed to send message (attempt %d/%d): %v", attempt, maxSendAttempts, err)

		if !isRateLimited(err) || attempt == maxSendAttempts {
			break
		}

		waitTime := s.backoff(attempt)
		logrus.Infof("Rate limited, waiting %v before retry", waitTime)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("failed to send message via Gmail: %w", lastErr)
}

// rateLimitReasons are the googleapi error reasons Gmail uses for throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
