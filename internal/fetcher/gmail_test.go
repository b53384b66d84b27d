package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ticket-intake-go/internal/config"
)

// fakeGmail serves the list, get and modify calls of the Gmail API over an
// in-memory mailbox.
type fakeGmail struct {
	mu      sync.Mutex
	raw     map[string]string
	unread  map[string]bool
	queries []string
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{raw: make(map[string]string), unread: make(map[string]bool)}
}

func (g *fakeGmail) add(id, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.raw[id] = base64.URLEncoding.EncodeToString([]byte(message))
	g.unread[id] = true
}

func (g *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	const prefix = "/gmail/v1/users/me/messages"
	path := strings.TrimPrefix(r.URL.Path, prefix)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "" && r.Method == http.MethodGet:
		g.queries = append(g.queries, r.URL.Query().Get("q"))
		resp := &gmail.ListMessagesResponse{}
		for id, unread := range g.unread {
			if unread {
				resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
			}
		}
		json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, "/modify") && r.Method == http.MethodPost:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/modify")
		var req gmail.ModifyMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, label := range req.RemoveLabelIds {
			if label == "UNREAD" {
				g.unread[id] = false
			}
		}
		json.NewEncoder(w).Encode(&gmail.Message{Id: id})
	case r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/")
		raw, ok := g.raw[id]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(&gmail.Message{Id: id, Raw: raw, InternalDate: 1700000000000})
	default:
		http.NotFound(w, r)
	}
}

func newTestGmailFetcher(t *testing.T, g *fakeGmail) *GmailAPIFetcher {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	service, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return newGmailAPIFetcher(service, &config.MailboxConfig{AccountID: "support"})
}

func TestGmailFetcherRefetchesUnreadMessages(t *testing.T) {
	g := newFakeGmail()
	g.add("m1", "Message-ID: <m1@example.com>\r\nFrom: a@example.com\r\nSubject: Impresora\r\n\r\nNo imprime\r\n")
	f := newTestGmailFetcher(t, g)
	ctx := context.Background()

	first, err := f.FetchNewMessages(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "m1@example.com", first[0].ID)
	assert.Equal(t, "m1", first[0].ProviderRef)
	assert.Equal(t, int64(1700000000000), first[0].ReceivedAt.UnixMilli())

	// not marked seen, e.g. the ingest failed: the next poll returns it again
	second, err := f.FetchNewMessages(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "m1@example.com", second[0].ID)

	require.NoError(t, f.MarkSeen(ctx, &second[0]))
	third, err := f.FetchNewMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, third)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.queries, 3)
	for _, q := range g.queries {
		assert.Equal(t, "in:inbox is:unread", q)
	}
}

func TestGmailFetcherFallbackID(t *testing.T) {
	g := newFakeGmail()
	g.add("m2", "From: a@example.com\r\nSubject: sin id\r\n\r\nbody\r\n")
	f := newTestGmailFetcher(t, g)

	msgs, err := f.FetchNewMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "support:m2", msgs[0].ID)
}
