package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/client"
	"github.com/skillswap/chat-server/internal/model"
	"github.com/skillswap/chat-server/internal/realtime"
	"github.com/skillswap/chat-server/internal/repository"
	"github.com/skillswap/chat-server/internal/service"
)

const testSecret = "handler-test-secret-with-enough-length"

type testApp struct {
	store  *repository.MemoryStore
	hub    *realtime.Hub
	server *httptest.Server
	wsURL  string
}

type appOptions struct {
	allowedOrigins []string
	health         *HealthHandler
}

// steppingClock advances one millisecond per reading so consecutive appends
// get strictly increasing timestamps.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	store := repository.NewMemoryStore().WithClock(steppingClock())
	for _, id := range []string{"alice", "bob", "carol"} {
		store.PutUser(model.PrincipalSummary{ID: id, Name: strings.ToUpper(id), Email: id + "@example.com"})
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, realtime.NewLocalBus())
	require.NoError(t, dispatcher.Start(context.Background()))

	limiter := service.NewMemoryRateLimiter()
	verifier := auth.NewVerifier(testSecret, "")
	guard := service.NewGuard(store)
	messages := service.NewMessageService(guard, store, service.NewPrincipalDirectory(store), dispatcher, nil, limiter,
		service.MessageLimits{MaxMessageLength: 500, SendRateLimitPerMin: 1000})
	conversations := service.NewConversationService(store, guard, messages)
	hub := realtime.NewHub(registry, verifier, guard, messages, realtime.HubConfig{
		AuthTimeout:   2 * time.Second,
		IdleTimeout:   time.Minute,
		SendQueueSize: 64,
	})

	health := opts.health
	if health == nil {
		health = NewHealthHandler(hub.SessionCount)
	}

	server := httptest.NewServer(NewRouter(RouterDeps{
		Verifier:           verifier,
		Hub:                hub,
		Conversations:      conversations,
		Messages:           messages,
		Limiter:            limiter,
		Health:             health,
		AllowedOrigins:     opts.allowedOrigins,
		APIRateLimitPerMin: 10000,
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		server.Close()
		dispatcher.Close()
	})

	return &testApp{
		store:  store,
		hub:    hub,
		server: server,
		wsURL:  "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func (a *testApp) token(t *testing.T, id string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, "", model.Principal{ID: id, Name: strings.ToUpper(id)}, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *testApp) connect(t *testing.T, id string) *client.Client {
	t.Helper()
	c, err := client.Dial(testContext(t), a.wsURL, client.Options{Token: a.token(t, id), UpdateBuffer: 256})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (a *testApp) conversation(t *testing.T, participants ...string) string {
	t.Helper()
	conv, err := a.store.Create(context.Background(), model.CreateConversationParams{Participants: participants})
	require.NoError(t, err)
	return conv.ID
}

// do issues an authenticated request as principal (anonymous when empty)
// and decodes a JSON response into out when it is non-nil.
func (a *testApp) do(t *testing.T, principal, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, principal))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func nextUpdate(t *testing.T, c *client.Client) client.Update {
	t.Helper()
	select {
	case u := <-c.Updates():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
		return client.Update{}
	}
}

type historyResponse struct {
	Messages     []model.DeliveredMessage `json:"messages"`
	NextAfterSeq int64                    `json:"nextAfterSeq"`
	HasMore      bool                     `json:"hasMore"`
}

type conversationResponse struct {
	Conversation model.Conversation `json:"conversation"`
	Created      bool               `json:"created"`
}

type sendResponse struct {
	Message     model.DeliveredMessage `json:"message"`
	ClientToken string                 `json:"clientToken"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}
