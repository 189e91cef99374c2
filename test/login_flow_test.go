package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	chatauth "github.com/MrEthical07/chatauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordingConnector struct {
	mu      sync.Mutex
	replies []*chatauth.Reply
	resumes int
}

func (c *recordingConnector) Send(_ context.Context, reply *chatauth.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply)
	return nil
}

func (c *recordingConnector) Resume(_ context.Context, _ *chatauth.ConversationRef, _ *chatauth.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
	return nil
}

type stubProvider struct{}

func (stubProvider) ExchangeCode(_ context.Context, code string) (*chatauth.AuthResult, error) {
	return &chatauth.AuthResult{UserName: "alice", AccessToken: "tok-" + code}, nil
}

func (stubProvider) AuthURL(_ context.Context, correlationID string, _ chatauth.TokenRequest) (string, error) {
	return "https://login.example.com/authorize?state=" + correlationID, nil
}

func (stubProvider) CachedToken(context.Context, string, string, chatauth.TokenRequest) (string, error) {
	return "", nil
}

func newFlowEngine(t *testing.T, magicNumber bool) (*chatauth.Engine, *recordingConnector, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := chatauth.DefaultConfig()
	cfg.Provider.Scopes = []string{"user.read"}
	cfg.MagicNumber.Enabled = magicNumber
	cfg.Metrics.Enabled = true

	connector := &recordingConnector{}
	engine, err := chatauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(stubProvider{}).
		WithConnector(connector).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, connector, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func inboundMessage(text string) *chatauth.Message {
	return &chatauth.Message{
		ID:             "m1",
		ChannelID:      "msteams",
		ConversationID: "conv1",
		UserID:         "u1",
		UserName:       "alice",
		ServiceURL:     "https://chat.example.com",
		Text:           text,
	}
}

// Full resumption round trip against a built engine and a real HTTP server.
func TestLoginFlowWithoutChallenge(t *testing.T) {
	engine, connector, cleanup := newFlowEngine(t, false)
	defer cleanup()

	ctx := context.Background()
	server := httptest.NewServer(engine.CallbackHandler())
	defer server.Close()

	dialog := engine.NewAuthDialog("Please sign in")
	outcome, err := dialog.OnMessage(ctx, inboundMessage("hello"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}
	if outcome.Status != chatauth.StatusWaiting {
		t.Fatalf("status = %v, want waiting", outcome.Status)
	}

	resp, err := http.Get(fmt.Sprintf("%s?code=auth-code&state=%s", server.URL, outcome.CorrelationID))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d, want 200", resp.StatusCode)
	}

	result, err := engine.Token(ctx, "msteams", "u1")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if result.AccessToken != "tok-auth-code" {
		t.Fatalf("AccessToken = %q", result.AccessToken)
	}

	connector.mu.Lock()
	resumes := connector.resumes
	connector.mu.Unlock()
	if resumes != 1 {
		t.Fatalf("resumes = %d, want 1", resumes)
	}

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[chatauth.MetricCallbackSuccess] != 1 {
		t.Fatalf("callback success counter = %d, want 1", snapshot.Counters[chatauth.MetricCallbackSuccess])
	}
}

func TestLoginFlowWithChallenge(t *testing.T) {
	engine, connector, cleanup := newFlowEngine(t, true)
	defer cleanup()

	ctx := context.Background()
	server := httptest.NewServer(engine.CallbackHandler())
	defer server.Close()

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, inboundMessage("hello"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("%s?code=auth-code&state=%s", server.URL, outcome.CorrelationID))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading callback page failed: %v", err)
	}

	// The page carries the code the user must paste back.
	page := string(body)
	start := strings.Index(page, "<h1>")
	end := strings.Index(page, "</h1>")
	if start < 0 || end < 0 {
		t.Fatalf("page %q does not carry the code", page)
	}
	code := page[start+len("<h1>") : end]

	// Token stays gated until the echo turn.
	if _, err := engine.Token(ctx, "msteams", "u1"); err == nil {
		t.Fatal("Token released before echo validation")
	}

	echo, err := dialog.OnMessage(ctx, inboundMessage(code))
	if err != nil {
		t.Fatalf("echo turn failed: %v", err)
	}
	if echo.Status != chatauth.StatusSucceeded {
		t.Fatalf("echo status = %v, want succeeded", echo.Status)
	}

	if _, err := engine.Token(ctx, "msteams", "u1"); err != nil {
		t.Fatalf("Token after validation failed: %v", err)
	}

	connector.mu.Lock()
	last := connector.replies[len(connector.replies)-1]
	connector.mu.Unlock()
	if !strings.Contains(last.Text, "alice") {
		t.Fatalf("final reply = %q, want greeting", last.Text)
	}
}

func TestLogoutEndsAuthenticatedSession(t *testing.T) {
	engine, _, cleanup := newFlowEngine(t, false)
	defer cleanup()

	ctx := context.Background()
	server := httptest.NewServer(engine.CallbackHandler())
	defer server.Close()

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, inboundMessage("hello"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("%s?code=auth-code&state=%s", server.URL, outcome.CorrelationID))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()

	if _, err := engine.Token(ctx, "msteams", "u1"); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if err := engine.Logout(ctx, "msteams", "u1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Token(ctx, "msteams", "u1"); err == nil {
		t.Fatal("Token survived logout")
	}
}
