package chatauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/chatauth/internal/rate"
)

func callbackRequest(code, state string) *http.Request {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if state != "" {
		q.Set("state", state)
	}
	r := httptest.NewRequest(http.MethodGet, "/auth/callback?"+q.Encode(), nil)
	r.RemoteAddr = "203.0.113.7:51234"
	return r
}

func TestCallbackBareRequestIsSignOutLanding(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, &mockConnector{}, testConfig(false))
	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("bare landing wrote a body: %q", rec.Body.String())
	}
}

func TestCallbackRejectsPartialParameters(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, &mockConnector{}, testConfig(false))
	handler := engine.CallbackHandler()

	for _, r := range []*http.Request{
		callbackRequest("abc", ""),
		callbackRequest("", "some-state"),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", r.URL.RawQuery, rec.Code)
		}
	}
}

func TestCallbackResumesConversationWithoutChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	connector := &mockConnector{}
	provider := &mockProvider{
		exchangeResult: &AuthResult{UserName: "alice", AccessToken: "tok"},
	}
	engine := newTestEngine(t, rdb, provider, connector, testConfig(false))

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, testMessage("hi"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("auth-code", outcome.CorrelationID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "successfully been authenticated") {
		t.Fatalf("body = %q, want success page", rec.Body.String())
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}

	reply := connector.lastReply()
	if reply == nil || !strings.Contains(reply.Text, "alice") {
		t.Fatalf("chat reply = %+v, want greeting with display name", reply)
	}
	if connector.resumedCount() != 1 {
		t.Fatalf("resumed = %d, want 1", connector.resumedCount())
	}

	// The correlation entry is consumed: a replay finds nothing.
	if _, err := engine.correlations.Get(ctx, outcome.CorrelationID); !errors.Is(err, ErrCorrelationNotFound) {
		t.Fatalf("expected correlation consumed, got %v", err)
	}

	result, err := engine.Token(ctx, "emulator", "u1")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if result.AccessToken != "tok" {
		t.Fatalf("AccessToken = %q, want tok", result.AccessToken)
	}
}

func TestCallbackChallengeFlowEndToEnd(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	connector := &mockConnector{}
	engine := newTestEngine(t, rdb, &mockProvider{}, connector, testConfig(true))

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, testMessage("hi"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("auth-code", outcome.CorrelationID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %q", rec.Code, rec.Body.String())
	}
	// fixedReader{b: 3} pins every generated digit to 3.
	if !strings.Contains(rec.Body.String(), "<h1>333333</h1>") {
		t.Fatalf("body = %q, want magic number page", rec.Body.String())
	}

	reply := connector.lastReply()
	if reply == nil || !strings.Contains(reply.Text, "paste back the number") {
		t.Fatalf("chat reply = %+v, want paste-back instruction", reply)
	}
	// No resumption until the echo validates.
	if connector.resumedCount() != 0 {
		t.Fatal("challenge flow must not resume at callback time")
	}
	// Correlation survives until validation.
	if _, err := engine.correlations.Get(ctx, outcome.CorrelationID); err != nil {
		t.Fatalf("correlation gone before validation: %v", err)
	}
	// Credential exists but is still gated.
	if _, err := engine.Token(ctx, "emulator", "u1"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected gated token, got %v", err)
	}

	echoOutcome, err := dialog.OnMessage(ctx, testMessage("333333"))
	if err != nil {
		t.Fatalf("echo turn failed: %v", err)
	}
	if echoOutcome.Status != StatusSucceeded {
		t.Fatalf("echo status = %v, want StatusSucceeded", echoOutcome.Status)
	}
	if _, err := engine.correlations.Get(ctx, outcome.CorrelationID); !errors.Is(err, ErrCorrelationNotFound) {
		t.Fatalf("expected correlation consumed after validation, got %v", err)
	}
	if _, err := engine.Token(ctx, "emulator", "u1"); err != nil {
		t.Fatalf("Token after validation failed: %v", err)
	}
}

func TestCallbackChallengePageDropsMarkupForSkypeForBusiness(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	connector := &mockConnector{}
	engine := newTestEngine(t, rdb, &mockProvider{}, connector, testConfig(true))

	dialog := engine.NewAuthDialog("")
	msg := testMessage("hi")
	msg.ChannelID = "skypeforbusiness"
	outcome, err := dialog.OnMessage(ctx, msg)
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("auth-code", outcome.CorrelationID))

	body := rec.Body.String()
	if !strings.Contains(body, "333333") || strings.Contains(body, "<h1>") {
		t.Fatalf("body = %q, want plain magic number without heading markup", body)
	}
}

func TestCallbackUnknownStateWritesNothing(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	connector := &mockConnector{}
	provider := &mockProvider{}
	engine := newTestEngine(t, rdb, provider, connector, testConfig(false))

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("auth-code", "never-issued"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if connector.sentCount() != 0 || connector.resumedCount() != 0 {
		t.Fatal("unknown state must not touch any conversation")
	}
	if got := mr.Keys(); len(got) != 0 {
		t.Fatalf("unknown state left keys behind: %v", got)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricCallbackUnknownState] != 1 {
		t.Fatalf("unknown-state counter = %d, want 1", snap.Counters[MetricCallbackUnknownState])
	}
}

func TestCallbackExchangeFailureStopsBeforeLookup(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	connector := &mockConnector{}
	provider := &mockProvider{exchangeErr: errors.New("invalid_grant")}
	engine := newTestEngine(t, rdb, provider, connector, testConfig(false))

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, testMessage("hi"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("bad-code", outcome.CorrelationID))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	// The prompt reply is the only traffic; the failure never reaches chat.
	if connector.sentCount() != 1 {
		t.Fatalf("sent = %d, want only the original prompt", connector.sentCount())
	}
	// Correlation is kept so a fresh redirect can still complete.
	if _, err := engine.correlations.Get(ctx, outcome.CorrelationID); err != nil {
		t.Fatalf("correlation lost after exchange failure: %v", err)
	}
}

func TestCallbackWriteExhaustionKeepsCorrelation(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	connector := &mockConnector{}
	engine := newTestEngine(t, rdb, &mockProvider{}, connector, testConfig(false))

	dialog := engine.NewAuthDialog("")
	outcome, err := dialog.OnMessage(ctx, testMessage("hi"))
	if err != nil {
		t.Fatalf("prompt turn failed: %v", err)
	}

	engine.sessions = &flakyStore{inner: engine.sessions, failWrites: 1 << 20}

	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("auth-code", outcome.CorrelationID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 failure page", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Could not log you in") {
		t.Fatalf("body = %q, want failure page", rec.Body.String())
	}

	reply := connector.lastReply()
	if reply == nil || !strings.Contains(reply.Text, "Could not log you in") {
		t.Fatalf("chat reply = %+v, want failure text", reply)
	}
	if connector.resumedCount() != 0 {
		t.Fatal("failed write must not resume the conversation")
	}
	// The entry stays so a retry can still locate the conversation.
	if _, err := engine.correlations.Get(ctx, outcome.CorrelationID); err != nil {
		t.Fatalf("correlation lost after write exhaustion: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSessionWriteExhausted] == 0 {
		t.Fatal("write exhaustion not counted")
	}
}

func TestCallbackThrottleLimitsBursts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig(false)
	cfg.Security.EnableCallbackThrottle = true
	cfg.Security.MaxCallbackAttempts = 3

	engine := newTestEngine(t, rdb, &mockProvider{}, &mockConnector{}, cfg)
	engine.throttle = rate.New(rdb, rate.Config{
		Enabled:       true,
		MaxAttempts:   cfg.Security.MaxCallbackAttempts,
		CooldownRange: cfg.Security.CallbackCooldown,
	})
	handler := engine.CallbackHandler()

	var last int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, callbackRequest("code", "some-state"))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("fourth burst request status = %d, want 429", last)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricCallbackThrottled] != 1 {
		t.Fatalf("throttle counter = %d, want 1", snap.Counters[MetricCallbackThrottled])
	}
}

func TestCallbackObservesLatency(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, &mockConnector{}, testConfig(false))
	rec := httptest.NewRecorder()
	engine.CallbackHandler().ServeHTTP(rec, callbackRequest("", ""))

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, n := range snap.Histograms[MetricCallbackLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("latency observations = %d, want 1", total)
	}
}
