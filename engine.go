package chatauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/chatauth/internal/rate"
	"github.com/MrEthical07/chatauth/session"
)

// SessionStore is the per-(channel, user) state backend. The default is the
// Redis [session.Store]; tests inject conflict- or failure-producing stores.
// Write is conditional, not atomic: callers go through the engine's retrying
// write protocol instead of assuming last-write-wins.
type SessionStore interface {
	Read(ctx context.Context, channelID, userID string) (*session.State, error)
	Write(ctx context.Context, channelID, userID string, st *session.State) error
	Delete(ctx context.Context, channelID, userID string) error
}

// Engine owns the authentication-resumption flow: correlation lifecycle, the
// callback handler's session-write path, and the magic-number challenge.
// Construct through [Builder.Build]; all methods are then safe for
// concurrent use.
type Engine struct {
	config       Config
	correlations *correlationStore
	sessions     SessionStore
	provider     IdentityProvider
	connector    Connector
	renderer     PromptRenderer
	magic        *MagicNumberGenerator
	throttle     *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close shuts down the audit dispatcher, draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current metric counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) auditEmit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(ctx, event)
}

// tokenRequest derives what tokens are acquired for from the provider mode.
func (e *Engine) tokenRequest() TokenRequest {
	switch e.config.Provider.Mode {
	case ModeV1:
		return TokenRequest{Resource: e.config.Provider.Resource}
	default:
		return TokenRequest{Scopes: e.config.Provider.Scopes}
	}
}

// applyState is the retrying write protocol: read, mutate, conditional
// write, up to Session.MaxWriteAttempts times. Optimistic, not linearizable;
// the conditional write turns interleavings into retries instead of lost
// updates. On exhaustion the caller MUST treat the user as not logged in.
func (e *Engine) applyState(ctx context.Context, channelID, userID string, mutate func(*session.State) error) error {
	var lastErr error

	for attempt := 0; attempt < e.config.Session.MaxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := e.sessions.Read(ctx, channelID, userID)
		if err != nil {
			lastErr = err
			continue
		}

		if err := mutate(state); err != nil {
			// Mutation errors are the caller's logic, not transient storage
			// failures; retrying would re-run the same decision.
			return err
		}

		if err := e.sessions.Write(ctx, channelID, userID, state); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	e.metricInc(MetricSessionWriteExhausted)
	return fmt.Errorf("%w: %v", ErrSessionWriteExhausted, lastErr)
}

// Token returns the stored credential for a user, honoring the challenge
// gate: with magic numbers enabled, the credential is released only after
// the user echoed the code back. Everything else is ErrNotAuthenticated.
func (e *Engine) Token(ctx context.Context, channelID, userID string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	state, err := e.sessions.Read(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !state.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if e.config.MagicNumber.Enabled && state.Challenge != session.ChallengeValidated {
		return nil, ErrNotAuthenticated
	}

	result := &AuthResult{}
	if err := json.Unmarshal(state.Credential, result); err != nil {
		return nil, fmt.Errorf("corrupt stored credential: %v", err)
	}
	return result, nil
}

// Logout clears the user's stored authentication state. Idempotent.
func (e *Engine) Logout(ctx context.Context, channelID, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Delete(ctx, channelID, userID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.auditEmit(ctx, AuditEvent{
		EventType: AuditLogout,
		ChannelID: channelID,
		UserID:    userID,
		Success:   true,
	})
	return nil
}
