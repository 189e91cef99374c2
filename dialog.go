package chatauth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrEthical07/chatauth/internal"
	"github.com/MrEthical07/chatauth/session"
)

// DialogStatus is the outcome of one dialog turn.
type DialogStatus int

const (
	// StatusWaiting means the dialog is suspended: either the external
	// callback or the next user message will advance it.
	StatusWaiting DialogStatus = iota
	// StatusSucceeded terminates the dialog with an authenticated user.
	StatusSucceeded
	// StatusFailed terminates the dialog without a credential.
	StatusFailed
)

// DialogOutcome reports where the dialog landed after a turn.
type DialogOutcome struct {
	Status DialogStatus
	// CorrelationID is set while the dialog is waiting on the external
	// callback. Exposed for observability and tests.
	CorrelationID string
}

// AuthDialog is the per-conversation login state machine. One instance
// serves one conversation; turns arrive sequentially, so the struct is not
// guarded by a lock. The session store, not this struct, is the source of
// truth for auth state, which is how the callback advances the flow without
// holding the dialog.
type AuthDialog struct {
	engine        *Engine
	prompt        string
	correlationID string
}

// NewAuthDialog creates a dialog for one conversation. An empty prompt falls
// back to the configured default text.
func (e *Engine) NewAuthDialog(prompt string) *AuthDialog {
	if prompt == "" {
		prompt = e.config.Prompt.DefaultText
	}
	return &AuthDialog{
		engine: e,
		prompt: prompt,
	}
}

// OnMessage advances the dialog by one user turn.
//
// With magic numbers enabled and a credential already written by the
// callback, the turn is treated as an echo attempt; otherwise it checks for
// an existing token and prompts for login when there is none. A non-nil
// error accompanies StatusFailed only for infrastructure failures;
// cancellation and mismatch are ordinary outcomes.
func (d *AuthDialog) OnMessage(ctx context.Context, msg *Message) (DialogOutcome, error) {
	if d == nil || d.engine == nil {
		return DialogOutcome{Status: StatusFailed}, ErrEngineNotReady
	}
	e := d.engine

	if e.config.MagicNumber.Enabled {
		state, err := e.sessions.Read(ctx, msg.ChannelID, msg.UserID)
		if err != nil {
			return d.abortValidation(ctx, msg, err)
		}
		if state.Authenticated() {
			return d.validateMagicNumber(ctx, msg, state)
		}
	}

	return d.checkForLogin(ctx, msg)
}

// validateMagicNumber runs the echo check against the stored challenge.
func (d *AuthDialog) validateMagicNumber(ctx context.Context, msg *Message, state *session.State) (DialogOutcome, error) {
	e := d.engine

	if state.Challenge == session.ChallengeValidated {
		if err := d.announceSuccess(ctx, msg, state.Credential); err != nil {
			return d.abortValidation(ctx, msg, err)
		}
		return DialogOutcome{Status: StatusSucceeded}, nil
	}

	if state.MagicNumber == "" {
		// Credential present but no outstanding code: the previous attempt
		// was cleared. Start over.
		return d.checkForLogin(ctx, msg)
	}

	digits := len(state.MagicNumber)
	if len(msg.Text) >= digits && msg.Text[:digits] == state.MagicNumber {
		err := e.applyState(ctx, msg.ChannelID, msg.UserID, func(s *session.State) error {
			s.Challenge = session.ChallengeValidated
			s.MagicNumber = ""
			return nil
		})
		if err != nil {
			return d.abortValidation(ctx, msg, err)
		}

		// The entry served its purpose; failures here only delay the reaper.
		_ = e.correlations.Delete(ctx, d.correlationID)
		d.correlationID = ""

		e.metricInc(MetricMagicNumberValidated)
		e.auditEmit(ctx, AuditEvent{
			EventType:      AuditMagicValidated,
			ChannelID:      msg.ChannelID,
			UserID:         msg.UserID,
			ConversationID: msg.ConversationID,
			Success:        true,
		})

		if err := d.announceSuccess(ctx, msg, state.Credential); err != nil {
			return d.abortValidation(ctx, msg, err)
		}
		return DialogOutcome{Status: StatusSucceeded}, nil
	}

	// Mismatch: clear credential and challenge so the stale code cannot be
	// brute-forced, then keep listening for a fresh login.
	err := e.applyState(ctx, msg.ChannelID, msg.UserID, func(s *session.State) error {
		s.ClearAuth()
		return nil
	})
	if err != nil {
		return d.abortValidation(ctx, msg, err)
	}

	e.metricInc(MetricMagicNumberMismatch)
	e.auditEmit(ctx, AuditEvent{
		EventType:      AuditMagicMismatch,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		Error:          ErrChallengeMismatch.Error(),
	})

	if err := e.connector.Send(ctx, &Reply{
		Ref:  msg.Ref(),
		Text: "I'm sorry but I couldn't validate your number. Please try authenticating once again.",
	}); err != nil {
		return d.abortValidation(ctx, msg, err)
	}

	return DialogOutcome{Status: StatusWaiting}, nil
}

// abortValidation is the unexpected-failure path: clear every auth field and
// terminate the dialog. Silent retry after an unknown error risks validating
// a stale or compromised code, so the whole attempt is abandoned instead.
func (d *AuthDialog) abortValidation(ctx context.Context, msg *Message, cause error) (DialogOutcome, error) {
	e := d.engine

	_ = e.applyState(ctx, msg.ChannelID, msg.UserID, func(s *session.State) error {
		s.ClearAuth()
		return nil
	})
	_ = e.connector.Send(ctx, &Reply{
		Ref:  msg.Ref(),
		Text: "I'm sorry but something went wrong while authenticating.",
	})

	return DialogOutcome{Status: StatusFailed}, cause
}

// checkForLogin prompts for a login unless a token already exists or the
// user cancelled.
func (d *AuthDialog) checkForLogin(ctx context.Context, msg *Message) (DialogOutcome, error) {
	e := d.engine

	token, err := e.provider.CachedToken(ctx, msg.ChannelID, msg.UserID, e.tokenRequest())
	if err != nil {
		return DialogOutcome{Status: StatusFailed}, err
	}
	if token != "" {
		e.metricInc(MetricCachedTokenHit)
		e.auditEmit(ctx, AuditEvent{
			EventType: AuditLoginCachedToken,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			Success:   true,
		})
		return DialogOutcome{Status: StatusSucceeded}, nil
	}

	if msg.Text != "" && d.isCancellation(msg.Text) {
		e.metricInc(MetricLoginCancelled)
		e.auditEmit(ctx, AuditEvent{
			EventType: AuditLoginCancelled,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			Error:     ErrLoginCancelled.Error(),
		})
		return DialogOutcome{Status: StatusFailed}, nil
	}

	correlationID, err := internal.NewCorrelationID()
	if err != nil {
		return DialogOutcome{Status: StatusFailed}, err
	}

	// The locator must be durable before the user leaves for the IdP: the
	// callback can arrive on any thread at any time after this point.
	if err := e.correlations.Save(ctx, correlationID, msg.Ref()); err != nil {
		return DialogOutcome{Status: StatusFailed}, err
	}

	authURL, err := e.provider.AuthURL(ctx, correlationID, e.tokenRequest())
	if err != nil {
		return DialogOutcome{Status: StatusFailed}, err
	}

	reply := e.renderer.RenderLoginPrompt(msg, d.prompt, authURL)
	if reply.Ref == nil {
		reply.Ref = msg.Ref()
	}
	if err := e.connector.Send(ctx, reply); err != nil {
		return DialogOutcome{Status: StatusFailed}, err
	}

	d.correlationID = correlationID

	e.metricInc(MetricLoginPrompted)
	e.auditEmit(ctx, AuditEvent{
		EventType:      AuditLoginPrompted,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		CorrelationID:  correlationID,
		Success:        true,
	})

	return DialogOutcome{Status: StatusWaiting, CorrelationID: correlationID}, nil
}

func (d *AuthDialog) isCancellation(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, word := range d.engine.config.Security.CancellationWords {
		if upper == word {
			return true
		}
	}
	return false
}

func (d *AuthDialog) announceSuccess(ctx context.Context, msg *Message, credential []byte) error {
	result := &AuthResult{}
	if err := json.Unmarshal(credential, result); err != nil {
		return fmt.Errorf("corrupt stored credential: %v", err)
	}

	return d.engine.connector.Send(ctx, &Reply{
		Ref:  msg.Ref(),
		Text: fmt.Sprintf("Thank you %s, you are now logged in.", result.DisplayName()),
	})
}
