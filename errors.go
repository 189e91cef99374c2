package chatauth

import "errors"

var (
	// ErrCorrelationNotFound is returned when a callback state value does not
	// resolve to a stored conversation locator. Terminal for that callback.
	ErrCorrelationNotFound = errors.New("correlation entry not found")
	// ErrAuthExchangeFailed is returned when the identity provider rejects the
	// authorization code. Codes are single-use, so there is no retry.
	ErrAuthExchangeFailed = errors.New("authorization code exchange failed")
	// ErrSessionWriteExhausted is returned when the retrying write protocol
	// spends its attempt budget without committing.
	ErrSessionWriteExhausted = errors.New("session write attempts exhausted")
	// ErrChallengeMismatch is returned when the echoed magic number does not
	// match the stored one. Non-terminal: auth state is cleared and the user
	// may start a fresh login.
	ErrChallengeMismatch = errors.New("magic number mismatch")
	// ErrProviderUnimplemented is returned at build time for provider modes
	// that are recognized but not implemented.
	ErrProviderUnimplemented = errors.New("provider mode not implemented")
	// ErrLoginCancelled classifies the audit record written when the user's
	// message matches the configured cancellation-word set. Cancellation is an
	// ordinary dialog outcome, not an OnMessage error.
	ErrLoginCancelled = errors.New("login cancelled by user")
	// ErrCallbackThrottled classifies callbacks denied by the endpoint
	// throttle; the HTTP response is 429.
	ErrCallbackThrottled = errors.New("callback rate limited")
	// ErrNotAuthenticated is returned when no releasable credential exists for
	// the user, including the window where a credential is stored but the
	// magic number has not been validated yet.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
