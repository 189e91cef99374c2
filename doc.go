// Package chatauth resumes interrupted conversations after an out-of-band
// identity-provider login. A conversational turn cannot block on a
// redirect-based OAuth flow, so the package correlates the in-flight
// conversation with the redirect state value before the user leaves, accepts
// the asynchronous callback on an arbitrary request with no conversation
// context attached, injects the acquired credential into per-user session
// state under concurrent access, and optionally demands a magic-number echo
// typed back into the conversation as a second factor against code injection.
//
// The package is designed for concurrent bot workloads: Engine methods and
// the callback handler are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// chatauth is the public surface. It exposes [Engine], [Builder], [Config],
// [AuthDialog], and value types (AuthResult, ConversationRef, Message).
// Redis encoding, the conditional-write session store, and rate limiting live
// under session/ and internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Perform the identity-provider code exchange itself; that is the
//     injected [IdentityProvider]'s job.
//   - Render channel transports; replies go through the injected [Connector].
//   - Expose a stored credential before the magic number is validated when
//     challenge mode is on.
package chatauth
