// Package session provides Redis-backed persistence for per-(channel, user)
// authentication state and its compact binary encoding.
//
// # Concurrency model
//
// State is contended: a live conversation turn and the OAuth callback can
// race on the same user. [Store.Write] is conditional — it commits only when
// the stored version counter still matches the version that was read, and
// fails with [ErrWriteConflict] otherwise. Callers run a read-modify-write
// retry loop on top; the store itself never retries.
//
// # Binary encoding
//
// State is stored as a compact binary format with a leading schema-version
// byte. The encoder is append-only: new versions add fields but never
// reinterpret old ones.
//
// # What this package must NOT do
//
//   - Import chatauth (no upward imports).
//   - Interpret the credential blob or decide whether it may be released.
package session
