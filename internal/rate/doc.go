// Package rate provides the Redis-backed throttle guarding the OAuth
// callback endpoint against state-guessing from arbitrary remote addresses.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - acb: — callback per remote address
//
// # What this package must NOT do
//
//   - Implement correlation or challenge policy (that lives in chatauth).
//   - Be imported outside the chatauth module.
package rate
