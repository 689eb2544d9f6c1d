// Package session provides the authentication [Session] model, a compact binary
// encoding for it, and a Redis-backed [Store] that persists the current session
// between process restarts.
//
// # Binary encoding
//
// Sessions are stored as a versioned, length-prefixed binary blob. Decoding rejects
// unknown versions and truncated input instead of guessing.
//
// # Architecture boundaries
//
// This package owns persistence of one session per storage key. It does NOT refresh
// tokens, schedule timers or talk to identity providers; those belong to the root
// package and the provider packages.
//
// # What this package must NOT do
//
//   - Import goSession, jwt or any provider package (no upward imports).
//   - Mutate a [Session] after it has been handed out.
package session
