// Package goSession keeps one client-side authentication session fresh against an
// external identity provider.
//
// A [Manager] obtained from [Builder.Build] loads the initial session, follows provider
// auth-state notifications and refreshes the session shortly before it expires. When a
// refresh fails the manager drops the session and notifies its [InvalidationHandler], which
// is where an application navigates back to sign-in.
//
// # Refresh policy
//
// For a session expiring in `until`:
//
//   - until < Config.Refresh.Window: a refresh is dispatched immediately.
//   - A single timer is armed at until - Config.Refresh.LeadTime (clamped at zero).
//
// Installing a newer session or receiving a provider notification replaces the pending
// timer. Timers and refresh results belonging to a replaced session are discarded.
//
// # What this package must NOT do
//
//   - Navigate, render or route. Invalidation is reported, never acted on.
//   - Retry a failed refresh.
//   - Call the provider or a user callback while holding its internal lock.
package goSession
