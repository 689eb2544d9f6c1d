// Package gotrue is a Supabase Auth (GoTrue) REST client that implements
// [goSession.Provider].
//
// The client persists its session through a [session.Storage], broadcasts auth-state changes in
// the order they happen and exposes the sign-in flows an application needs around the
// lifecycle manager: email/password, Google ID token, password recovery and parsing of
// redirect callbacks.
//
// Concurrent RefreshSession calls share a single network round-trip. A refresh rejected
// with a 4xx status clears the stored session and broadcasts SIGNED_OUT.
package gotrue
