// Package middleware connects a goSession Manager to net/http.
//
// # Adapters
//
//   - [Transport] attaches the current access token to outgoing requests.
//   - [RequireSession] rejects inbound requests while no session is active and exposes
//     the session through [SessionFromContext].
//
// Both read the session through [SessionSource], which *goSession.Manager satisfies.
//
// # What this package must NOT do
//
//   - Trigger refreshes. Scheduling belongs to the Manager.
//   - Parse or verify tokens.
package middleware
