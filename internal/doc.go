// Package internal contains helpers that are private to goSession.
//
// # Sub-packages
//
//   - audit: async lifecycle event dispatch (Dispatcher + Sink implementations)
//   - broadcast: ordered auth-state-change fan-out shared by provider packages
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API except through aliases.
//   - Be imported by any package outside the goSession module.
package internal
