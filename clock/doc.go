// Package clock provides the scheduling abstraction used by the session lifecycle
// manager: wall-clock reads, one-shot timers and fire-and-forget work.
//
// # Implementations
//
// [Real] is backed by the time package and goroutines. [Manual] keeps a virtual time
// that only moves when the caller advances it, which makes the refresh cycle testable
// without sleeping.
//
// # What this package must NOT do
//
//   - Import goSession or any provider package.
//   - Start goroutines from [Manual].
package clock
