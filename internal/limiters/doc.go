// Package limiters provides Redis-backed request throttles for the
// unauthenticated OTP entry points (password reset requests and verification
// resends).
//
// [RequestLimiter] keeps one fixed-window counter per (scope, identifier) and
// per (scope, client IP). Counting and window expiry are sent in one
// MULTI/EXEC so a crash between the two cannot leave an immortal counter.
//
// A nil *RequestLimiter allows every request.
//
// # What this package must NOT do
//
//   - Import marketauth or any sibling internal package.
//   - Make policy decisions beyond counting; the Engine decides consequences.
package limiters
