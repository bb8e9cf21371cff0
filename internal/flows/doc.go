// Package flows contains the orchestrators behind every Engine operation:
// the login guard (attempt counting and time-boxed lockout), password reset
// and email or phone verification.
//
// Each Run function takes a [Deps] value built once by the Engine and returns
// results without side effects beyond those dependencies. Expected security
// outcomes (wrong password, locked account, invalid code) are values or the
// host sentinels carried in [Errors]; store and key faults are wrapped in
// Errors.Unavailable and Errors.KeyUnavailable.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import marketauth (to avoid import cycles).
//   - Log codes, passwords or tokens.
package flows
