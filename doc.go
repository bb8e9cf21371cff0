// Package marketauth is the authentication core of a multi-vendor
// marketplace: encrypted session tokens, login throttling with time-boxed
// lockout, and one-time-code flows for password reset, email verification
// and phone verification.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// marketauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, throttling, audit dispatch and
// counters live under internal/. Persistence is behind [CredentialStore]
// with Redis and SQL implementations under store/, and delivery is behind
// [Notifier] (package notify).
//
// # Outcomes and errors
//
// Expected results of Login (wrong password, locked, unverified) are values
// in [LoginResult]. Errors are reserved for faults ([ErrUnavailable],
// [ErrKeyUnavailable]) and for rejected codes and grants ([ErrOTPInvalid],
// [ErrTokenInvalid]). Token-level detail never crosses the facade.
//
// # Enumeration
//
// Unknown emails and wrong passwords produce the same login message, and
// the reset and resend replies never depend on whether an account exists.
package marketauth
