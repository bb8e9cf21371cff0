// Package middleware adapts marketauth.Engine to net/http.
//
// # Guards
//
//   - [RequireAccess] verifies the bearer access token.
//   - [RequireRole] and [RequireVerified] check claims set by RequireAccess.
//   - [ClientInfo] records the caller's IP and User-Agent for the Engine.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every token
// decision is delegated to Engine.VerifyAccess.
//
// # What this package must NOT do
//
//   - Open or mint tokens directly.
//   - Access Redis.
package middleware
