// Package internal contains helpers that are private to marketauth:
// secure random generation for session ids and one-time codes, and code
// hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: viper/godotenv loading for the binaries
//   - flows: pure-function orchestrators behind every Engine operation
//   - limiters: fixed-window Redis throttles for code sends
//   - logging: zap logger construction with optional file rotation
//   - metrics: lock-free counters and the login latency histogram
//   - security: configuration posture report and baseline warnings
//
// # What this package must NOT do
//
//   - Export types that appear in the public marketauth API.
//   - Be imported by any package outside the marketauth module.
package internal
