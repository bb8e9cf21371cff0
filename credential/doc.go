// Package credential defines the user and one-time-code records the
// authentication core reads and mutates, and the Store contract that
// persistence adapters implement.
//
// # Architecture boundaries
//
// The package holds data shapes and the storage contract only. Concrete
// adapters live under store/ (Redis, SQL). Nothing here hashes, issues
// tokens or decides security outcomes.
//
// # What this package must NOT do
//
//   - Persist plaintext one-time codes.
//   - Import the root marketauth package or any adapter.
package credential
