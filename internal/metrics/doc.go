// Package metrics provides lock-free counters and the login latency
// histogram of marketauth.
//
// # Design
//
// Counters are cache-line-padded uint64 slots incremented with
// [sync/atomic.AddUint64]. The histogram uses 8 fixed buckets (≤5ms … +Inf)
// plus a running sum. The write path does not allocate.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshots. Export (Prometheus) lives
// in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import marketauth or any sibling package.
//   - Register global collectors.
package metrics
