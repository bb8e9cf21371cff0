// Package audit implements async event dispatching for security-relevant
// operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op,
//     fan-out, Redis stream).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics and an optional per-event sink deadline.
//   - [Event]: structured audit record with timestamp, type, user, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide
// which events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import marketauth or any sibling internal package.
//   - Perform network I/O outside a Sink's Emit.
package audit
