// Package redisstore implements credential.Store on Redis.
//
// Users are hashes keyed by id with an email index key. One-time codes for a
// (user, purpose) pair live in a single hash whose fields are record ids and
// whose values are versioned binary records. The key expires with the last
// live code.
//
// Atomicity: user creation, updates and the failure increment run as Lua
// scripts; code consumption and invalidation use WATCH/MULTI with bounded
// retries.
package redisstore
