// Package store provides the SQLite-backed request journal.
//
// Every request an endpoint executes is appended as one row holding:
//   - a UUIDv7 request ID (unique)
//   - the request kind ("query" or "count") and its canonical JSON
//   - the content hash of the canonical request (ir.RequestHash)
//   - the outcome: result count and result hash, or error code and message
//
// # Ordering
//
// Rows are ordered by seq, an autoincrement column assigned on insert,
// then by id COLLATE BINARY. Timestamps are recorded for operators but
// never used for ordering.
//
// # Idempotency
//
// Writes use ON CONFLICT(id) DO NOTHING, so re-recording a request ID is a
// no-op rather than an error.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
