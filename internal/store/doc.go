// Package store provides SQLite-backed storage for rewrite traces.
//
// The store is an append-only log of:
//   - Runs: one row per driver run, with input and output fingerprints
//   - Firings: every hook that changed the plan, in firing order
//   - Plans: canonical plan encodings addressed by fingerprint
//
// Reads are deterministic: firings come back ORDER BY ordinal, runs in
// insertion order, ties broken by id COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements rewrite.Recorder, so a driver configured with
// rewrite.WithRecorder(store) persists every run it finishes.
package store
