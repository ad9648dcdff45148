// Package storage persists the per-channel last-seen map across restarts.
//
// Drivers:
//   - "file": a single indented JSON object (channel -> id | null), replaced
//     atomically on every save, plus an append-only delivery audit log
//   - "sqlite": a SQLite database file (pure Go driver)
package storage
