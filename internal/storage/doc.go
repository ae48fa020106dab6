// Package storage persists the relay's seen-set.
//
// A Backend stores a whole State (channel id -> message ids) at once. Drivers:
//   - "file": a single JSON document, written via tmp file + rename
//   - "sqlite": modernc.org/sqlite database file
//   - "postgres": PostgreSQL through lib/pq
//   - "memory": process-local, nothing survives a restart
package storage
