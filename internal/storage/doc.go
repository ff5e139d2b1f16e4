// Package storage persists the display journal: every value a panel
// rendered, tagged with the panel name and the run's session id.
//
// Drivers:
//   - "file": append-only JSON Lines, no extra dependencies
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
package storage
