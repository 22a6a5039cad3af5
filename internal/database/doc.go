// Package database provides SQLite-based storage for the tineye search history.
//
// HistoryDB stores:
//   - Search reports, keyed by image URL or upload digest
//   - Usage snapshots of the remaining search quota
//
// SQLite is used via modernc.org/sqlite, a CGO-free driver, so the history
// is a single file in the XDG data directory and the binary cross-compiles.
package database
