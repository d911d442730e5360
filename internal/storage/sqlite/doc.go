// Package sqlitestore wraps a single-connection SQLite database
// (mattn/go-sqlite3) with WAL journaling, a prepared statement cache and the
// same metrics hook surface as pebblestore.
package sqlitestore
