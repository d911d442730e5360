// Package logstore implements the per-channel durable log: an
// offset-addressed, append-only sequence of timestamped records.
//
// Two backends share the Store interface. The pebble backend writes each
// record under "e/<offset_be8>" as a checksummed envelope; the sqlite backend
// keeps one row per record keyed by offset. Both recover their offset counter
// on open from the highest stored offset.
package logstore
