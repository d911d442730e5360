// Package wal is the write-ahead queue that decouples accepting a record from
// making it durable. Producers Enqueue items; one worker goroutine hands them
// to a PersistFunc in FIFO order and settles each item's Completion.
//
// Persist failures are not retried. They settle the completion with a
// *PersistError. Stop(false) fails everything still queued with ErrDiscarded.
package wal
