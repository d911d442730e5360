// Package pebblestore is a thin wrapper around Pebble with an fsync policy,
// batches and a metrics hook. Each quiu channel on the pebble backend owns
// one DB in its own directory.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: dir,
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
package pebblestore
