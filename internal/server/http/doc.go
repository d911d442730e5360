// Package httpserver exposes channels over HTTP: newline-delimited batch
// appends, single and range reads, and channel administration.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data"})
//	q := wal.New(channel.Persist, wal.Options{})
//	_ = q.Start()
//	s := httpserver.New(httpserver.Options{Runtime: rt, WAL: q})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:27812")
package httpserver
