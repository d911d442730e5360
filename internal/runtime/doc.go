// Package runtime is the channel registry of a single-node quiu instance. It
// owns the live channels, the channels.index recovery file, background task
// bookkeeping and the shutdown sequence
// (Constructing → Ready → ShuttingDown → Stopped).
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{DataDir: dir, RecoverChannels: true})
//	if err != nil { /* handle */ }
//	defer rt.Shutdown()
//	ch, _ := rt.AddChannel(ctx, uuid.Nil, "orders")
//	_, _ = ch.Append(ctx, []byte("hello"))
package runtime
