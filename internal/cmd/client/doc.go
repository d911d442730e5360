// Package client provides the `quiu` command-line client.
//
// The CLI talks to the quiu HTTP endpoint to manage channels and to append
// and read records from a terminal.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads QUIU_HTTP or the
// --http flag and defaults to http://127.0.0.1:27812.
//
// Usage
//
//	quiu channel create --name orders
//	quiu channel list
//
//	printf 'a\nb\nc\n' | quiu channel append 3f0c...
//	quiu channel append 3f0c... --data '{"hello":"world"}' --no-wait
//
//	quiu channel fetch 3f0c... 1
//	quiu channel range 3f0c... 1 100 --filter 'json.kind == "order"'
//
//	quiu channel drop 3f0c... --prune
package client
