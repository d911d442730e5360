package channel

import (
	"context"
	"fmt"
)

// Entry is one write-ahead item: a payload bound for a channel.
type Entry struct {
	Channel *Channel
	Payload []byte
}

// Persist appends e.Payload to e.Channel. It is the persist function of the
// server's shared write-ahead queue.
func Persist(ctx context.Context, e Entry) error {
	if _, err := e.Channel.Append(ctx, e.Payload); err != nil {
		return fmt.Errorf("channel %s: %w", e.Channel.ID(), err)
	}
	return nil
}
