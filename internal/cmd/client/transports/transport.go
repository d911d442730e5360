// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"
	"fmt"
	"io"
)

// Record is a channel record as returned by the server. Timestamp is unix nanoseconds.
type Record struct {
	Offset    int64  `json:"offset"`
	Timestamp int64  `json:"timestamp"`
	Payload   string `json:"payload"`
}

// ChannelInfo describes one registered channel.
type ChannelInfo struct {
	GUID       string `json:"guid"`
	Name       string `json:"name"`
	LastOffset int64  `json:"last_offset"`
}

// AppendResult reports a batch append.
type AppendResult struct {
	Processed int  `json:"processed"`
	Commited  int  `json:"commited"`
	Pending   bool `json:"-"`
}

// RangeRequest describes a range read.
type RangeRequest struct {
	GUID   string
	Offset int64
	Count  int
	Filter string
}

// ChannelsTransport abstracts the transport used by the CLI.
type ChannelsTransport interface {
	Create(ctx context.Context, guid, name string) (string, error)
	Drop(ctx context.Context, guid string, prune bool) error
	List(ctx context.Context) ([]ChannelInfo, error)
	// Append sends body as newline-delimited records.
	Append(ctx context.Context, guid string, body io.Reader, noWait bool) (AppendResult, error)
	Fetch(ctx context.Context, guid string, offset int64) (Record, error)
	FetchRange(ctx context.Context, req RangeRequest, onRecord func(Record) error) error
}

// APIError is a non-success response carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}
