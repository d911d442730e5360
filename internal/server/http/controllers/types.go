package controllers

import "github.com/luismedel/quiu/internal/logstore"

// Common response types for HTTP controllers

// errorResp is the envelope of every failed request.
type errorResp struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// appendResp reports a batch append. Message is set only on failure.
type appendResp struct {
	Processed int    `json:"processed"`
	Commited  int    `json:"commited"`
	Error     bool   `json:"error"`
	Message   string `json:"message,omitempty"`
}

// recordResp is one record on the wire. Timestamp is unix nanoseconds.
// Payloads are assumed to be UTF-8 text; invalid bytes are replaced with
// U+FFFD by the JSON encoder.
type recordResp struct {
	Offset    int64  `json:"offset"`
	Timestamp int64  `json:"timestamp"`
	Payload   string `json:"payload"`
}

func toRecordResp(r logstore.Record) recordResp {
	return recordResp{
		Offset:    r.Offset,
		Timestamp: r.Timestamp,
		Payload:   string(r.Payload),
	}
}

type createResp struct {
	GUID  string `json:"guid"`
	Error bool   `json:"error"`
}

type okResp struct {
	Error bool `json:"error"`
}

type channelInfo struct {
	GUID       string `json:"guid"`
	Name       string `json:"name"`
	LastOffset int64  `json:"last_offset"`
}

type channelsResp struct {
	Channels []channelInfo `json:"channels"`
}
