package client

import (
	"os"

	json "github.com/goccy/go-json"

	transports "github.com/luismedel/quiu/internal/cmd/client/transports"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// DefaultBaseURL is used when QUIU_HTTP is not set.
const DefaultBaseURL = "http://127.0.0.1:27812"

// BaseURLFromEnv returns QUIU_HTTP or DefaultBaseURL.
func BaseURLFromEnv() string {
	if v := os.Getenv("QUIU_HTTP"); v != "" {
		return v
	}
	return DefaultBaseURL
}

func getTransport(baseURL BaseURLFunc) transports.ChannelsTransport {
	if baseURL == nil {
		baseURL = BaseURLFromEnv
	}
	return transports.NewHTTPTransport(baseURL, nil)
}

// decodedRecord returns a map with offset, timestamp and either payload_json
// or payload_text.
func decodedRecord(rec transports.Record) map[string]any {
	out := map[string]any{
		"offset":    rec.Offset,
		"timestamp": rec.Timestamp,
	}
	payload := []byte(rec.Payload)
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	out["payload_text"] = rec.Payload
	return out
}
