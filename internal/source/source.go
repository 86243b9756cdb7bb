package source

import (
	"bytes"
	"context"
	"encoding/json"
)

// Event is one raw update received from Telegram.
type Event struct {
	// UpdateID is zero when the payload carries none before the point where
	// it stops being valid JSON.
	UpdateID int64
	Value    []byte
	Headers  map[string]string
}

// NewEvent wraps a raw update, lifting update_id out of the payload.
// Undecodable payloads are kept as-is so the processor can report them.
func NewEvent(raw []byte, headers map[string]string) Event {
	return Event{UpdateID: liftUpdateID(raw), Value: raw, Headers: headers}
}

// liftUpdateID walks the top-level object token by token, so a payload
// truncated after update_id still yields its id.
func liftUpdateID(raw []byte) int64 {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return 0
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return 0
		}
		if key != "update_id" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return 0
			}
			continue
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return 0
		}
		n, ok := v.(json.Number)
		if !ok {
			return 0
		}
		id, err := n.Int64()
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}

// Source delivers updates to a handler.
type Source interface {
	// Start begins consuming events. Blocks until ctx is cancelled.
	Start(ctx context.Context, handler func(context.Context, Event) error) error

	// Close performs graceful shutdown.
	Close() error
}
