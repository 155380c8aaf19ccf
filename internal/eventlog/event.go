package eventlog

import (
	"context"
	"errors"
	"maps"
)

// Standard event field names
const (
	FieldDate       = "date_event"
	FieldUserAgent  = "user_agent"
	FieldUserIP     = "user_ip"
	FieldURL        = "handler_url"
	FieldServerName = "server_name"
	FieldMethod     = "method"
	FieldRequestID  = "request_id"
)

// ErrNoSink is returned by Flush when no bulk writer is configured.
var ErrNoSink = errors.New("event sink is not configured")

// Event is a free-form key-value log record.
type Event map[string]any

// BulkWriter persists an ordered batch of events into a named collection.
// A nil error means every event of the batch was written; an error means
// none of them is considered delivered.
type BulkWriter interface {
	BulkWrite(ctx context.Context, collection string, events []Event) error
}

// BulkWriterFunc adapts a function to the BulkWriter interface.
type BulkWriterFunc func(ctx context.Context, collection string, events []Event) error

// BulkWrite calls f.
func (f BulkWriterFunc) BulkWrite(ctx context.Context, collection string, events []Event) error {
	return f(ctx, collection, events)
}

// asEvent returns a private copy of v when v is a key-value mapping.
func asEvent(v any) (Event, bool) {
	switch e := v.(type) {
	case Event:
		if e == nil {
			return nil, false
		}
		return maps.Clone(e), true
	case map[string]any:
		if e == nil {
			return nil, false
		}
		return Event(maps.Clone(e)), true
	default:
		return nil, false
	}
}
