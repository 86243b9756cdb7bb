// Package correlation ties log lines, spans and dead letters for one update
// together under a single id.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderCorrelationID  = "karajan-correlation-id"
	HeaderXCorrelationID = "x-correlation-id"
	HeaderXRequestID     = "x-request-id"
	HeaderTraceparent    = "traceparent"
)

type ID struct {
	Value  string
	Source string
}

// ExtractOrGenerate takes the first id found in headers, in the order
// karajan-correlation-id, x-correlation-id, x-request-id, traceparent,
// and generates a UUID otherwise.
func ExtractOrGenerate(headers map[string]string) ID {
	for _, h := range []string{HeaderCorrelationID, HeaderXCorrelationID, HeaderXRequestID} {
		if id := headers[h]; id != "" {
			return ID{Value: id, Source: h}
		}
	}
	if tp := headers[HeaderTraceparent]; tp != "" {
		if traceID := extractTraceID(tp); traceID != "" {
			return ID{Value: traceID, Source: HeaderTraceparent}
		}
	}
	return ID{Value: uuid.New().String(), Source: "generated"}
}

// extractTraceID parses W3C traceparent format: version-traceid-parentid-flags
func extractTraceID(traceparent string) string {
	parts := strings.Split(traceparent, "-")
	if len(parts) >= 2 && len(parts[1]) == 32 {
		return parts[1]
	}
	return ""
}

// AddToHeaders sets the correlation header, creating the map if needed.
func AddToHeaders(headers map[string]string, id ID) map[string]string {
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers[HeaderCorrelationID] = id.Value
	return headers
}

type ctxKey struct{}

// WithID stores id in ctx.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id stored by WithID.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	return id, ok
}
